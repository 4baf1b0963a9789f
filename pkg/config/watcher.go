package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// LimitsWatcher watches the config file and republishes the limits section on
// change. Only limits are hot-reloaded; everything else requires a restart.
type LimitsWatcher struct {
	path    string
	holder  *LimitsHolder
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	logger  zerolog.Logger
}

// NewLimitsWatcher starts watching the directory containing path.
func NewLimitsWatcher(path string, holder *LimitsHolder, logger zerolog.Logger) (*LimitsWatcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	// Watch the directory, not the file: editors and config rollouts often
	// replace the file, which drops a direct file watch.
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &LimitsWatcher{
		path:    absPath,
		holder:  holder,
		watcher: watcher,
		cancel:  cancel,
		logger:  logger,
	}
	go w.watchLoop(ctx)
	return w, nil
}

func (w *LimitsWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("config watcher error")
		}
	}
}

func (w *LimitsWatcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error().Err(err).Str("path", w.path).Msg("limits reload failed, keeping previous limits")
		return
	}
	w.holder.Store(cfg.Limits)
	w.logger.Info().
		Int("max_input_chars", cfg.Limits.MaxInputChars).
		Int64("provider_timeout_ms", cfg.Limits.ProviderTimeoutMS).
		Msg("limits reloaded")
}

// Close stops the watcher.
func (w *LimitsWatcher) Close() error {
	w.cancel()
	return w.watcher.Close()
}
