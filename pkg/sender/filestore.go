package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/everlydev/synapsys/pkg/domain"
)

// FileStore reads sender configuration from <baseDir>/senders/<id>.json.
type FileStore struct {
	baseDir string
}

// NewFileStore creates a file-backed sender store rooted at baseDir.
func NewFileStore(baseDir string) *FileStore {
	return &FileStore{baseDir: baseDir}
}

func (s *FileStore) path(senderNormalized string) string {
	return filepath.Clean(filepath.Join(s.baseDir, "senders", senderNormalized+".json"))
}

// Exists probes for the record file without decoding it.
func (s *FileStore) Exists(senderNormalized string) bool {
	_, err := os.Stat(s.path(senderNormalized))
	return err == nil
}

// Load reads and decodes the record, returning its source path for error
// reporting.
func (s *FileStore) Load(_ context.Context, senderNormalized string) (domain.SenderConfig, string, error) {
	path := s.path(senderNormalized)

	data, err := os.ReadFile(path) // #nosec G304 -- path is derived from a validated sender id under the configured base dir
	if err != nil {
		return domain.SenderConfig{}, path, fmt.Errorf("failed to load sender config: %w", err)
	}

	var cfg domain.SenderConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return domain.SenderConfig{}, path, fmt.Errorf("failed to parse sender config %s: %w", path, err)
	}
	return cfg, path, nil
}
