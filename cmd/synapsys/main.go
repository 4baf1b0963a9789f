// Package main is the entry point for the synapsys gateway binary.
package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/everlydev/synapsys/pkg/auth"
	"github.com/everlydev/synapsys/pkg/broker"
	"github.com/everlydev/synapsys/pkg/config"
	"github.com/everlydev/synapsys/pkg/guard"
	"github.com/everlydev/synapsys/pkg/instruction"
	"github.com/everlydev/synapsys/pkg/logging"
	"github.com/everlydev/synapsys/pkg/provider"
	"github.com/everlydev/synapsys/pkg/sender"
	"github.com/everlydev/synapsys/pkg/server"
	"github.com/everlydev/synapsys/pkg/telemetry"
)

const defaultConfigPath = "config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	listenAddr := flag.String("listen", "", "Address to listen on (overrides config)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error; overrides config)")
	prettyLogs := flag.Bool("pretty", false, "Enable pretty console logging")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		// Logging is not configured yet; write plainly and bail.
		bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLogger.Error().Err(err).Str("path", *configPath).Msg("failed to load configuration")
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	logger := logging.Setup(logging.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty || *prettyLogs,
	})

	logger.Info().Str("config", *configPath).Msg("starting synapsys gateway")

	ctx := context.Background()
	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName: "synapsys",
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to set up tracing")
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown error")
		}
	}()

	limits := config.NewLimitsHolder(cfg.Limits)
	if *configPath != "" {
		watcher, err := config.NewLimitsWatcher(*configPath, limits, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("limits hot-reload disabled")
		} else {
			defer func() { _ = watcher.Close() }()
		}
	}

	metrics := telemetry.NewMetrics()

	registry := sender.NewRegistry(sender.NewFileStore(cfg.Security.SendersDir))
	ledger := auth.NewNonceLedger(auth.DefaultNonceTTL, auth.DefaultNonceMaxEntries)
	gate := auth.NewGate(auth.GateConfig{
		Registry: registry,
		Ledger:   ledger,
		Logger:   logger,
		OnDenial: metrics.RecordAdmissionDenial,
	})

	providers, err := buildProviders(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to build provider registry")
		os.Exit(1)
	}

	guards := guard.NewChain(logger,
		[]guard.PreFlight{
			guard.NewResourceCaps(limits.MaxInputChars),
			guard.NewPromptInjection(nil),
		},
		[]guard.PostFlight{
			guard.NewSystemLeakage(),
		},
	)

	dispatcher := broker.New(broker.Config{
		Strategies: []sender.Strategy{
			sender.NewRegistryStrategy(registry, sender.NewCompositeAugmenter(sender.FileSearchStoreAugmenter{})),
			sender.NewDefaultStrategy(""),
		},
		Resolvers: []instruction.Resolver{
			instruction.NewRegistryResolver(registry, cfg.Security.SendersDir, logger),
			instruction.NoopResolver{},
		},
		Providers: providers,
		Guards:    guards,
		Timeout:   limits.ProviderTimeout,
		Logger:    logger,
		Observer:  metrics,
	})

	srv := server.New(server.Config{
		Broker:       dispatcher,
		Gate:         gate,
		Metrics:      metrics,
		Logger:       logger,
		MaxBodyBytes: cfg.Limits.MaxBodyBytes,
		Tracing:      cfg.Telemetry.OTLPEndpoint != "",
	})

	httpServer := startServer(cfg.Server.ListenAddr, srv.Handler(), logger)
	waitForShutdown(httpServer, logger)
}

func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); err != nil && path == defaultConfigPath {
		// The default config file is optional; env and defaults still apply.
		return config.Load("")
	}
	return config.Load(path)
}

// buildProviders registers every backend the broker can route to. Gemini runs
// live only when an API key is configured; otherwise a stub answers under the
// same id so default routing keeps working in development.
func buildProviders(cfg *config.Config, logger zerolog.Logger) (*provider.Registry, error) {
	var gemini provider.LlmProvider
	if cfg.Providers.GeminiAPIKey != "" {
		live, err := provider.NewGeminiProvider(provider.GeminiConfig{
			APIKey:       cfg.Providers.GeminiAPIKey,
			BaseURL:      cfg.Providers.GeminiBaseURL,
			DefaultModel: cfg.Providers.DefaultModel,
			Logger:       logger,
		})
		if err != nil {
			return nil, err
		}
		gemini = live
	} else {
		logger.Warn().Msg("no gemini API key configured, using stub provider")
		gemini = provider.NewStubProvider("gemini")
	}

	ollama := provider.NewOllamaProvider(provider.OllamaConfig{
		BaseURL:      cfg.Providers.OllamaBaseURL,
		DefaultModel: cfg.Providers.DefaultModel,
		Logger:       logger,
	})

	return provider.NewRegistry(gemini, ollama)
}

func startServer(addr string, handler http.Handler, logger zerolog.Logger) *http.Server {
	httpServer := &http.Server{
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error().Err(err).Str("addr", addr).Msg("failed to bind listener")
		os.Exit(1)
	}

	// Log the actual resolved address (useful when addr is :0).
	logger.Info().Str("addr", listener.Addr().String()).Msg("server listening")

	go func() {
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("server failed")
			os.Exit(1)
		}
	}()

	return httpServer
}

func waitForShutdown(httpServer *http.Server, logger zerolog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh

	logger.Info().Str("signal", sig.String()).Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
}
