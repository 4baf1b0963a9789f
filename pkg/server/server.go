// Package server wires the HTTP surface: the signed chat endpoint behind the
// admission gate, health aliases, and the metrics endpoint.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/everlydev/synapsys/pkg/auth"
	"github.com/everlydev/synapsys/pkg/broker"
	"github.com/everlydev/synapsys/pkg/telemetry"
)

// Server assembles the gateway's HTTP handler.
type Server struct {
	broker       *broker.Broker
	gate         *auth.Gate
	metrics      *telemetry.Metrics
	logger       zerolog.Logger
	maxBodyBytes int64
	tracing      bool
}

// Config wires the server's collaborators.
type Config struct {
	Broker       *broker.Broker
	Gate         *auth.Gate
	Metrics      *telemetry.Metrics
	Logger       zerolog.Logger
	MaxBodyBytes int64
	Tracing      bool
}

// New constructs a server.
func New(cfg Config) *Server {
	if cfg.Broker == nil {
		panic("server: broker is required")
	}
	if cfg.Gate == nil {
		panic("server: admission gate is required")
	}
	return &Server{
		broker:       cfg.Broker,
		gate:         cfg.Gate,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		maxBodyBytes: cfg.MaxBodyBytes,
		tracing:      cfg.Tracing,
	}
}

// Handler returns the fully-wired root handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	for _, path := range []string{"/health", "/api/health", "/actuator/health"} {
		mux.HandleFunc(path, handleHealth)
	}
	mux.Handle("/metrics", s.metrics.Handler())

	chat := http.Handler(http.HandlerFunc(s.handleChat))
	chat = s.gate.Wrap(chat)
	chat = auth.CachedBody(s.maxBodyBytes, chat)
	mux.Handle("/api/v1/chat", chat)

	var root http.Handler = mux
	if s.tracing {
		root = otelhttp.NewHandler(root, "synapsys.gateway")
	}
	root = s.requestLogging(root)
	root = s.recoverPanics(root)
	return root
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "UP"})
}
