// Package broker dispatches authenticated chat requests: sender strategy
// resolution, system-instruction resolution, content canonicalization, the
// guard chain, and timeout-bounded provider invocation with cancellation.
package broker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/everlydev/synapsys/pkg/domain"
	"github.com/everlydev/synapsys/pkg/guard"
	"github.com/everlydev/synapsys/pkg/instruction"
	"github.com/everlydev/synapsys/pkg/provider"
	"github.com/everlydev/synapsys/pkg/sender"
	"github.com/everlydev/synapsys/pkg/textcanon"
)

// DefaultProviderTimeout bounds a single provider call when no timeout is
// configured.
const DefaultProviderTimeout = 20 * time.Second

// Observer receives dispatch outcomes for metrics. All methods must be cheap
// and non-blocking.
type Observer interface {
	ProviderCall(providerID, outcome string, duration time.Duration)
}

// Broker owns the request lifecycle from strategy resolution through response
// assembly.
type Broker struct {
	strategies []sender.Strategy
	resolvers  []instruction.Resolver
	providers  *provider.Registry
	guards     *guard.Chain
	timeout    func() time.Duration
	logger     zerolog.Logger
	observer   Observer
}

// Config wires the broker's collaborators. Timeout is consulted per dispatch
// so configuration reloads take effect without restart; nil falls back to the
// default. Observer is optional.
type Config struct {
	Strategies []sender.Strategy
	Resolvers  []instruction.Resolver
	Providers  *provider.Registry
	Guards     *guard.Chain
	Timeout    func() time.Duration
	Logger     zerolog.Logger
	Observer   Observer
}

// New constructs a broker, sorting strategies and resolvers once.
func New(cfg Config) *Broker {
	if cfg.Providers == nil {
		panic("broker: provider registry is required")
	}
	if cfg.Guards == nil {
		panic("broker: guard chain is required")
	}
	timeout := cfg.Timeout
	if timeout == nil {
		timeout = func() time.Duration { return DefaultProviderTimeout }
	}

	b := &Broker{
		strategies: sender.SortStrategies(cfg.Strategies),
		resolvers:  instruction.SortResolvers(cfg.Resolvers),
		providers:  cfg.Providers,
		guards:     cfg.Guards,
		timeout:    timeout,
		logger:     cfg.Logger,
		observer:   cfg.Observer,
	}

	b.logger.Info().
		Int("preflight_guards", cfg.Guards.PreFlightCount()).
		Int("postflight_guards", cfg.Guards.PostFlightCount()).
		Strs("providers", cfg.Providers.IDs()).
		Msg("broker initialized")

	return b
}

// Dispatch runs the full pipeline for an authenticated message. Guard
// violations and configuration errors are returned as errors for the
// transport boundary to map; classified provider failures are converted into
// an error-status response the way a degraded-but-answered request is.
func (b *Broker) Dispatch(ctx context.Context, msg domain.ApplicationMessage) (domain.SynapsysResponse, error) {
	selected, err := sender.Select(b.strategies, msg.Sender)
	if err != nil {
		return domain.SynapsysResponse{}, err
	}
	req, err := selected.Complete(ctx, msg)
	if err != nil {
		return domain.SynapsysResponse{}, err
	}
	return b.process(ctx, req)
}

func (b *Broker) process(ctx context.Context, req domain.SynapsysRequest) (domain.SynapsysResponse, error) {
	if req.SystemInstruction != "" {
		return domain.SynapsysResponse{}, domain.NewGuardViolation(domain.ReasonInvalidRequest, "Bad request.",
			"broker", map[string]any{"category": "client_set_system_instruction"})
	}

	resolved, err := instruction.Resolve(ctx, b.resolvers, req)
	if err != nil {
		return domain.SynapsysResponse{}, err
	}

	effective := req
	effective.Content = textcanon.Normalize(req.Content)
	effective.SystemInstruction = resolved

	logger := b.logger.With().Str("sender", effective.Sender).Logger()
	start := time.Now()

	logger.Info().
		Str("event", "TX_START").
		Str("provider", effective.Provider).
		Str("model", effective.ModelVersion).
		Str("content", truncateForLogs(effective.Content)).
		Msg("dispatch started")

	if err := b.guards.RunPreFlight(effective); err != nil {
		return domain.SynapsysResponse{}, err
	}

	llmProvider, err := b.providers.Get(effective.Provider)
	if err != nil {
		return domain.SynapsysResponse{}, err
	}

	raw, err := b.callWithTimeout(ctx, llmProvider, effective)
	if err != nil {
		var provErr *domain.ProviderError
		if errors.As(err, &provErr) {
			logger.Warn().
				Str("event", "TX_PROVIDER_ERROR").
				Str("provider", effective.Provider).
				Str("type", string(provErr.Type)).
				Err(provErr).
				Msg("provider failed")
			return domain.SynapsysResponse{
				Sender:  "synapsys",
				Content: provErr.NeutralMessage(),
				Metadata: map[string]any{
					"status":    "error",
					"reason":    string(provErr.Type),
					"retryable": provErr.Retryable(),
				},
			}, nil
		}
		return domain.SynapsysResponse{}, err
	}

	safe := b.guards.RunPostFlight(effective, raw)

	logger.Info().
		Str("event", "TX_SUCCESS").
		Dur("duration", time.Since(start)).
		Int("total_tokens", safe.Usage.TotalTokens).
		Int("prompt_tokens", safe.Usage.PromptTokens).
		Int("completion_tokens", safe.Usage.CompletionTokens).
		Msg("dispatch completed")

	return domain.SuccessResponse(safe), nil
}

// callWithTimeout runs the provider call on its own goroutine under a hard
// deadline. On timeout the call's context is cancelled and the broker returns
// immediately without waiting for the provider to acknowledge, so the
// client-facing latency is bounded by the configured duration alone.
func (b *Broker) callWithTimeout(ctx context.Context, p provider.LlmProvider, req domain.SynapsysRequest) (domain.LlmResponse, error) {
	timeout := b.timeout()
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		resp domain.LlmResponse
		err  error
	}
	done := make(chan outcome, 1)
	start := time.Now()

	go func() {
		resp, err := p.Generate(callCtx, req)
		done <- outcome{resp: resp, err: err}
	}()

	select {
	case out := <-done:
		b.observe(p.ProviderID(), out.err, time.Since(start))
		return out.resp, out.err
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			b.observe(p.ProviderID(), callCtx.Err(), time.Since(start))
			return domain.LlmResponse{}, domain.NewGuardViolation(domain.ReasonProviderTimeout, "", "broker",
				map[string]any{
					"category":  "provider_timeout",
					"provider":  p.ProviderID(),
					"timeoutMs": timeout.Milliseconds(),
				})
		}
		// Caller went away; propagate its cancellation.
		return domain.LlmResponse{}, ctx.Err()
	}
}

func (b *Broker) observe(providerID string, err error, duration time.Duration) {
	if b.observer == nil {
		return
	}
	outcome := "success"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	}
	b.observer.ProviderCall(providerID, outcome, duration)
}

func truncateForLogs(input string) string {
	if len(input) > 80 {
		return input[:80] + "..."
	}
	return input
}
