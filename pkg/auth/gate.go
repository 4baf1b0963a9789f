package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/everlydev/synapsys/pkg/domain"
)

// Signed request headers.
const (
	HeaderSender    = "X-SynapSys-Sender"
	HeaderTimestamp = "X-SynapSys-Timestamp"
	HeaderNonce     = "X-SynapSys-Nonce"
	HeaderSignature = "X-SynapSys-Signature"
)

// MaxSkew bounds how far a request timestamp may drift from server time.
const MaxSkew = 60 * time.Second

// Denial reason codes. Each maps to exactly one fixed user message; nothing
// beyond the (message, reason) pair is ever surfaced to the caller.
const (
	ReasonMissingSender           = "missing_sender"
	ReasonInvalidSenderFormat     = "invalid_sender_format"
	ReasonReservedSender          = "reserved_sender"
	ReasonMissingSignatureHeaders = "missing_signature_headers"
	ReasonInvalidTimestamp        = "invalid_timestamp"
	ReasonTimestampOutOfWindow    = "timestamp_out_of_window"
	ReasonReplayDetected          = "replay_detected"
	ReasonUnknownSender           = "unknown_sender"
	ReasonSenderNotConfigured     = "sender_not_configured"
	ReasonInvalidSignature        = "invalid_signature"
)

var senderPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

var reservedSenders = map[string]struct{}{
	"anonymous": {},
	"system":    {},
	"synapsys":  {},
	"test":      {},
	"admin":     {},
	"root":      {},
}

// ConfigSource resolves validated sender configuration by normalized sender
// id.
type ConfigSource interface {
	GetRequired(ctx context.Context, senderNormalized string) (domain.SenderConfig, error)
}

type principalContextKey struct{}

// SenderFromContext returns the authenticated sender established by the gate,
// always the raw (not normalized) header value.
func SenderFromContext(ctx context.Context) string {
	sender, _ := ctx.Value(principalContextKey{}).(string)
	return sender
}

// Gate is the admission gate: it runs the full header / timestamp / nonce /
// registry / signature state machine over each request and either establishes
// the authenticated principal or writes a typed denial.
type Gate struct {
	registry ConfigSource
	ledger   *NonceLedger
	logger   zerolog.Logger
	now      func() time.Time
	onDenial func(reason string)
}

// GateConfig wires the gate's collaborators. OnDenial is optional and invoked
// once per denial with the reason code (used for metrics).
type GateConfig struct {
	Registry ConfigSource
	Ledger   *NonceLedger
	Logger   zerolog.Logger
	Now      func() time.Time
	OnDenial func(reason string)
}

// NewGate constructs an admission gate.
func NewGate(cfg GateConfig) *Gate {
	if cfg.Registry == nil {
		panic("auth: config source is required")
	}
	if cfg.Ledger == nil {
		panic("auth: nonce ledger is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Gate{
		registry: cfg.Registry,
		ledger:   cfg.Ledger,
		logger:   cfg.Logger,
		now:      now,
		onDenial: cfg.OnDenial,
	}
}

// Wrap returns a handler that admits or denies the request before invoking
// next. The request body must already be buffered by CachedBody.
func (g *Gate) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		senderHeader := r.Header.Get(HeaderSender)
		if strings.TrimSpace(senderHeader) == "" {
			g.deny(w, http.StatusUnauthorized,
				"Authentication required. Please provide an X-SynapSys-Sender header.", ReasonMissingSender)
			return
		}

		trimmedSender := strings.TrimSpace(senderHeader)
		normalizedSender := strings.ToLower(trimmedSender)

		if !senderPattern.MatchString(trimmedSender) {
			g.deny(w, http.StatusBadRequest,
				"Sender name must contain only alphanumeric characters, hyphens, and underscores (1-64 chars).",
				ReasonInvalidSenderFormat)
			return
		}

		if _, reserved := reservedSenders[normalizedSender]; reserved {
			g.deny(w, http.StatusForbidden,
				"The sender name '"+trimmedSender+"' is reserved for system use. Please use a different identifier.",
				ReasonReservedSender)
			return
		}

		tsHeader := r.Header.Get(HeaderTimestamp)
		nonceHeader := r.Header.Get(HeaderNonce)
		sigHeader := r.Header.Get(HeaderSignature)
		if strings.TrimSpace(tsHeader) == "" || strings.TrimSpace(nonceHeader) == "" || strings.TrimSpace(sigHeader) == "" {
			g.deny(w, http.StatusUnauthorized,
				"Authentication required. Missing signature headers.", ReasonMissingSignatureHeaders)
			return
		}

		ts, err := strconv.ParseInt(strings.TrimSpace(tsHeader), 10, 64)
		if err != nil {
			g.deny(w, http.StatusBadRequest, "Invalid timestamp header.", ReasonInvalidTimestamp)
			return
		}

		// Compare in whole seconds around the server clock. The header value
		// is attacker-controlled, so no arithmetic is done on it that could
		// overflow int64.
		now := g.now().Unix()
		maxSkew := int64(MaxSkew / time.Second)
		if ts < now-maxSkew || ts > now+maxSkew {
			g.deny(w, http.StatusUnauthorized,
				"Authentication required. Request timestamp outside allowed window.", ReasonTimestampOutOfWindow)
			return
		}

		nonce := strings.TrimSpace(nonceHeader)
		if !g.ledger.MarkIfNew(normalizedSender, nonce) {
			g.deny(w, http.StatusUnauthorized,
				"Authentication required. Replay detected.", ReasonReplayDetected)
			return
		}

		cfg, err := g.registry.GetRequired(r.Context(), normalizedSender)
		if err != nil {
			g.deny(w, http.StatusUnauthorized,
				"Authentication required. Unknown sender.", ReasonUnknownSender)
			return
		}
		if strings.TrimSpace(cfg.ClientKey) == "" {
			g.deny(w, http.StatusUnauthorized,
				"Authentication required. Sender not configured.", ReasonSenderNotConfigured)
			return
		}

		pathWithQuery := r.URL.Path
		if r.URL.RawQuery != "" {
			pathWithQuery += "?" + r.URL.RawQuery
		}

		bodyHash := BodyHash(BodyFromContext(r.Context()))
		canonical := CanonicalV1(r.Method, pathWithQuery, trimmedSender, strings.TrimSpace(tsHeader), nonce, bodyHash)

		if !Verify(strings.TrimSpace(sigHeader), cfg.ClientKey, canonical) {
			g.deny(w, http.StatusUnauthorized,
				"Authentication required. Invalid signature.", ReasonInvalidSignature)
			return
		}

		ctx := context.WithValue(r.Context(), principalContextKey{}, trimmedSender)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (g *Gate) deny(w http.ResponseWriter, status int, message, reason string) {
	g.logger.Warn().
		Str("event", "ADMISSION_DENIED").
		Str("reason", reason).
		Msg("request denied")
	if g.onDenial != nil {
		g.onDenial(reason)
	}

	// Built as a plain map: the denial shape always carries an explicit
	// empty context object, which omitempty on the shared struct would drop.
	body := map[string]any{
		"sender":  "synapsys-guard",
		"content": message,
		"metadata": map[string]any{
			"status": "blocked",
			"reason": reason,
		},
		"context":   map[string]any{},
		"timestamp": g.now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
