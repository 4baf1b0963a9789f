package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everlydev/synapsys/pkg/domain"
)

type fakeConfigSource struct {
	configs map[string]domain.SenderConfig
}

func (f *fakeConfigSource) GetRequired(_ context.Context, sender string) (domain.SenderConfig, error) {
	cfg, ok := f.configs[sender]
	if !ok {
		return domain.SenderConfig{}, fmt.Errorf("%w: %s", domain.ErrSenderNotFound, sender)
	}
	return cfg, nil
}

type gateHarness struct {
	handler http.Handler
	now     time.Time
	denials []string
	admits  int
	sender  string
}

func newGateHarness(t *testing.T, configs map[string]domain.SenderConfig) *gateHarness {
	t.Helper()
	h := &gateHarness{now: time.Unix(1_700_000_000, 0)}

	gate := NewGate(GateConfig{
		Registry: &fakeConfigSource{configs: configs},
		Ledger:   NewNonceLedger(DefaultNonceTTL, DefaultNonceMaxEntries),
		Logger:   zerolog.Nop(),
		Now:      func() time.Time { return h.now },
		OnDenial: func(reason string) { h.denials = append(h.denials, reason) },
	})

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.admits++
		h.sender = SenderFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h.handler = CachedBody(DefaultMaxBodyBytes, gate.Wrap(inner))
	return h
}

func (h *gateHarness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

// signedRequest builds a fully-signed chat request against the harness clock.
func (h *gateHarness) signedRequest(sender, secret, nonce, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	ts := strconv.FormatInt(h.now.Unix(), 10)
	canonical := CanonicalV1(http.MethodPost, "/api/v1/chat", sender, ts, nonce, BodyHash([]byte(body)))
	req.Header.Set(HeaderSender, sender)
	req.Header.Set(HeaderTimestamp, ts)
	req.Header.Set(HeaderNonce, nonce)
	req.Header.Set(HeaderSignature, Sign(secret, canonical))
	return req
}

func acmeConfigs() map[string]domain.SenderConfig {
	return map[string]domain.SenderConfig{
		"acme": {SenderID: "acme", ClientKey: "s3cr3t", ProviderID: "gemini"},
	}
}

func decodeDenial(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestGateAdmitsValidSignature(t *testing.T) {
	h := newGateHarness(t, acmeConfigs())

	rec := h.do(h.signedRequest("acme", "s3cr3t", "nonce-1", `{"content":"hello","context":{}}`))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, h.admits)
	assert.Equal(t, "acme", h.sender)
	assert.Empty(t, h.denials)
}

func TestGatePrincipalKeepsRawCase(t *testing.T) {
	configs := map[string]domain.SenderConfig{
		"acme-corp": {SenderID: "acme-corp", ClientKey: "k", ProviderID: "gemini"},
	}
	h := newGateHarness(t, configs)

	// Signed with the raw header value; lookup is by the normalized id.
	rec := h.do(h.signedRequest("Acme-Corp", "k", "n1", ""))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Acme-Corp", h.sender, "principal is the raw header value")
}

func TestGateDenialTable(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(h *gateHarness, req *http.Request)
		wantStatus int
		wantReason string
	}{
		{
			name:       "missing sender",
			mutate:     func(_ *gateHarness, req *http.Request) { req.Header.Del(HeaderSender) },
			wantStatus: http.StatusUnauthorized,
			wantReason: ReasonMissingSender,
		},
		{
			name:       "blank sender",
			mutate:     func(_ *gateHarness, req *http.Request) { req.Header.Set(HeaderSender, "   ") },
			wantStatus: http.StatusUnauthorized,
			wantReason: ReasonMissingSender,
		},
		{
			name:       "invalid sender format",
			mutate:     func(_ *gateHarness, req *http.Request) { req.Header.Set(HeaderSender, "bad sender!") },
			wantStatus: http.StatusBadRequest,
			wantReason: ReasonInvalidSenderFormat,
		},
		{
			name: "sender too long",
			mutate: func(_ *gateHarness, req *http.Request) {
				req.Header.Set(HeaderSender, strings.Repeat("a", 65))
			},
			wantStatus: http.StatusBadRequest,
			wantReason: ReasonInvalidSenderFormat,
		},
		{
			name:       "reserved sender",
			mutate:     func(_ *gateHarness, req *http.Request) { req.Header.Set(HeaderSender, "system") },
			wantStatus: http.StatusForbidden,
			wantReason: ReasonReservedSender,
		},
		{
			name:       "reserved sender mixed case",
			mutate:     func(_ *gateHarness, req *http.Request) { req.Header.Set(HeaderSender, "AdMiN") },
			wantStatus: http.StatusForbidden,
			wantReason: ReasonReservedSender,
		},
		{
			name:       "missing signature headers",
			mutate:     func(_ *gateHarness, req *http.Request) { req.Header.Del(HeaderSignature) },
			wantStatus: http.StatusUnauthorized,
			wantReason: ReasonMissingSignatureHeaders,
		},
		{
			name:       "missing nonce",
			mutate:     func(_ *gateHarness, req *http.Request) { req.Header.Del(HeaderNonce) },
			wantStatus: http.StatusUnauthorized,
			wantReason: ReasonMissingSignatureHeaders,
		},
		{
			name:       "non-numeric timestamp",
			mutate:     func(_ *gateHarness, req *http.Request) { req.Header.Set(HeaderTimestamp, "yesterday") },
			wantStatus: http.StatusBadRequest,
			wantReason: ReasonInvalidTimestamp,
		},
		{
			name: "timestamp too old",
			mutate: func(h *gateHarness, req *http.Request) {
				req.Header.Set(HeaderTimestamp, strconv.FormatInt(h.now.Unix()-61, 10))
			},
			wantStatus: http.StatusUnauthorized,
			wantReason: ReasonTimestampOutOfWindow,
		},
		{
			name: "timestamp too far ahead",
			mutate: func(h *gateHarness, req *http.Request) {
				req.Header.Set(HeaderTimestamp, strconv.FormatInt(h.now.Unix()+61, 10))
			},
			wantStatus: http.StatusUnauthorized,
			wantReason: ReasonTimestampOutOfWindow,
		},
		{
			// A second count whose difference from now would wrap when
			// multiplied into a time.Duration.
			name: "timestamp in the distant past",
			mutate: func(h *gateHarness, req *http.Request) {
				req.Header.Set(HeaderTimestamp, strconv.FormatInt(h.now.Unix()-(1<<55), 10))
			},
			wantStatus: http.StatusUnauthorized,
			wantReason: ReasonTimestampOutOfWindow,
		},
		{
			name: "timestamp at int64 minimum",
			mutate: func(_ *gateHarness, req *http.Request) {
				req.Header.Set(HeaderTimestamp, strconv.FormatInt(math.MinInt64, 10))
			},
			wantStatus: http.StatusUnauthorized,
			wantReason: ReasonTimestampOutOfWindow,
		},
		{
			name: "timestamp at int64 maximum",
			mutate: func(_ *gateHarness, req *http.Request) {
				req.Header.Set(HeaderTimestamp, strconv.FormatInt(math.MaxInt64, 10))
			},
			wantStatus: http.StatusUnauthorized,
			wantReason: ReasonTimestampOutOfWindow,
		},
		{
			name:       "unknown sender",
			mutate:     func(_ *gateHarness, req *http.Request) { req.Header.Set(HeaderSender, "ghost") },
			wantStatus: http.StatusUnauthorized,
			wantReason: ReasonUnknownSender,
		},
		{
			name:       "invalid signature",
			mutate:     func(_ *gateHarness, req *http.Request) { req.Header.Set(HeaderSignature, "bm90LXRoZS1zaWc=") },
			wantStatus: http.StatusUnauthorized,
			wantReason: ReasonInvalidSignature,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newGateHarness(t, acmeConfigs())
			req := h.signedRequest("acme", "s3cr3t", "nonce-1", `{"content":"hello","context":{}}`)
			tc.mutate(h, req)

			rec := h.do(req)

			require.Equal(t, tc.wantStatus, rec.Code, rec.Body.String())
			require.Equal(t, []string{tc.wantReason}, h.denials)
			assert.Zero(t, h.admits)

			body := decodeDenial(t, rec)
			assert.Equal(t, "synapsys-guard", body["sender"])
			meta, ok := body["metadata"].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, "blocked", meta["status"])
			assert.Equal(t, tc.wantReason, meta["reason"])
			assert.Equal(t, map[string]any{}, body["context"], "denials carry an explicit empty context")
			assert.NotEmpty(t, body["timestamp"])
		})
	}
}

func TestGateSkewBoundaryInclusive(t *testing.T) {
	h := newGateHarness(t, acmeConfigs())

	body := `{"content":"hi","context":{}}`
	ts := strconv.FormatInt(h.now.Unix()-60, 10)
	canonical := CanonicalV1(http.MethodPost, "/api/v1/chat", "acme", ts, "n-edge", BodyHash([]byte(body)))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	req.Header.Set(HeaderSender, "acme")
	req.Header.Set(HeaderTimestamp, ts)
	req.Header.Set(HeaderNonce, "n-edge")
	req.Header.Set(HeaderSignature, Sign("s3cr3t", canonical))

	rec := h.do(req)
	assert.Equal(t, http.StatusOK, rec.Code, "exactly 60s of skew is still admitted")
}

func TestGateReplayDetection(t *testing.T) {
	h := newGateHarness(t, acmeConfigs())

	body := `{"content":"hello","context":{}}`
	first := h.do(h.signedRequest("acme", "s3cr3t", "nonce-1", body))
	require.Equal(t, http.StatusOK, first.Code)

	replay := h.do(h.signedRequest("acme", "s3cr3t", "nonce-1", body))
	require.Equal(t, http.StatusUnauthorized, replay.Code)
	assert.Equal(t, []string{ReasonReplayDetected}, h.denials)
	assert.Equal(t, 1, h.admits)
}

func TestGateSenderNotConfigured(t *testing.T) {
	configs := map[string]domain.SenderConfig{
		"acme": {SenderID: "acme", ClientKey: "   ", ProviderID: "gemini"},
	}
	h := newGateHarness(t, configs)

	rec := h.do(h.signedRequest("acme", "whatever", "n1", ""))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, []string{ReasonSenderNotConfigured}, h.denials)
}

func TestGateSignatureCoversQueryString(t *testing.T) {
	h := newGateHarness(t, acmeConfigs())

	// Signed for the bare path, sent with a query string appended.
	req := h.signedRequest("acme", "s3cr3t", "n1", "")
	req.URL.RawQuery = "debug=1"

	rec := h.do(req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, []string{ReasonInvalidSignature}, h.denials)
}
