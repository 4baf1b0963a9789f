package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/everlydev/synapsys/pkg/auth"
	"github.com/everlydev/synapsys/pkg/domain"
)

// handleChat decodes the signed chat request and hands it to the broker. The
// sender always comes from the authenticated principal, never from the body.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("Bad request."))
		return
	}

	var inbound domain.InboundMessage
	if err := json.Unmarshal(auth.BodyFromContext(r.Context()), &inbound); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Bad request."))
		return
	}

	principal := auth.SenderFromContext(r.Context())
	msg, err := domain.NewApplicationMessage(principal, inbound.Content, inbound.Context)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Bad request."))
		return
	}

	resp, err := s.broker.Dispatch(r.Context(), msg)
	if err != nil {
		s.writeDispatchError(w, r, msg.Sender, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeDispatchError maps broker failures onto the response contract: guard
// violations become a 403 blocked envelope with a user-safe message, known
// configuration errors become a 400, everything else a 500. Evidence and
// internal detail stay in the logs.
func (s *Server) writeDispatchError(w http.ResponseWriter, r *http.Request, sender string, err error) {
	var violation *domain.GuardViolation
	if errors.As(err, &violation) {
		s.logger.Warn().
			Str("event", "TX_BLOCKED").
			Str("trace_id", TraceIDFromContext(r.Context())).
			Str("sender", sender).
			Str("guard", violation.GuardID).
			Str("reason", violation.ReasonCode).
			Any("evidence", violation.Evidence).
			Msg("request blocked")
		s.metrics.RecordGuardBlock(violation.ReasonCode, violation.GuardID)

		message := violation.UserMessage
		if message == "" {
			message = domain.DefaultUserMessage(violation.ReasonCode)
		}
		writeJSON(w, http.StatusForbidden, domain.SynapsysResponse{
			Sender:  "synapsys-guard",
			Content: message,
			Metadata: map[string]any{
				"status": "blocked",
				"reason": domain.ClientReason(violation.ReasonCode),
			},
		})
		return
	}

	if errors.Is(err, domain.ErrUnknownProvider) || errors.Is(err, domain.ErrNoStrategy) {
		s.logger.Error().
			Str("trace_id", TraceIDFromContext(r.Context())).
			Str("sender", sender).
			Err(err).
			Msg("dispatch misconfigured")
		writeJSON(w, http.StatusBadRequest, errorBody("Bad request."))
		return
	}

	s.logger.Error().
		Str("trace_id", TraceIDFromContext(r.Context())).
		Str("sender", sender).
		Err(err).
		Msg("dispatch failed")
	writeInternalError(w)
}

func errorBody(message string) domain.SynapsysResponse {
	return domain.SynapsysResponse{
		Sender:   "system",
		Content:  message,
		Metadata: map[string]any{"status": "error"},
	}
}

func writeInternalError(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, errorBody("An internal server error occurred."))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
