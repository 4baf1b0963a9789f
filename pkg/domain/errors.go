package domain

import (
	"errors"
	"fmt"
)

// Common domain errors.
var (
	ErrSenderNotFound  = errors.New("sender config not found")
	ErrUnknownProvider = errors.New("unknown provider")
	ErrNoStrategy      = errors.New("no sender strategy matched")
)

// ProviderErrorType classifies provider failures for retry hints and neutral
// user messaging.
type ProviderErrorType string

const (
	ProviderErrRateLimit      ProviderErrorType = "rate_limit"
	ProviderErrUnavailable    ProviderErrorType = "unavailable"
	ProviderErrInvalidRequest ProviderErrorType = "invalid_request"
	ProviderErrKey            ProviderErrorType = "key"
	ProviderErrUnknown        ProviderErrorType = "unknown"
)

// ProviderError wraps a failure reported by (or while talking to) an LLM
// provider.
type ProviderError struct {
	Type    ProviderErrorType
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider error (%s): %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("provider error (%s): %s", e.Type, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may reasonably retry later.
func (e *ProviderError) Retryable() bool {
	return e.Type == ProviderErrRateLimit || e.Type == ProviderErrUnavailable
}

// NeutralMessage returns a user-safe message that leaks no provider detail.
func (e *ProviderError) NeutralMessage() string {
	switch e.Type {
	case ProviderErrRateLimit:
		return "I'm rate-limited right now. Please try again in a moment."
	case ProviderErrUnavailable:
		return "The model provider is temporarily unavailable. Please try again shortly."
	case ProviderErrKey:
		return "Service is misconfigured (provider key). Please try again later."
	case ProviderErrInvalidRequest:
		return "That request couldn't be processed. Please rephrase and try again."
	default:
		return "Error communicating with the model. Please try again later."
	}
}

// NewProviderError builds a ProviderError.
func NewProviderError(t ProviderErrorType, message string, err error) *ProviderError {
	return &ProviderError{Type: t, Message: message, Err: err}
}
