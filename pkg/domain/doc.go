// Package domain holds the core types shared across the gateway: chat
// messages, sender configuration, provider results, and the typed errors the
// transport boundary maps to HTTP responses.
package domain
