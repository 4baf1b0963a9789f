// Package auth implements the signed-request admission protocol: request
// canonicalization, HMAC-SHA256 signature verification, replay prevention,
// and the HTTP admission gate that fronts the chat endpoint.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// BodyHash returns the lowercase hex SHA-256 digest of the raw request body.
// An empty body hashes the empty byte string.
func BodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// CanonicalV1 builds the exact byte string that is signed: the "v1" tuple
// joined by newlines. Method is upper-cased; every other value is taken as
// given.
func CanonicalV1(method, pathWithQuery, sender, timestamp, nonce, bodyHashHex string) string {
	return strings.Join([]string{
		"v1",
		strings.ToUpper(method),
		pathWithQuery,
		sender,
		timestamp,
		nonce,
		bodyHashHex,
	}, "\n")
}

// Sign computes base64(HMAC-SHA256(secret, canonical)) over the UTF-8 bytes of
// both inputs.
func Sign(secret, canonical string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(canonical))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the expected signature and compares it to the provided
// one in constant time. Blank inputs always fail; Verify never panics.
func Verify(provided, secret, canonical string) bool {
	if strings.TrimSpace(provided) == "" || strings.TrimSpace(secret) == "" {
		return false
	}
	expected := Sign(secret, canonical)
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}
