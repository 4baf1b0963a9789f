package domain

import (
	"fmt"
	"strings"
)

// SenderConfig is the immutable per-sender configuration record. It is loaded
// once, validated, and cached for the process lifetime; a restart is required
// to pick up changes.
type SenderConfig struct {
	SenderID              string `json:"senderId"`
	ClientKey             string `json:"synapsysClientKey"`
	ProviderID            string `json:"providerId"`
	Model                 string `json:"model"`
	SystemInstructionPath string `json:"systemInstructionPath"`
	FileSearchStoreName   string `json:"fileSearchStoreName"`
}

// Validate fails closed when any required field is missing or blank.
func (c SenderConfig) Validate(source string) error {
	if err := requireNonBlank(c.SenderID, "senderId", source); err != nil {
		return err
	}
	if err := requireNonBlank(c.ClientKey, "synapsysClientKey", source); err != nil {
		return err
	}
	return requireNonBlank(c.ProviderID, "providerId", source)
}

func requireNonBlank(value, field, source string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing/blank %q in %s", field, source)
	}
	return nil
}
