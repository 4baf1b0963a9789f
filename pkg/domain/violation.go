package domain

// Guard violation reason codes.
const (
	ReasonInvalidRequest    = "INVALID_REQUEST"
	ReasonInputTooLarge     = "INPUT_TOO_LARGE"
	ReasonInjectionDetected = "INJECTION_DETECTED"
	ReasonProviderTimeout   = "PROVIDER_TIMEOUT"
	ReasonSystemLeakage     = "SYSTEM_LEAKAGE"
	ReasonUnavailable       = "UNAVAILABLE"
)

// GuardViolation is raised by a pre-flight guard (or the broker itself) to
// abort a request. Evidence is for server-side diagnostics only and is never
// echoed to the caller beyond UserMessage.
type GuardViolation struct {
	ReasonCode  string
	UserMessage string
	GuardID     string
	Evidence    map[string]any
}

func (v *GuardViolation) Error() string {
	return "guard violation: " + v.ReasonCode
}

// NewGuardViolation normalizes missing fields the way callers expect.
func NewGuardViolation(reasonCode, userMessage, guardID string, evidence map[string]any) *GuardViolation {
	if reasonCode == "" {
		reasonCode = "policy"
	}
	if guardID == "" {
		guardID = "unknown_guard"
	}
	if evidence == nil {
		evidence = map[string]any{}
	}
	return &GuardViolation{
		ReasonCode:  reasonCode,
		UserMessage: userMessage,
		GuardID:     guardID,
		Evidence:    evidence,
	}
}

// DefaultUserMessage maps a reason code to a fixed user-safe message used when
// the guard did not provide one.
func DefaultUserMessage(reasonCode string) string {
	switch reasonCode {
	case ReasonInputTooLarge:
		return "Your message is too long. Please shorten it and try again."
	case ReasonInjectionDetected:
		return "I can't help with attempts to override instructions or reveal internal data."
	case ReasonProviderTimeout:
		return "The upstream model timed out. Please try again."
	case ReasonSystemLeakage:
		return "I can't share internal instructions or hidden policies."
	default:
		return "Request blocked by policy."
	}
}

// ClientReason coarsens a reason code into the small vocabulary exposed to
// callers.
func ClientReason(reasonCode string) string {
	switch reasonCode {
	case ReasonInputTooLarge:
		return "invalid_request"
	case ReasonProviderTimeout:
		return "unavailable"
	default:
		return "policy"
	}
}
