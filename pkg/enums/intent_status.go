package enums

import "fmt"

// IntentStatus tracks an ephemeral payment intent from creation to sweep.
type IntentStatus string

const (
	IntentStatusPending   IntentStatus = "pending"
	IntentStatusCaptured  IntentStatus = "captured"
	IntentStatusConsumed  IntentStatus = "consumed"
	IntentStatusFailed    IntentStatus = "failed"
	IntentStatusAbandoned IntentStatus = "abandoned"
	IntentStatusFlagged   IntentStatus = "flagged"
)

var validIntentStatuses = []IntentStatus{
	IntentStatusPending,
	IntentStatusCaptured,
	IntentStatusConsumed,
	IntentStatusFailed,
	IntentStatusAbandoned,
	IntentStatusFlagged,
}

// IsValid reports whether the value is a known IntentStatus.
func (i IntentStatus) IsValid() bool {
	for _, candidate := range validIntentStatuses {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseIntentStatus converts raw input into an IntentStatus.
func ParseIntentStatus(value string) (IntentStatus, error) {
	for _, candidate := range validIntentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid intent status %q", value)
}
