package enums

import "fmt"

// CompletionStatus maps to the completion_status_enum enum in Postgres.
// Completions are append-only facts, so today the only value written is
// "completed"; the enum exists so a future refund/reversal row is typed.
type CompletionStatus string

const (
	CompletionStatusCompleted CompletionStatus = "completed"
)

var validCompletionStatuses = []CompletionStatus{
	CompletionStatusCompleted,
}

// IsValid reports whether the value matches the canonical completion status enum.
func (s CompletionStatus) IsValid() bool {
	for _, candidate := range validCompletionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseCompletionStatus converts raw input into CompletionStatus.
func ParseCompletionStatus(value string) (CompletionStatus, error) {
	for _, candidate := range validCompletionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid completion status %q", value)
}
