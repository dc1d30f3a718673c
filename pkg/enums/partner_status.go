package enums

import "fmt"

// PartnerStatus maps to the partner_status_enum enum in Postgres.
type PartnerStatus string

const (
	PartnerStatusActive PartnerStatus = "active"
	PartnerStatusFrozen PartnerStatus = "frozen"
)

var validPartnerStatuses = []PartnerStatus{
	PartnerStatusActive,
	PartnerStatusFrozen,
}

// IsValid reports whether the value matches the canonical partner status enum.
func (s PartnerStatus) IsValid() bool {
	for _, candidate := range validPartnerStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePartnerStatus converts raw input into PartnerStatus.
func ParsePartnerStatus(value string) (PartnerStatus, error) {
	for _, candidate := range validPartnerStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid partner status %q", value)
}
