package enums

import "fmt"

// PointRuleType selects how a task completion is converted into points.
type PointRuleType string

const (
	PointRuleFixed     PointRuleType = "fixed"
	PointRulePerAmount PointRuleType = "per_amount"
)

var validPointRuleTypes = []PointRuleType{
	PointRuleFixed,
	PointRulePerAmount,
}

// IsValid reports whether the value matches the canonical point rule enum.
func (t PointRuleType) IsValid() bool {
	for _, candidate := range validPointRuleTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParsePointRuleType converts raw input into PointRuleType.
func ParsePointRuleType(value string) (PointRuleType, error) {
	for _, candidate := range validPointRuleTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid point rule type %q", value)
}
