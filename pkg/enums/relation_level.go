package enums

import "fmt"

// RelationLevel is the depth of a hierarchy edge. The program only tracks the
// direct upline (level 1) and the precomputed grandparent edge (level 2).
type RelationLevel int

const (
	RelationLevelDirect      RelationLevel = 1
	RelationLevelGrandparent RelationLevel = 2
)

// IsValid reports whether the value is a tracked hierarchy depth.
func (l RelationLevel) IsValid() bool {
	return l == RelationLevelDirect || l == RelationLevelGrandparent
}

// ParseRelationLevel converts raw input into RelationLevel.
func ParseRelationLevel(value int) (RelationLevel, error) {
	level := RelationLevel(value)
	if !level.IsValid() {
		return 0, fmt.Errorf("invalid relation level %d", value)
	}
	return level, nil
}
