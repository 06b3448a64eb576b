package models

import "strings"

// Level is the ordered verification tier governing what privileges a user
// unlocks. Comparisons always use LevelValue, never string equality.
type Level string

const (
	LevelNone     Level = "NONE"
	LevelBasic    Level = "BASIC"
	LevelStandard Level = "STANDARD"
	LevelAdvanced Level = "ADVANCED"
	LevelEnhanced Level = "ENHANCED"
)

var levelValues = map[Level]int{
	LevelNone:     0,
	LevelBasic:    1,
	LevelStandard: 2,
	LevelAdvanced: 3,
	LevelEnhanced: 4,
}

// LevelValue returns the numeric rank of a level. Unknown strings map to 0
// (the lowest tier) rather than failing, so malformed vendor data can never
// grant privileges.
func LevelValue(l Level) int {
	return levelValues[l]
}

// AtLeast reports whether l ranks at or above other.
func (l Level) AtLeast(other Level) bool {
	return LevelValue(l) >= LevelValue(other)
}

// ParseLevel normalizes a level string. Unrecognized input yields LevelNone.
func ParseLevel(s string) Level {
	l := Level(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := levelValues[l]; ok {
		return l
	}
	return LevelNone
}
