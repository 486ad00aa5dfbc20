package artifact

import "strings"

// Medallion levels.
const (
	LevelBronze = "bronze"
	LevelSilver = "silver"
	LevelGold   = "gold"
)

// excludedGoldPackage holds utility models that live in gold-looking
// schemas but are not consumer-facing tables.
const excludedGoldPackage = "fsc_utils"

// ValidLevel reports whether s names a known medallion level.
func ValidLevel(s string) bool {
	switch s {
	case LevelBronze, LevelSilver, LevelGold:
		return true
	}
	return false
}

// MatchesLevel reports whether a model node belongs to the given medallion
// level. A node matches when the level name appears in any fqn segment or
// in its schema. Gold additionally excludes the shared utility package.
func MatchesLevel(n *ManifestNode, level string) bool {
	if level == LevelGold && strings.Contains(n.UniqueID, excludedGoldPackage) {
		return false
	}
	if strings.Contains(strings.ToLower(n.Schema), level) {
		return true
	}
	for _, part := range n.FQN {
		if strings.Contains(strings.ToLower(part), level) {
			return true
		}
	}
	return false
}
