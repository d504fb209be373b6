package browse

import "strings"

const (
	CategoryAll       = "all"
	CategoryFavorites = "favorites"
)

// categoryTargets maps a browse category to the body-part substrings it matches.
var categoryTargets = map[string][]string{
	"chest":     {"chest"},
	"back":      {"back"},
	"shoulders": {"shoulders", "delts"},
	"arms":      {"biceps", "triceps", "forearms", "upper arms", "lower arms"},
	"legs":      {"quadriceps", "hamstrings", "glutes", "calves", "upper legs", "lower legs", "adductors", "abductors"},
	"core":      {"abs", "waist", "core", "obliques"},
	"cardio":    {"cardio"},
	"neck":      {"neck"},
}

var categories = []string{
	CategoryAll,
	CategoryFavorites,
	"chest",
	"back",
	"shoulders",
	"arms",
	"legs",
	"core",
	"cardio",
	"neck",
}

// Categories returns the known categories in display order.
func Categories() []string {
	return append([]string(nil), categories...)
}

func normalizeCategory(category string) string {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return CategoryAll
	}
	return category
}

// targetsFor returns the lower-cased substrings of category. A category
// without a mapping matches body parts containing its own name.
func targetsFor(category string) []string {
	if targets, ok := categoryTargets[category]; ok {
		return targets
	}
	return []string{category}
}

func matchesBodyParts(bodyParts []string, targets []string) bool {
	for _, part := range bodyParts {
		part = strings.ToLower(part)
		for _, target := range targets {
			if strings.Contains(part, target) {
				return true
			}
		}
	}
	return false
}
