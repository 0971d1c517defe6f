package vision

import (
	"strings"

	"github.com/ignatzorin/autoclaim-backend/internal/domain/valueobject"
)

const generalDamage = "general damage"

var (
	severeKeywords = []string{
		"crashed", "destroyed", "totaled", "severe", "major", "extensive",
		"crushed", "mangled", "shattered", "broken", "smashed",
	}
	moderateKeywords = []string{
		"damaged", "dented", "scratched", "bent", "cracked", "moderate",
		"medium", "significant", "noticeable",
	}
	minorKeywords = []string{
		"minor", "small", "light", "superficial", "tiny", "slight",
	}
	vehicleObjects = []string{"car", "vehicle", "truck", "automobile"}
)

// Порядок важен: теги выдаются в этом порядке.
var damageTypeKeywords = []struct {
	tag      string
	keywords []string
}{
	{"dent", []string{"dent", "dented", "depression"}},
	{"scratch", []string{"scratch", "scratched", "scrape"}},
	{"crack", []string{"crack", "cracked", "split"}},
	{"break", []string{"broken", "shattered", "smashed"}},
	{"rust", []string{"rust", "corrosion", "oxidation"}},
	{"paint damage", []string{"paint", "color", "coating"}},
}

// ClassifySeverity определяет уровень повреждений по ключевым словам в
// описании и списке распознанных объектов.
func ClassifySeverity(description string, labels []string) valueobject.Severity {
	text := strings.ToLower(description + " " + strings.Join(labels, " "))

	switch {
	case containsAny(text, severeKeywords):
		return valueobject.SeveritySevere
	case containsAny(text, moderateKeywords):
		return valueobject.SeverityModerate
	case containsAny(text, minorKeywords):
		return valueobject.SeverityMinor
	}

	for _, label := range labels {
		for _, obj := range vehicleObjects {
			if strings.EqualFold(strings.TrimSpace(label), obj) {
				return valueobject.SeverityModerate
			}
		}
	}
	return valueobject.SeverityMinor
}

// ExtractDamageTypes сопоставляет метки с типами повреждений. Пустой
// результат заменяется на "general damage".
func ExtractDamageTypes(labels []string) []string {
	lowered := make([]string, 0, len(labels))
	for _, l := range labels {
		lowered = append(lowered, strings.ToLower(l))
	}

	var types []string
	for _, entry := range damageTypeKeywords {
		if anyContains(lowered, entry.keywords) {
			types = append(types, entry.tag)
		}
	}
	if len(types) == 0 {
		return []string{generalDamage}
	}
	return types
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func anyContains(items, keywords []string) bool {
	for _, item := range items {
		if containsAny(item, keywords) {
			return true
		}
	}
	return false
}
