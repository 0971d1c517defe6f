package valueobject

import (
	"strings"

	"github.com/ignatzorin/autoclaim-backend/internal/pkg/apperror"
)

// Severity — категория повреждений. Порядок: minor < moderate < severe.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

var severityRank = map[Severity]int{
	SeverityMinor:    1,
	SeverityModerate: 2,
	SeveritySevere:   3,
}

func (s Severity) IsValid() bool {
	_, ok := severityRank[s]
	return ok
}

// Rank возвращает порядковый номер уровня; 0 для неизвестного значения.
func (s Severity) Rank() int {
	return severityRank[s]
}

// Max возвращает более тяжёлый из двух уровней.
func (s Severity) Max(other Severity) Severity {
	if other.Rank() > s.Rank() {
		return other
	}
	return s
}

func (s Severity) String() string {
	return string(s)
}

func NewSeverity(value string) (Severity, error) {
	s := Severity(strings.ToLower(strings.TrimSpace(value)))
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный уровень повреждений")
	}
	return s, nil
}
