package vision

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/ignatzorin/autoclaim-backend/internal/domain/entity"
	"github.com/ignatzorin/autoclaim-backend/internal/domain/valueobject"
)

var (
	mockSeverities  = []valueobject.Severity{valueobject.SeverityMinor, valueobject.SeverityModerate, valueobject.SeveritySevere}
	mockDamageTypes = []string{"dent", "scratch", "paint damage", "crack"}
)

// MockAnalyzer выдаёт детерминированный результат по хешу ссылки; используется
// в разработке и когда провайдер анализа не настроен.
type MockAnalyzer struct{}

func NewMockAnalyzer() *MockAnalyzer {
	return &MockAnalyzer{}
}

func (m *MockAnalyzer) Analyze(ctx context.Context, reference string) (entity.DamageAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return entity.DamageAnalysis{}, err
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(reference))
	sum := h.Sum64()

	severity := mockSeverities[sum%uint64(len(mockSeverities))]
	count := int(sum>>8%3) + 1
	start := int(sum >> 16 % uint64(len(mockDamageTypes)))
	types := make([]string, 0, count)
	for i := 0; i < count; i++ {
		types = append(types, mockDamageTypes[(start+i)%len(mockDamageTypes)])
	}
	// 0.75..0.95 с шагом 0.01
	confidence := 0.75 + float64(sum>>24%21)/100

	return entity.DamageAnalysis{
		Severity:    severity,
		Confidence:  confidence,
		DamageTypes: types,
		Description: fmt.Sprintf("Vehicle with %s damage detected", severity),
	}, nil
}
