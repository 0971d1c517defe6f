package claim

import (
	"math"

	"github.com/ignatzorin/autoclaim-backend/internal/domain/entity"
	"github.com/ignatzorin/autoclaim-backend/internal/domain/valueobject"
)

const DefaultBaseAmount = 1000

// EstimateConfig задаёт базовую сумму и множители по уровню повреждений.
type EstimateConfig struct {
	BaseAmount  float64
	Multipliers map[valueobject.Severity]float64
}

func DefaultEstimateConfig() EstimateConfig {
	return EstimateConfig{
		BaseAmount: DefaultBaseAmount,
		Multipliers: map[valueobject.Severity]float64{
			valueobject.SeverityMinor:    1,
			valueobject.SeverityModerate: 2.5,
			valueobject.SeveritySevere:   5,
		},
	}
}

// Aggregator сводит анализы отдельных изображений в общую оценку заявки.
type Aggregator struct {
	cfg EstimateConfig
}

// NewAggregator дополняет незаданные значения конфигурации значениями по умолчанию.
func NewAggregator(cfg EstimateConfig) *Aggregator {
	defaults := DefaultEstimateConfig()
	if cfg.BaseAmount <= 0 {
		cfg.BaseAmount = defaults.BaseAmount
	}
	multipliers := make(map[valueobject.Severity]float64, len(defaults.Multipliers))
	for severity, m := range defaults.Multipliers {
		if custom, ok := cfg.Multipliers[severity]; ok && custom > 0 {
			m = custom
		}
		multipliers[severity] = m
	}
	cfg.Multipliers = multipliers
	return &Aggregator{cfg: cfg}
}

// Aggregate возвращает максимальный уровень повреждений и оценку суммы.
// Уверенность анализа на результат не влияет.
func (a *Aggregator) Aggregate(analyses []entity.DamageAnalysis) (valueobject.Severity, float64) {
	overall := valueobject.SeverityMinor
	for _, analysis := range analyses {
		if analysis.Failed || !analysis.Severity.IsValid() {
			continue
		}
		overall = overall.Max(analysis.Severity)
	}
	return overall, a.Estimate(overall)
}

func (a *Aggregator) Estimate(severity valueobject.Severity) float64 {
	amount := a.cfg.BaseAmount * a.cfg.Multipliers[severity]
	return math.Round(amount*100) / 100
}
