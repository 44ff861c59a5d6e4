package analytics

import (
	"math"

	"hud-telemetry-service/internal/models"
)

// AnomalyRatio порог отклонения от среднего окна (40%)
const AnomalyRatio = 0.4

// Detect помечает точки, отклоняющиеся от среднего окна больше чем на 40% среднего.
// Равенство порогу аномалией не считается. Результат всегда той же длины, что и вход.
func Detect(window []models.TelemetrySample) []models.AnomalyFlag {
	values := make([]float64, len(window))
	for i, s := range window {
		values[i] = s.Metric
	}
	return DetectValues(values)
}

// DetectValues то же, что Detect, для голых значений
func DetectValues(values []float64) []models.AnomalyFlag {
	flags := make([]models.AnomalyFlag, len(values))
	if len(values) == 0 {
		return flags
	}

	mu := mean(values)
	// порог без деления: при mu == 0 порог 0, и аномалией считается любое ненулевое значение
	threshold := mu * AnomalyRatio

	for i, v := range values {
		flags[i] = models.AnomalyFlag{
			Index:     i,
			Value:     v,
			IsAnomaly: math.Abs(v-mu) > threshold,
		}
	}
	return flags
}

// CountAnomalies возвращает количество помеченных точек
func CountAnomalies(flags []models.AnomalyFlag) int {
	n := 0
	for _, f := range flags {
		if f.IsAnomaly {
			n++
		}
	}
	return n
}
