package analytics

import (
	"math"
	"strconv"
)

const (
	// DefaultScoreLastK количество последних точек для скора
	DefaultScoreLastK = 6
	// ScoreMultiplier множитель хеш-подобной формулы скора
	ScoreMultiplier = 73129
)

// PredictiveScore детерминированная заглушка вместо ML-инференса:
// (сумма последних lastK значений * 73129) mod 100, округленная до 2 знаков.
// Результат всегда в [0, 100).
func PredictiveScore(values []float64, lastK int) float64 {
	if lastK < 0 {
		lastK = 0
	}
	if len(values) > lastK {
		values = values[len(values)-lastK:]
	}

	var sum float64
	for _, v := range values {
		sum += v
	}

	raw := math.Mod(sum*ScoreMultiplier, 100)
	if math.IsNaN(raw) {
		return 0
	}
	if raw < 0 {
		raw += 100
	}

	score := math.Floor(raw*100+0.5) / 100
	if score >= 100 {
		score -= 100
	}
	return score
}

// Confidence представление скора для UI: score/100 с двумя знаками
func Confidence(score float64) string {
	return strconv.FormatFloat(score/100, 'f', 2, 64)
}
