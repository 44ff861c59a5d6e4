package analytics

import (
	"math"
	"math/rand"
	"sync"

	"hud-telemetry-service/internal/models"
)

// Параметры синтетического генератора: base + amplitude*sin(t/period) + noise
const (
	DefaultBase       = 50.0
	DefaultAmplitude  = 20.0
	DefaultPeriod     = 3.0
	DefaultNoiseRange = 12.0
)

// Rand источник случайных чисел в [0, 1)
type Rand interface {
	Float64() float64
}

// lockedRand потокобезопасная обертка над *rand.Rand
type lockedRand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRand создает потокобезопасный источник случайных чисел
func NewRand(seed int64) Rand {
	return &lockedRand{rnd: rand.New(rand.NewSource(seed))}
}

func (r *lockedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Float64()
}

// Generator генерирует синтетическую телеметрию.
// Заглушка для будущего потока метрик от реального бэкенда.
type Generator struct {
	Base       float64
	Amplitude  float64
	Period     float64
	NoiseRange float64
	// Round округляет значение до целого (half-up), как это делает прототип HUD
	Round bool

	rnd Rand
}

// NewGenerator создает генератор с параметрами по умолчанию
func NewGenerator(rnd Rand) *Generator {
	return &Generator{
		Base:       DefaultBase,
		Amplitude:  DefaultAmplitude,
		Period:     DefaultPeriod,
		NoiseRange: DefaultNoiseRange,
		Round:      true,
		rnd:        rnd,
	}
}

// Value вычисляет значение метрики для индекса t
func (g *Generator) Value(t int64) float64 {
	v := g.Base + g.Amplitude*math.Sin(float64(t)/g.Period) + g.rnd.Float64()*g.NoiseRange
	if g.Round {
		v = math.Floor(v + 0.5)
	}
	return v
}

// Seed генерирует n точек с индексами 0..n-1
func (g *Generator) Seed(n int) []models.TelemetrySample {
	out := make([]models.TelemetrySample, n)
	for i := range out {
		out[i] = models.TelemetrySample{T: int64(i), Metric: g.Value(int64(i))}
	}
	return out
}

// Next генерирует точку, следующую за last
func (g *Generator) Next(last models.TelemetrySample) models.TelemetrySample {
	t := last.T + 1
	return models.TelemetrySample{T: t, Metric: g.Value(t)}
}
