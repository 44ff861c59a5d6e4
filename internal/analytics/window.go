// Package analytics реализует окно телеметрии и заглушки аналитики:
// синтетический генератор, детектор аномалий (порог 40% от среднего)
// и детерминированный "предиктивный" скор.
package analytics

import (
	"errors"
	"fmt"

	"hud-telemetry-service/internal/models"
)

const (
	// DefaultWindowSize размер окна телеметрии (40 точек)
	DefaultWindowSize = 40
)

// ErrInvalidSeedLength длина начальных данных не совпадает с размером окна
var ErrInvalidSeedLength = errors.New("seed length does not match window size")

// Window реализует скользящее окно фиксированной длины.
// Хранит точки в кольцевом буфере, самая старая вытесняется при добавлении.
type Window struct {
	values []models.TelemetrySample
	size   int
	index  int
	count  int
}

// NewWindow создает пустое окно заданного размера
func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{
		values: make([]models.TelemetrySample, size),
		size:   size,
	}
}

// Reset заполняет окно начальными данными; длина seed должна быть равна размеру окна
func (w *Window) Reset(seed []models.TelemetrySample) error {
	if len(seed) != w.size {
		return fmt.Errorf("%w: got %d, want %d", ErrInvalidSeedLength, len(seed), w.size)
	}
	copy(w.values, seed)
	w.index = 0
	w.count = w.size
	return nil
}

// Push добавляет точку, вытесняя самую старую при заполненном окне
func (w *Window) Push(s models.TelemetrySample) {
	w.values[w.index] = s
	w.index = (w.index + 1) % w.size
	if w.count < w.size {
		w.count++
	}
}

// Last возвращает самую новую точку
func (w *Window) Last() (models.TelemetrySample, bool) {
	if w.count == 0 {
		return models.TelemetrySample{}, false
	}
	return w.values[(w.index-1+w.size)%w.size], true
}

// Samples возвращает копию окна от самой старой точки к самой новой
func (w *Window) Samples() []models.TelemetrySample {
	out := make([]models.TelemetrySample, w.count)
	start := (w.index - w.count + w.size) % w.size
	for i := 0; i < w.count; i++ {
		out[i] = w.values[(start+i)%w.size]
	}
	return out
}

// Values возвращает значения метрики в порядке окна
func (w *Window) Values() []float64 {
	samples := w.Samples()
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Metric
	}
	return out
}

// Len возвращает количество точек в окне
func (w *Window) Len() int {
	return w.count
}

// Size возвращает максимальную длину окна
func (w *Window) Size() int {
	return w.size
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
