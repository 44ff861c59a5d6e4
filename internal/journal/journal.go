// Package journal реализует ограниченный журнал событий HUD.
// Записи хранятся от новых к старым; при превышении емкости
// отбрасываются самые старые.
package journal

import (
	"sync"
	"time"

	"hud-telemetry-service/internal/models"
)

// DefaultCapacity емкость журнала по умолчанию
const DefaultCapacity = 200

// Journal кольцевой буфер записей журнала
type Journal struct {
	mu       sync.RWMutex
	entries  []models.LogEntry
	capacity int
	next     int
	count    int
	total    uint64
	now      func() time.Time
}

// New создает журнал заданной емкости; now задает источник времени (nil — time.Now)
func New(capacity int, now func() time.Time) *Journal {
	if capacity < 1 {
		capacity = 1
	}
	if now == nil {
		now = time.Now
	}
	return &Journal{
		entries:  make([]models.LogEntry, capacity),
		capacity: capacity,
		now:      now,
	}
}

// Append добавляет запись с текущим временем
func (j *Journal) Append(level models.Level, message string, data interface{}) models.LogEntry {
	entry := models.LogEntry{
		Timestamp: j.now(),
		Level:     level,
		Message:   message,
		Data:      data,
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	j.entries[j.next] = entry
	j.next = (j.next + 1) % j.capacity
	if j.count < j.capacity {
		j.count++
	}
	j.total++
	return entry
}

// Entries возвращает копию записей от новых к старым
func (j *Journal) Entries() []models.LogEntry {
	return j.Latest(0)
}

// Latest возвращает не более n самых новых записей; n <= 0 означает все
func (j *Journal) Latest(n int) []models.LogEntry {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if n <= 0 || n > j.count {
		n = j.count
	}
	out := make([]models.LogEntry, n)
	for i := 0; i < n; i++ {
		out[i] = j.entries[(j.next-1-i+2*j.capacity)%j.capacity]
	}
	return out
}

// Len возвращает количество хранимых записей
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.count
}

// Capacity возвращает максимальное количество хранимых записей
func (j *Journal) Capacity() int {
	return j.capacity
}

// Total возвращает количество записей, добавленных за все время
func (j *Journal) Total() uint64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.total
}
