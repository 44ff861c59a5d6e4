package clock

import (
	"sync"
	"time"
)

// Virtual часы, которые двигаются только через Advance.
// Задачи выполняются синхронно внутри Advance в порядке сроков,
// при равных сроках в порядке планирования.
type Virtual struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers map[uint64]*virtualTimer
}

type virtualTimer struct {
	clock  *Virtual
	id     uint64
	at     time.Time
	period time.Duration
	f      func()
}

// NewVirtual создает виртуальные часы, начинающиеся с start
func NewVirtual(start time.Time) *Virtual {
	return &Virtual{
		now:    start,
		timers: make(map[uint64]*virtualTimer),
	}
}

func (c *Virtual) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Virtual) AfterFunc(d time.Duration, f func()) Timer {
	return c.schedule(d, 0, f)
}

func (c *Virtual) Every(d time.Duration, f func()) Timer {
	if d <= 0 {
		panic("clock: non-positive interval for Every")
	}
	return c.schedule(d, d, f)
}

func (c *Virtual) schedule(d, period time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	t := &virtualTimer{
		clock:  c,
		id:     c.seq,
		at:     c.now.Add(d),
		period: period,
		f:      f,
	}
	c.timers[t.id] = t
	return t
}

// Advance сдвигает время на d, выполняя все задачи со сроком не позже нового времени
func (c *Virtual) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.earliest(target)
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = next.at
		if next.period > 0 {
			next.at = next.at.Add(next.period)
		} else {
			delete(c.timers, next.id)
		}
		f := next.f
		c.mu.Unlock()

		f()
	}
}

// Pending возвращает количество запланированных задач
func (c *Virtual) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

func (c *Virtual) earliest(limit time.Time) *virtualTimer {
	var best *virtualTimer
	for _, t := range c.timers {
		if t.at.After(limit) {
			continue
		}
		if best == nil || t.at.Before(best.at) || (t.at.Equal(best.at) && t.id < best.id) {
			best = t
		}
	}
	return best
}

func (t *virtualTimer) Stop() bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.timers[t.id]; !ok {
		return false
	}
	delete(c.timers, t.id)
	return true
}
