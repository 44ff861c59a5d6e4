package simulator

import (
	"sync"

	"hud-telemetry-service/internal/models"
)

// backlog неограниченная очередь снимков для подписчика без потерь.
// publish кладет снимок в очередь не блокируясь, отдельная горутина
// передает их в out по порядку.
type backlog struct {
	mu     sync.Mutex
	items  []models.Snapshot
	closed bool

	wake   chan struct{}
	cancel chan struct{}
	once   sync.Once
	out    chan models.Snapshot
}

func newBacklog() *backlog {
	b := &backlog{
		wake:   make(chan struct{}, 1),
		cancel: make(chan struct{}),
		out:    make(chan models.Snapshot),
	}
	go b.run()
	return b
}

func (b *backlog) push(snap models.Snapshot) {
	b.mu.Lock()
	if !b.closed {
		b.items = append(b.items, snap)
	}
	b.mu.Unlock()
	b.signal()
}

// close завершает очередь: накопленные снимки будут отданы, затем out закроется
func (b *backlog) close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.signal()
}

// abort прекращает доставку немедленно
func (b *backlog) abort() {
	b.once.Do(func() { close(b.cancel) })
}

func (b *backlog) signal() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *backlog) run() {
	defer close(b.out)

	for {
		b.mu.Lock()
		items := b.items
		b.items = nil
		closed := b.closed
		b.mu.Unlock()

		if len(items) == 0 {
			if closed {
				return
			}
			select {
			case <-b.wake:
			case <-b.cancel:
				return
			}
			continue
		}

		for _, snap := range items {
			select {
			case b.out <- snap:
			case <-b.cancel:
				return
			}
		}
	}
}
