// Package clock абстрагирует таймеры симулятора: однократные и
// повторяющиеся задачи с отменой. Virtual позволяет тестам двигать
// время вручную без ожидания по настенным часам.
package clock

import (
	"sync"
	"time"
)

// Timer дескриптор отмены запланированной задачи
type Timer interface {
	// Stop отменяет задачу; возвращает false, если задача уже выполнена или отменена
	Stop() bool
}

// Clock источник времени и планировщик
type Clock interface {
	Now() time.Time
	// AfterFunc однократно вызывает f через d
	AfterFunc(d time.Duration, f func()) Timer
	// Every вызывает f каждые d до отмены
	Every(d time.Duration, f func()) Timer
}

// Real реализует Clock поверх таймеров рантайма
type Real struct{}

// NewReal создает часы реального времени
func NewReal() Real {
	return Real{}
}

func (Real) Now() time.Time {
	return time.Now()
}

func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func (Real) Every(d time.Duration, f func()) Timer {
	t := &repeating{
		ticker: time.NewTicker(d),
		stop:   make(chan struct{}),
	}
	go t.run(f)
	return t
}

// repeating повторяющаяся задача на time.Ticker
type repeating struct {
	ticker *time.Ticker
	stop   chan struct{}
	once   sync.Once
}

func (t *repeating) run(f func()) {
	for {
		select {
		case <-t.ticker.C:
			// после Stop тик, уже лежащий в канале, не выполняется
			select {
			case <-t.stop:
				return
			default:
			}
			f()
		case <-t.stop:
			return
		}
	}
}

func (t *repeating) Stop() bool {
	stopped := false
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.stop)
		stopped = true
	})
	return stopped
}
