package clock

import (
	"sync"
	"time"
)

// Scheduler runs a callback periodically until the returned stop func is called.
type Scheduler interface {
	Every(period time.Duration, fn func()) (stop func())
}

// TickerScheduler drives callbacks from time.Ticker on a dedicated goroutine.
type TickerScheduler struct{}

// Every implements Scheduler. The stop func blocks until the goroutine has
// exited, so fn is never invoked after stop returns.
func (TickerScheduler) Every(period time.Duration, fn func()) func() {
	ticker := time.NewTicker(period)
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-exited
		})
	}
}

// ManualScheduler fires callbacks only when stepped. Periods are ignored:
// every registered callback runs once per Step.
type ManualScheduler struct {
	mu   sync.Mutex
	next int
	subs []manualSub
}

type manualSub struct {
	id int
	fn func()
}

// NewManualScheduler returns an empty ManualScheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// Every implements Scheduler.
func (m *ManualScheduler) Every(_ time.Duration, fn func()) func() {
	m.mu.Lock()
	id := m.next
	m.next++
	m.subs = append(m.subs, manualSub{id: id, fn: fn})
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, sub := range m.subs {
			if sub.id == id {
				m.subs = append(m.subs[:i], m.subs[i+1:]...)
				return
			}
		}
	}
}

// Step fires every registered callback once, in registration order.
func (m *ManualScheduler) Step() {
	m.mu.Lock()
	subs := append([]manualSub(nil), m.subs...)
	m.mu.Unlock()
	for _, sub := range subs {
		sub.fn()
	}
}

// Advance calls Step n times.
func (m *ManualScheduler) Advance(n int) {
	for i := 0; i < n; i++ {
		m.Step()
	}
}

// Active returns the number of registered callbacks.
func (m *ManualScheduler) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}
