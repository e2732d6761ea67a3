package input

import (
	"sync"
	"sync/atomic"
)

// VirtualLine is an in-memory Line. Set plays the role of the hardware: the
// subscriber runs synchronously in the caller, like an interrupt handler.
type VirtualLine struct {
	high atomic.Bool

	mu   sync.Mutex
	subs map[int]func(bool)
	next int
}

// NewVirtualLine returns a line resting at the given level.
func NewVirtualLine(high bool) *VirtualLine {
	l := &VirtualLine{subs: map[int]func(bool){}}
	l.high.Store(high)
	return l
}

func (l *VirtualLine) High() bool {
	return l.high.Load()
}

// Set changes the level. Subscribers are only called on an actual transition.
func (l *VirtualLine) Set(high bool) {
	if l.high.Swap(high) == high {
		return
	}
	l.mu.Lock()
	fns := make([]func(bool), 0, len(l.subs))
	for _, fn := range l.subs {
		fns = append(fns, fn)
	}
	l.mu.Unlock()
	for _, fn := range fns {
		fn(high)
	}
}

func (l *VirtualLine) Subscribe(fn func(high bool)) (func(), error) {
	l.mu.Lock()
	id := l.next
	l.next++
	l.subs[id] = fn
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		delete(l.subs, id)
		l.mu.Unlock()
	}, nil
}

// VirtualSampler is an in-memory Sampler.
type VirtualSampler struct {
	v atomic.Int64
}

// NewVirtualSampler returns a sampler reading v.
func NewVirtualSampler(v int) *VirtualSampler {
	s := &VirtualSampler{}
	s.v.Store(int64(v))
	return s
}

// Set changes the value returned by the next Sample.
func (s *VirtualSampler) Set(v int) {
	s.v.Store(int64(v))
}

func (s *VirtualSampler) Sample() (int, error) {
	return int(s.v.Load()), nil
}
