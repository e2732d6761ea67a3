package input

import (
	"github.com/verte-zerg/lapwatch/internal/model"
)

// Line is a digital input pin.
type Line interface {
	High() bool
	// Subscribe calls fn with the new level on every transition.
	Subscribe(fn func(high bool)) (cancel func(), err error)
}

// GPIOSource is an edge-triggered digital input.
type GPIOSource struct {
	name      string
	line      Line
	activeLow bool
}

// NewGPIOSource wraps line. With activeLow a low level means pressed, which
// is the wiring of a button to ground with a pull-up.
func NewGPIOSource(name string, line Line, activeLow bool) *GPIOSource {
	return &GPIOSource{name: name, line: line, activeLow: activeLow}
}

func (s *GPIOSource) Name() string { return s.name }

func (s *GPIOSource) Kind() model.SourceKind { return model.KindGPIO }

func (s *GPIOSource) Read() model.PressState {
	return s.state(s.line.High())
}

func (s *GPIOSource) Subscribe(onEdge EdgeFunc) (func(), error) {
	return s.line.Subscribe(func(high bool) {
		onEdge(s.state(high))
	})
}

// Line returns the underlying line.
func (s *GPIOSource) Line() Line { return s.line }

// Drive moves a virtual line to the level that reads as state. It reports
// false when the source is backed by real hardware.
func (s *GPIOSource) Drive(state model.PressState) bool {
	v, ok := s.line.(*VirtualLine)
	if !ok {
		return false
	}
	pressed := state == model.Pressed
	v.Set(pressed != s.activeLow)
	return true
}

func (s *GPIOSource) state(high bool) model.PressState {
	if high != s.activeLow {
		return model.Pressed
	}
	return model.Released
}
