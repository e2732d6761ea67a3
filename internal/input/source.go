// Package input turns hardware lines into press/release edges and merges them
// into one logical press signal.
//
// Every source variant exposes the same two capabilities: report the current
// level and call back on a transition. Callbacks run in the context that
// observed the edge (a scheduler goroutine for polled hardware, the caller of
// Set for virtual lines) and must stay minimal.
package input

import "github.com/verte-zerg/lapwatch/internal/model"

// EdgeFunc receives the new state of a source after a transition.
type EdgeFunc func(state model.PressState)

// Source is one physical input.
type Source interface {
	Name() string
	Kind() model.SourceKind
	// Read returns the current level.
	Read() model.PressState
	// Subscribe registers onEdge for transitions until cancel is called.
	// A source supports a single subscriber.
	Subscribe(onEdge EdgeFunc) (cancel func(), err error)
}
