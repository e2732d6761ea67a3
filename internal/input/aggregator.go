package input

import (
	"context"
	"sync/atomic"

	"github.com/verte-zerg/lapwatch/internal/model"
)

// Aggregator merges the enabled sources into one logical press state.
//
// Each source owns one slot. OnEdge is the edge-context half: it latches the
// level into the slot and raises a saturating single-slot signal. Evaluate is
// the task-context half: it waits for the signal and computes the OR of all
// slots at that moment, so edges that coalesced before the wake-up are all
// reflected in one read. Each slot has one writer (its source) and one
// reader (the classifier).
type Aggregator struct {
	sources []Source
	levels  []atomic.Bool
	pending chan struct{}
}

// NewAggregator primes each slot with the source's current level.
func NewAggregator(sources []Source) *Aggregator {
	a := &Aggregator{
		sources: sources,
		levels:  make([]atomic.Bool, len(sources)),
		pending: make(chan struct{}, 1),
	}
	for i, src := range sources {
		a.levels[i].Store(src.Read() == model.Pressed)
	}
	return a
}

// Attach subscribes every source, then re-reads every slot and signals if a
// level changed since construction. The returned detach cancels all
// subscriptions; on error the ones already made are cancelled.
func (a *Aggregator) Attach() (func(), error) {
	cancels := make([]func(), 0, len(a.sources))
	detach := func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
	for i, src := range a.sources {
		slot := i
		cancel, err := src.Subscribe(func(state model.PressState) {
			a.OnEdge(slot, state)
		})
		if err != nil {
			detach()
			return nil, &ConfigError{Source: src.Name(), Reason: "subscribe failed", Err: err}
		}
		cancels = append(cancels, cancel)
	}
	// Edges between construction and subscription were not observed.
	changed := false
	for i, src := range a.sources {
		pressed := src.Read() == model.Pressed
		if a.levels[i].Swap(pressed) != pressed {
			changed = true
		}
	}
	if changed {
		select {
		case a.pending <- struct{}{}:
		default:
		}
	}
	return detach, nil
}

// OnEdge latches state for slot and signals the classifier. It never blocks.
func (a *Aggregator) OnEdge(slot int, state model.PressState) {
	a.levels[slot].Store(state == model.Pressed)
	select {
	case a.pending <- struct{}{}:
	default:
	}
}

// Evaluate blocks until an edge has been signaled and returns the unified
// state computed now. It only returns early when ctx is done.
func (a *Aggregator) Evaluate(ctx context.Context) (model.PressState, error) {
	select {
	case <-a.pending:
		return a.Unified(), nil
	case <-ctx.Done():
		return model.Released, ctx.Err()
	}
}

// TryEvaluate is the non-blocking form of Evaluate.
func (a *Aggregator) TryEvaluate() (model.PressState, bool) {
	select {
	case <-a.pending:
		return a.Unified(), true
	default:
		return model.Released, false
	}
}

// Signal exposes the edge signal for callers that wait on it in a select.
// Receiving from it consumes the signal; follow with Unified.
func (a *Aggregator) Signal() <-chan struct{} {
	return a.pending
}

// Unified returns the OR of all latched levels.
func (a *Aggregator) Unified() model.PressState {
	for i := range a.levels {
		if a.levels[i].Load() {
			return model.Pressed
		}
	}
	return model.Released
}

// Level returns the latched level of one slot.
func (a *Aggregator) Level(slot int) model.PressState {
	return pick(a.levels[slot].Load())
}

// Sources returns the sources in slot order.
func (a *Aggregator) Sources() []Source {
	return a.sources
}
