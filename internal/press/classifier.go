// Package press classifies presses of the unified input as short or long and
// drives the stopwatch clock and lap log accordingly.
package press

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/verte-zerg/lapwatch/internal/clock"
	"github.com/verte-zerg/lapwatch/internal/laplog"
	"github.com/verte-zerg/lapwatch/internal/model"
)

const (
	// DefaultLongPress is the long-press threshold in centiseconds.
	DefaultLongPress uint64 = 50
	// DefaultHoldPoll is how often the staged variant re-evaluates a held press.
	DefaultHoldPoll = 100 * time.Millisecond
)

// State is a classifier state. The release variant uses Idle and
// WaitingRelease; the staged variant uses the others.
type State uint8

const (
	Idle State = iota
	WaitingRelease
	Lap
	ShortPress
	StopAndReset
	LongPress
)

var stateNames = [...]string{
	Idle:           "idle",
	WaitingRelease: "waiting-release",
	Lap:            "lap",
	ShortPress:     "short-press",
	StopAndReset:   "stop-and-reset",
	LongPress:      "long-press",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Sink receives classifier output for display.
type Sink interface {
	Lap(rec model.LapRecord)
	LapsCleared()
	// Confirm acknowledges a stop-and-reset.
	Confirm()
	// Indicator mirrors the status LED: on while a press is handled.
	Indicator(on bool)
}

// Evaluator is the task-context side of the input aggregator.
type Evaluator interface {
	Evaluate(ctx context.Context) (model.PressState, error)
	Signal() <-chan struct{}
	Unified() model.PressState
}

// Classifier is the press classification state machine. Cycle and Run must
// be driven from a single goroutine.
type Classifier struct {
	variant   model.Variant
	clock     *clock.Clock
	laps      *laplog.LapLog
	sink      Sink
	log       logrus.FieldLogger
	threshold uint64
	holdPoll  time.Duration

	state        State
	startElapsed uint64
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithThreshold sets the long-press threshold in centiseconds.
func WithThreshold(cs uint64) Option {
	return func(c *Classifier) {
		if cs > 0 {
			c.threshold = cs
		}
	}
}

// WithHoldPoll sets the staged variant's re-evaluation period.
func WithHoldPoll(d time.Duration) Option {
	return func(c *Classifier) {
		if d > 0 {
			c.holdPoll = d
		}
	}
}

// WithLogger sets the transition logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Classifier) {
		c.log = log
	}
}

// New returns a classifier in Idle. A nil sink discards output.
func New(variant model.Variant, clk *clock.Clock, laps *laplog.LapLog, sink Sink, opts ...Option) *Classifier {
	if sink == nil {
		sink = NopSink{}
	}
	c := &Classifier{
		variant:   variant,
		clock:     clk,
		laps:      laps,
		sink:      sink,
		log:       discardLogger(),
		threshold: DefaultLongPress,
		holdPoll:  DefaultHoldPoll,
		state:     Idle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Classifier) State() State {
	return c.state
}

// PressStart returns the clock reading captured at the last press-begin.
func (c *Classifier) PressStart() uint64 {
	return c.startElapsed
}

// Variant returns the configured variant.
func (c *Classifier) Variant() model.Variant {
	return c.variant
}

// Cycle runs one classification cycle with a freshly read unified state.
// Every (state, input) pair not listed in the transition table is a no-op.
func (c *Classifier) Cycle(input model.PressState) {
	if c.variant == model.VariantStaged {
		c.cycleStaged(input)
		return
	}
	c.cycleRelease(input)
}

// Run drives the classifier from agg until ctx is done. The release variant
// wakes on edges only. The staged variant also wakes every hold-poll period
// while a press is in progress, since a hold produces no edges.
func (c *Classifier) Run(ctx context.Context, agg Evaluator) error {
	var hold *time.Ticker
	defer func() {
		if hold != nil {
			hold.Stop()
		}
	}()
	for {
		if c.variant != model.VariantStaged {
			state, err := agg.Evaluate(ctx)
			if err != nil {
				return err
			}
			c.Cycle(state)
			continue
		}

		var holdC <-chan time.Time
		if c.state != Idle {
			if hold == nil {
				hold = time.NewTicker(c.holdPoll)
			}
			holdC = hold.C
		} else if hold != nil {
			hold.Stop()
			hold = nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-agg.Signal():
		case <-holdC:
		}
		c.Cycle(agg.Unified())
	}
}

func (c *Classifier) cycleRelease(input model.PressState) {
	switch c.state {
	case Idle:
		if input == model.Pressed {
			c.markLapOrStart()
			c.startElapsed = c.clock.Read()
			c.transition(WaitingRelease)
			c.sink.Indicator(true)
		}
	case WaitingRelease:
		if input == model.Released {
			c.sink.Indicator(false)
			if c.held() >= c.threshold {
				c.stopAndReset()
			}
			c.transition(Idle)
		}
	}
}

func (c *Classifier) cycleStaged(input model.PressState) {
	switch c.state {
	case Idle:
		if input == model.Pressed {
			c.startElapsed = c.clock.Read()
			c.transition(Lap)
			c.markLapOrStart()
			c.sink.Indicator(true)
		}
	case Lap:
		if input == model.Pressed {
			c.transition(ShortPress)
		} else {
			c.toIdle()
		}
	case ShortPress:
		if input == model.Released {
			c.toIdle()
			return
		}
		if c.held() >= c.threshold {
			c.transition(StopAndReset)
			c.stopAndReset()
		}
	case StopAndReset:
		if input == model.Pressed {
			c.transition(LongPress)
		} else {
			c.toIdle()
		}
	case LongPress:
		if input == model.Released {
			c.toIdle()
		}
	}
}

func (c *Classifier) toIdle() {
	c.transition(Idle)
	c.sink.Indicator(false)
}

// markLapOrStart starts a stopped clock with a fresh lap log, or records a
// lap on a running one.
func (c *Classifier) markLapOrStart() {
	if !c.clock.IsRunning() {
		c.clock.Start()
		c.laps.Clear()
		c.sink.LapsCleared()
		c.log.WithField("elapsed_cs", c.clock.Read()).Info("stopwatch started")
		return
	}
	rec := c.laps.Append(c.clock.Read())
	c.sink.Lap(rec)
	c.log.WithFields(logrus.Fields{"lap": rec.Index, "elapsed_cs": rec.Elapsed}).Info("lap")
}

func (c *Classifier) stopAndReset() {
	elapsed := c.clock.Read()
	if c.clock.IsRunning() {
		c.clock.Stop()
	}
	c.clock.Reset()
	c.sink.Confirm()
	c.log.WithField("elapsed_cs", elapsed).Info("stopwatch stopped and reset")
}

// held is only called after a press-begin stored startElapsed.
func (c *Classifier) held() uint64 {
	now := c.clock.Read()
	if now < c.startElapsed {
		return 0
	}
	return now - c.startElapsed
}

func (c *Classifier) transition(next State) {
	if next == c.state {
		return
	}
	c.log.WithFields(logrus.Fields{"from": c.state.String(), "state": next.String()}).Debug("transition")
	c.state = next
}

// NopSink discards classifier output.
type NopSink struct{}

func (NopSink) Lap(model.LapRecord) {}
func (NopSink) LapsCleared()        {}
func (NopSink) Confirm()            {}
func (NopSink) Indicator(bool)      {}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
