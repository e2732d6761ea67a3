// Package stopwatch owns one stopwatch session: its inputs, clock, lap log
// and classifier, and the renderers that display them.
package stopwatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/verte-zerg/lapwatch/internal/clock"
	"github.com/verte-zerg/lapwatch/internal/input"
	"github.com/verte-zerg/lapwatch/internal/laplog"
	"github.com/verte-zerg/lapwatch/internal/model"
	"github.com/verte-zerg/lapwatch/internal/press"
)

// Renderer displays the session. Methods are called from the ticking and
// classifier goroutines and must not block for long.
type Renderer interface {
	press.Sink
	Tick(snap model.Snapshot)
}

// MultiRenderer fans out to several renderers in order.
type MultiRenderer []Renderer

func (m MultiRenderer) Tick(snap model.Snapshot) {
	for _, r := range m {
		r.Tick(snap)
	}
}

func (m MultiRenderer) Lap(rec model.LapRecord) {
	for _, r := range m {
		r.Lap(rec)
	}
}

func (m MultiRenderer) LapsCleared() {
	for _, r := range m {
		r.LapsCleared()
	}
}

func (m MultiRenderer) Confirm() {
	for _, r := range m {
		r.Confirm()
	}
}

func (m MultiRenderer) Indicator(on bool) {
	for _, r := range m {
		r.Indicator(on)
	}
}

// Snapshot is a point-in-time view of the session.
type Snapshot struct {
	Elapsed model.Snapshot
	Running bool
	Laps    []model.LapRecord
	Input   model.PressState
}

// Stopwatch is one session. It owns its clock and lap log; nothing is shared
// with other instances.
type Stopwatch struct {
	cfg        model.Config
	sources    []input.Source
	agg        *input.Aggregator
	clock      *clock.Clock
	laps       *laplog.LapLog
	classifier *press.Classifier
	renderers  MultiRenderer
	log        logrus.FieldLogger
	faults     chan error

	closeOnce sync.Once
}

// Option configures a Stopwatch.
type Option func(*options)

type options struct {
	scheduler clock.Scheduler
	renderers []Renderer
	log       logrus.FieldLogger
}

// WithScheduler drives the clock from s instead of real time.
func WithScheduler(s clock.Scheduler) Option {
	return func(o *options) {
		o.scheduler = s
	}
}

// WithRenderer attaches a renderer.
func WithRenderer(r Renderer) Option {
	return func(o *options) {
		if r != nil {
			o.renderers = append(o.renderers, r)
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) {
		o.log = log
	}
}

// New assembles a session over already-built sources.
func New(cfg model.Config, sources []input.Source, opts ...Option) (*Stopwatch, error) {
	if len(sources) == 0 {
		return nil, input.ErrNoSources
	}
	if !cfg.Variant.Valid() {
		return nil, fmt.Errorf("invalid variant %q", cfg.Variant)
	}
	o := options{scheduler: clock.TickerScheduler{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.log = l
	}

	s := &Stopwatch{
		cfg:       cfg,
		sources:   sources,
		agg:       input.NewAggregator(sources),
		laps:      laplog.New(),
		renderers: MultiRenderer(o.renderers),
		log:       o.log,
		faults:    make(chan error, 1),
	}
	s.clock = clock.New(
		clock.WithScheduler(o.scheduler),
		clock.WithPeriod(cfg.Tick),
		clock.OnTick(func(elapsed uint64) {
			s.renderers.Tick(clock.Decompose(elapsed))
		}),
	)
	s.classifier = press.New(cfg.Variant, s.clock, s.laps, s.renderers,
		press.WithThreshold(cfg.LongPressCs),
		press.WithHoldPoll(cfg.HoldPoll),
		press.WithLogger(o.log.WithField("variant", string(cfg.Variant))),
	)
	return s, nil
}

// Fault reports an asynchronous source failure; the first one ends Run.
func (s *Stopwatch) Fault(err error) {
	select {
	case s.faults <- err:
	default:
	}
}

// Run subscribes the sources and runs the classifier until ctx is done or a
// source faults. The clock is stopped on every exit path.
func (s *Stopwatch) Run(ctx context.Context) error {
	defer s.Close()

	detach, err := s.agg.Attach()
	if err != nil {
		return err
	}
	defer detach()
	for slot, src := range s.agg.Sources() {
		s.log.WithFields(logrus.Fields{
			"source": src.Name(),
			"kind":   string(src.Kind()),
			"state":  s.agg.Level(slot).String(),
		}).Info("input attached")
	}
	s.log.WithFields(logrus.Fields{
		"variant":       string(s.classifier.Variant()),
		"tick":          s.clock.Period().String(),
		"long_press_cs": s.cfg.LongPressCs,
	}).Info("session started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.classifier.Run(gctx, s.agg)
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case err := <-s.faults:
			return fmt.Errorf("input fault: %w", err)
		}
	})
	err = g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Close stops the clock. It is safe to call more than once.
func (s *Stopwatch) Close() {
	s.closeOnce.Do(func() {
		if s.clock.Stop() {
			s.log.WithField("elapsed_cs", s.clock.Read()).Info("clock stopped on shutdown")
		}
	})
}

// Snapshot returns the current elapsed time, laps and unified input.
func (s *Stopwatch) Snapshot() Snapshot {
	return Snapshot{
		Elapsed: clock.Decompose(s.clock.Read()),
		Running: s.clock.IsRunning(),
		Laps:    s.laps.Records(),
		Input:   s.agg.Unified(),
	}
}

// Clock returns the session clock.
func (s *Stopwatch) Clock() *clock.Clock { return s.clock }

// Laps returns the session lap log.
func (s *Stopwatch) Laps() *laplog.LapLog { return s.laps }

// Aggregator returns the input aggregator.
func (s *Stopwatch) Aggregator() *input.Aggregator { return s.agg }

// Classifier returns the classifier. Drive it only when Run is not active.
func (s *Stopwatch) Classifier() *press.Classifier { return s.classifier }

// Sources returns the bound sources in slot order.
func (s *Stopwatch) Sources() []input.Source { return s.sources }

// Config returns the session configuration.
func (s *Stopwatch) Config() model.Config { return s.cfg }

// VirtualButton returns the first virtual gpio source, used for keyboard
// control.
func (s *Stopwatch) VirtualButton() (*input.GPIOSource, bool) {
	for _, src := range s.sources {
		g, ok := src.(*input.GPIOSource)
		if !ok {
			continue
		}
		if _, virtual := g.Line().(*input.VirtualLine); virtual {
			return g, true
		}
	}
	return nil, false
}
