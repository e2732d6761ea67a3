package replay

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/verte-zerg/lapwatch/internal/clock"
	"github.com/verte-zerg/lapwatch/internal/input"
	"github.com/verte-zerg/lapwatch/internal/model"
	"github.com/verte-zerg/lapwatch/internal/press"
	"github.com/verte-zerg/lapwatch/internal/stopwatch"
)

// Result is the session state after the last instant of a script.
type Result struct {
	Elapsed  uint64
	Running  bool
	Laps     []model.LapRecord
	Confirms int
	State    press.State
}

type confirmCounter struct {
	press.NopSink
	n int
}

func (c *confirmCounter) Tick(model.Snapshot) {}
func (c *confirmCounter) Confirm()            { c.n++ }

// Run executes s. At each instant t from 0 to end-cs it applies the edges at
// t, runs one classifier cycle if an edge was signalled (or, for the staged
// variant, every hold-poll period after the press left Idle), then advances
// the clock by one tick. Threshold sources see a new value on the sampling
// tick that follows it.
func Run(s Script, r stopwatch.Renderer, log logrus.FieldLogger) (Result, error) {
	cfg := s.Config()
	sched := clock.NewManualScheduler()
	sources, err := input.Build(cfg.Sources, input.Deps{Scheduler: sched})
	if err != nil {
		return Result{}, fmt.Errorf("failed to build sources: %w", err)
	}
	byName := make(map[string]input.Source, len(sources))
	for _, src := range sources {
		byName[src.Name()] = src
	}

	confirms := &confirmCounter{}
	opts := []stopwatch.Option{
		stopwatch.WithScheduler(sched),
		stopwatch.WithRenderer(confirms),
		stopwatch.WithRenderer(r),
	}
	if log != nil {
		opts = append(opts, stopwatch.WithLogger(log))
	}
	sw, err := stopwatch.New(cfg, sources, opts...)
	if err != nil {
		return Result{}, err
	}
	defer sw.Close()

	agg := sw.Aggregator()
	detach, err := agg.Attach()
	if err != nil {
		return Result{}, err
	}
	defer detach()
	if s.Replay.Running {
		sw.Clock().Start()
	}

	cls := sw.Classifier()
	holdEvery := int(cfg.HoldPoll / cfg.Tick)
	if holdEvery < 1 {
		holdEvery = 1
	}
	next := 0
	// Hold polls are counted from the instant the classifier left Idle, as
	// the hold ticker in Classifier.Run is.
	since := 0
	for t := 0; t <= s.Replay.EndCs; t++ {
		for next < len(s.Edges) && s.Edges[next].At == t {
			if err := apply(byName[s.Edges[next].Source], s.Edges[next]); err != nil {
				return Result{}, fmt.Errorf("edge at %d: %w", t, err)
			}
			next++
		}
		wasIdle := cls.State() == press.Idle
		if state, ok := agg.TryEvaluate(); ok {
			cls.Cycle(state)
		} else if cfg.Variant == model.VariantStaged && !wasIdle && t > since && (t-since)%holdEvery == 0 {
			cls.Cycle(agg.Unified())
		}
		if wasIdle && cls.State() != press.Idle {
			since = t
		}
		if t < s.Replay.EndCs {
			sched.Step()
		}
	}

	return Result{
		Elapsed:  sw.Clock().Read(),
		Running:  sw.Clock().IsRunning(),
		Laps:     sw.Laps().Records(),
		Confirms: confirms.n,
		State:    cls.State(),
	}, nil
}

func apply(src input.Source, e Edge) error {
	switch s := src.(type) {
	case *input.GPIOSource:
		state, err := model.ParsePressState(e.Level)
		if err != nil {
			return err
		}
		s.Drive(state)
	case *input.ThresholdSource:
		v, ok := s.Sampler().(*input.VirtualSampler)
		if !ok {
			return ErrNotVirtual
		}
		v.Set(*e.Value)
	default:
		return fmt.Errorf("unknown source %q", e.Source)
	}
	return nil
}
