package press

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/verte-zerg/lapwatch/internal/clock"
	"github.com/verte-zerg/lapwatch/internal/input"
	"github.com/verte-zerg/lapwatch/internal/laplog"
	"github.com/verte-zerg/lapwatch/internal/model"
)

type recordingSink struct {
	laps      []model.LapRecord
	cleared   int
	confirms  int
	indicator []bool
}

func (s *recordingSink) Lap(rec model.LapRecord) { s.laps = append(s.laps, rec) }
func (s *recordingSink) LapsCleared()            { s.cleared++ }
func (s *recordingSink) Confirm()                { s.confirms++ }
func (s *recordingSink) Indicator(on bool)       { s.indicator = append(s.indicator, on) }

type fixture struct {
	sched *clock.ManualScheduler
	clock *clock.Clock
	laps  *laplog.LapLog
	sink  *recordingSink
	c     *Classifier
}

func newFixture(variant model.Variant, running bool) *fixture {
	sched := clock.NewManualScheduler()
	clk := clock.New(clock.WithScheduler(sched))
	if running {
		clk.Start()
	}
	laps := laplog.New()
	sink := &recordingSink{}
	return &fixture{
		sched: sched,
		clock: clk,
		laps:  laps,
		sink:  sink,
		c:     New(variant, clk, laps, sink),
	}
}

// tap presses at the current instant and releases after held centiseconds.
func (f *fixture) tap(held int) {
	f.c.Cycle(model.Pressed)
	f.sched.Advance(held)
	f.c.Cycle(model.Released)
}

func TestReleaseShortPressKeepsRunning(t *testing.T) {
	f := newFixture(model.VariantRelease, true)
	f.tap(30)
	if !f.clock.IsRunning() {
		t.Fatalf("expected clock to keep running after a short press")
	}
	recs := f.laps.Records()
	if len(recs) != 1 || recs[0].Index != 1 || recs[0].Elapsed != 0 {
		t.Fatalf("expected one lap at 0, got %+v", recs)
	}
	if f.c.State() != Idle {
		t.Fatalf("expected idle after release, got %s", f.c.State())
	}
}

func TestReleaseLongPressStopsAndResets(t *testing.T) {
	f := newFixture(model.VariantRelease, true)
	f.tap(60)
	if f.clock.IsRunning() {
		t.Fatalf("expected clock stopped after a long press")
	}
	if got := f.clock.Read(); got != 0 {
		t.Fatalf("expected clock reset to 0, got %d", got)
	}
	if f.sink.confirms != 1 {
		t.Fatalf("expected one confirm, got %d", f.sink.confirms)
	}
}

func TestReleaseThresholdBoundary(t *testing.T) {
	short := newFixture(model.VariantRelease, true)
	short.tap(49)
	if !short.clock.IsRunning() {
		t.Fatalf("expected 49 cs to classify as short")
	}
	long := newFixture(model.VariantRelease, true)
	long.tap(50)
	if long.clock.IsRunning() {
		t.Fatalf("expected 50 cs to classify as long")
	}
}

func TestReleaseConsecutiveLaps(t *testing.T) {
	f := newFixture(model.VariantRelease, true)
	at := 0
	for _, next := range []int{0, 150, 400} {
		f.sched.Advance(next - at)
		f.tap(10)
		at = next + 10
		if !f.clock.IsRunning() {
			t.Fatalf("expected clock to run throughout")
		}
	}
	recs := f.laps.Records()
	want := []uint64{0, 150, 400}
	if len(recs) != len(want) {
		t.Fatalf("expected %d laps, got %+v", len(want), recs)
	}
	for i, w := range want {
		if recs[i].Elapsed != w || recs[i].Index != i+1 {
			t.Fatalf("lap %d: expected #%d at %d, got %+v", i, i+1, w, recs[i])
		}
	}
}

func TestReleaseStartsStoppedClock(t *testing.T) {
	f := newFixture(model.VariantRelease, false)
	f.laps.Append(999)
	f.tap(10)
	if !f.clock.IsRunning() {
		t.Fatalf("expected press on a stopped clock to start it")
	}
	if f.laps.Len() != 0 || f.sink.cleared != 1 {
		t.Fatalf("expected laps cleared without a new lap, got %d laps, %d clears", f.laps.Len(), f.sink.cleared)
	}
	if f.c.PressStart() != 0 {
		t.Fatalf("expected press start at 0, got %d", f.c.PressStart())
	}
	if got := f.clock.Read(); got != 10 {
		t.Fatalf("expected 10 cs elapsed, got %d", got)
	}
}

func TestReleaseSelfLoops(t *testing.T) {
	f := newFixture(model.VariantRelease, true)
	f.c.Cycle(model.Released)
	if f.c.State() != Idle || f.laps.Len() != 0 {
		t.Fatalf("expected release in idle to be a no-op")
	}
	f.c.Cycle(model.Pressed)
	f.c.Cycle(model.Pressed)
	if f.c.State() != WaitingRelease || f.laps.Len() != 1 {
		t.Fatalf("expected repeated press to be a no-op, got %s with %d laps", f.c.State(), f.laps.Len())
	}
}

func TestReleaseIndicatorFollowsPress(t *testing.T) {
	f := newFixture(model.VariantRelease, true)
	f.tap(5)
	if len(f.sink.indicator) != 2 || !f.sink.indicator[0] || f.sink.indicator[1] {
		t.Fatalf("expected indicator on then off, got %v", f.sink.indicator)
	}
}

func TestStagedQuickPressRecordsLap(t *testing.T) {
	f := newFixture(model.VariantStaged, true)
	f.sched.Advance(100)
	f.c.Cycle(model.Pressed)
	if f.c.State() != Lap {
		t.Fatalf("expected lap state, got %s", f.c.State())
	}
	recs := f.laps.Records()
	if len(recs) != 1 || recs[0].Elapsed != 100 {
		t.Fatalf("expected one lap at 100, got %+v", recs)
	}
	f.c.Cycle(model.Released)
	if f.c.State() != Idle {
		t.Fatalf("expected idle after release, got %s", f.c.State())
	}
	if !f.clock.IsRunning() {
		t.Fatalf("expected clock to keep running")
	}
}

func TestStagedHoldWalksToLongPress(t *testing.T) {
	f := newFixture(model.VariantStaged, false)
	f.c.Cycle(model.Pressed)
	if !f.clock.IsRunning() || f.sink.cleared != 1 {
		t.Fatalf("expected press to start the clock and clear laps")
	}
	f.c.Cycle(model.Pressed)
	if f.c.State() != ShortPress {
		t.Fatalf("expected short-press, got %s", f.c.State())
	}
	f.sched.Advance(49)
	f.c.Cycle(model.Pressed)
	if f.c.State() != ShortPress {
		t.Fatalf("expected 49 cs to stay short, got %s", f.c.State())
	}
	f.sched.Advance(1)
	f.c.Cycle(model.Pressed)
	if f.c.State() != StopAndReset {
		t.Fatalf("expected 50 cs to stop and reset, got %s", f.c.State())
	}
	if f.clock.IsRunning() || f.clock.Read() != 0 || f.sink.confirms != 1 {
		t.Fatalf("expected stopped clock at 0 with one confirm")
	}
	f.c.Cycle(model.Pressed)
	if f.c.State() != LongPress {
		t.Fatalf("expected long-press, got %s", f.c.State())
	}
	f.sched.Advance(500)
	f.c.Cycle(model.Pressed)
	if f.c.State() != LongPress || f.clock.Read() != 0 {
		t.Fatalf("expected long-press hold to be inert")
	}
	f.c.Cycle(model.Released)
	if f.c.State() != Idle {
		t.Fatalf("expected idle after release, got %s", f.c.State())
	}
}

func TestStagedReleaseFromEveryState(t *testing.T) {
	paths := map[State][]model.PressState{
		Lap:          {model.Pressed},
		ShortPress:   {model.Pressed, model.Pressed},
		StopAndReset: nil,
	}
	for want, inputs := range paths {
		f := newFixture(model.VariantStaged, true)
		for _, in := range inputs {
			f.c.Cycle(in)
		}
		if want == StopAndReset {
			f.c.Cycle(model.Pressed)
			f.c.Cycle(model.Pressed)
			f.sched.Advance(50)
			f.c.Cycle(model.Pressed)
		}
		if f.c.State() != want {
			t.Fatalf("expected %s, got %s", want, f.c.State())
		}
		f.c.Cycle(model.Released)
		if f.c.State() != Idle {
			t.Fatalf("expected release from %s to reach idle, got %s", want, f.c.State())
		}
	}
}

func TestClassifierIsTotal(t *testing.T) {
	declared := map[model.Variant]map[State]bool{
		model.VariantRelease: {Idle: true, WaitingRelease: true},
		model.VariantStaged:  {Idle: true, Lap: true, ShortPress: true, StopAndReset: true, LongPress: true},
	}
	rng := rand.New(rand.NewSource(7))
	for variant, states := range declared {
		f := newFixture(variant, rng.Intn(2) == 0)
		for i := 0; i < 5000; i++ {
			in := model.Released
			if rng.Intn(2) == 0 {
				in = model.Pressed
			}
			f.sched.Advance(rng.Intn(40))
			f.c.Cycle(in)
			if !states[f.c.State()] {
				t.Fatalf("%s: undeclared state %s after %d cycles", variant, f.c.State(), i)
			}
		}
	}
}

type chanSink struct {
	indicator chan bool
	confirm   chan struct{}
}

func newChanSink() *chanSink {
	return &chanSink{indicator: make(chan bool, 16), confirm: make(chan struct{}, 4)}
}

func (s *chanSink) Lap(model.LapRecord) {}
func (s *chanSink) LapsCleared()        {}
func (s *chanSink) Confirm()            { s.confirm <- struct{}{} }
func (s *chanSink) Indicator(on bool)   { s.indicator <- on }

func waitIndicator(t *testing.T, s *chanSink, want bool) {
	t.Helper()
	select {
	case got := <-s.indicator:
		if got != want {
			t.Fatalf("expected indicator %v, got %v", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for indicator %v", want)
	}
}

func TestRunReleaseVariantWakesOnEdges(t *testing.T) {
	sched := clock.NewManualScheduler()
	clk := clock.New(clock.WithScheduler(sched))
	laps := laplog.New()
	sink := newChanSink()
	button := input.NewGPIOSource("key", input.NewVirtualLine(true), true)
	agg := input.NewAggregator([]input.Source{button})
	detach, err := agg.Attach()
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	defer detach()

	c := New(model.VariantRelease, clk, laps, sink)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, agg) }()

	button.Drive(model.Pressed)
	waitIndicator(t, sink, true)
	sched.Advance(75)
	button.Drive(model.Released)
	waitIndicator(t, sink, false)
	select {
	case <-sink.confirm:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected long press to confirm a reset")
	}

	cancel()
	if err := <-done; err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if clk.IsRunning() || clk.Read() != 0 {
		t.Fatalf("expected stopped clock at 0")
	}
}

func TestRunStagedVariantPollsHeldPress(t *testing.T) {
	sched := clock.NewManualScheduler()
	clk := clock.New(clock.WithScheduler(sched))
	laps := laplog.New()
	sink := newChanSink()
	button := input.NewGPIOSource("key", input.NewVirtualLine(true), true)
	agg := input.NewAggregator([]input.Source{button})
	detach, _ := agg.Attach()
	defer detach()

	c := New(model.VariantStaged, clk, laps, sink, WithHoldPoll(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx, agg) }()

	button.Drive(model.Pressed)
	waitIndicator(t, sink, true)
	sched.Advance(50)
	select {
	case <-sink.confirm:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected a held press to reach stop-and-reset without further edges")
	}
	button.Drive(model.Released)
	waitIndicator(t, sink, false)
}

func TestClassifierLogsLapsAndReset(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	f := newFixture(model.VariantRelease, true)
	f.c = New(model.VariantRelease, f.clock, f.laps, f.sink, WithLogger(log))

	f.sched.Advance(20)
	f.tap(10)
	f.tap(60)

	var lapAt []uint64
	var reset, transitions int
	for _, entry := range hook.AllEntries() {
		switch entry.Message {
		case "lap":
			if entry.Data["lap"] != len(lapAt)+1 {
				t.Fatalf("unexpected lap index: %v", entry.Data)
			}
			lapAt = append(lapAt, entry.Data["elapsed_cs"].(uint64))
		case "stopwatch stopped and reset":
			reset++
			if entry.Data["elapsed_cs"] != uint64(90) {
				t.Fatalf("expected reset at 90, got %v", entry.Data)
			}
			if entry.Level != logrus.InfoLevel {
				t.Fatalf("expected info level, got %s", entry.Level)
			}
		case "transition":
			transitions++
		}
	}
	if len(lapAt) != 2 || lapAt[0] != 20 || lapAt[1] != 30 {
		t.Fatalf("expected laps logged at 20 and 30, got %v", lapAt)
	}
	if reset != 1 {
		t.Fatalf("expected one reset entry, got %d", reset)
	}
	if transitions != 4 {
		t.Fatalf("expected 4 transitions at debug level, got %d", transitions)
	}
}
