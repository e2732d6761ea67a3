package stopwatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/verte-zerg/lapwatch/internal/clock"
	"github.com/verte-zerg/lapwatch/internal/input"
	"github.com/verte-zerg/lapwatch/internal/model"
)

type eventRenderer struct {
	mu      sync.Mutex
	ticks   int
	lastCs  uint64
	laps    []model.LapRecord
	cleared int
	events  chan string
}

func newEventRenderer() *eventRenderer {
	return &eventRenderer{events: make(chan string, 64)}
}

func (r *eventRenderer) Tick(snap model.Snapshot) {
	r.mu.Lock()
	r.ticks++
	r.lastCs = snap.Total()
	r.mu.Unlock()
}

func (r *eventRenderer) Lap(rec model.LapRecord) {
	r.mu.Lock()
	r.laps = append(r.laps, rec)
	r.mu.Unlock()
	r.events <- "lap"
}

func (r *eventRenderer) LapsCleared() {
	r.mu.Lock()
	r.cleared++
	r.mu.Unlock()
	r.events <- "cleared"
}

func (r *eventRenderer) Confirm() { r.events <- "confirm" }

func (r *eventRenderer) Indicator(on bool) {
	if on {
		r.events <- "on"
		return
	}
	r.events <- "off"
}

func (r *eventRenderer) expect(t *testing.T, want ...string) {
	t.Helper()
	for _, w := range want {
		select {
		case got := <-r.events:
			if got != w {
				t.Fatalf("expected event %q, got %q", w, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", w)
		}
	}
}

func testConfig() model.Config {
	return model.Config{
		Variant:     model.VariantRelease,
		LongPressCs: 50,
		Tick:        clock.DefaultTick,
	}
}

func newSession(t *testing.T, cfg model.Config, r Renderer) (*Stopwatch, *clock.ManualScheduler, *input.GPIOSource) {
	t.Helper()
	sched := clock.NewManualScheduler()
	sources, err := input.Build([]model.SourceConfig{{Name: "key", Kind: model.KindGPIO, Enabled: true}}, input.Deps{Scheduler: sched})
	if err != nil {
		t.Fatalf("build sources: %v", err)
	}
	sw, err := New(cfg, sources, WithScheduler(sched), WithRenderer(r))
	if err != nil {
		t.Fatalf("new stopwatch: %v", err)
	}
	button, ok := sw.VirtualButton()
	if !ok {
		t.Fatalf("expected a virtual button")
	}
	return sw, sched, button
}

func TestSessionLapsAndReset(t *testing.T) {
	r := newEventRenderer()
	sw, sched, button := newSession(t, testConfig(), r)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sw.Run(ctx) }()

	button.Drive(model.Pressed)
	r.expect(t, "cleared", "on")
	button.Drive(model.Released)
	r.expect(t, "off")

	sched.Advance(150)
	button.Drive(model.Pressed)
	r.expect(t, "lap", "on")
	button.Drive(model.Released)
	r.expect(t, "off")

	snap := sw.Snapshot()
	if !snap.Running || len(snap.Laps) != 1 || snap.Laps[0].Elapsed != 150 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	button.Drive(model.Pressed)
	r.expect(t, "lap", "on")
	sched.Advance(80)
	button.Drive(model.Released)
	r.expect(t, "off", "confirm")

	if sw.Clock().IsRunning() || sw.Clock().Read() != 0 {
		t.Fatalf("expected clock stopped at 0 after long press")
	}
	r.mu.Lock()
	lastCs := r.lastCs
	r.mu.Unlock()
	if lastCs != 0 {
		t.Fatalf("expected renderer to see the reset, last tick %d", lastCs)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("expected clean shutdown, got %v", err)
	}
}

func TestRunStopsClockOnExit(t *testing.T) {
	r := newEventRenderer()
	sw, sched, button := newSession(t, testConfig(), r)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sw.Run(ctx) }()

	button.Drive(model.Pressed)
	r.expect(t, "cleared", "on")
	cancel()
	<-done
	if sw.Clock().IsRunning() {
		t.Fatalf("expected clock stopped after Run returned")
	}
	if sched.Active() != 0 {
		t.Fatalf("expected no periodic activity left, got %d", sched.Active())
	}
}

func TestRunEndsOnFault(t *testing.T) {
	sw, _, _ := newSession(t, testConfig(), newEventRenderer())
	boom := errors.New("sensor unplugged")
	sw.Fault(boom)
	err := sw.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected fault to end Run, got %v", err)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(testConfig(), nil); !errors.Is(err, input.ErrNoSources) {
		t.Fatalf("expected ErrNoSources, got %v", err)
	}
	cfg := testConfig()
	cfg.Variant = "triple"
	sources := []input.Source{input.NewGPIOSource("k", input.NewVirtualLine(true), true)}
	if _, err := New(cfg, sources); err == nil {
		t.Fatalf("expected invalid variant error")
	}
}

func TestInstancesDoNotShareClocks(t *testing.T) {
	a, schedA, _ := newSession(t, testConfig(), nil)
	b, _, _ := newSession(t, testConfig(), nil)
	a.Clock().Start()
	b.Clock().Start()
	schedA.Advance(25)
	if a.Clock().Read() != 25 || b.Clock().Read() != 0 {
		t.Fatalf("expected independent clocks, got %d and %d", a.Clock().Read(), b.Clock().Read())
	}
}

func TestRunLogsSessionSettings(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	sched := clock.NewManualScheduler()
	sources, err := input.Build([]model.SourceConfig{{Name: "key", Kind: model.KindGPIO, Enabled: true}}, input.Deps{Scheduler: sched})
	if err != nil {
		t.Fatalf("build sources: %v", err)
	}
	cfg := testConfig()
	sw, err := New(cfg, sources, WithScheduler(sched), WithLogger(log))
	if err != nil {
		t.Fatalf("new stopwatch: %v", err)
	}
	if len(sw.Sources()) != 1 || sw.Config().LongPressCs != cfg.LongPressCs {
		t.Fatalf("expected session to keep its sources and config")
	}

	sw.Fault(errors.New("stop"))
	_ = sw.Run(context.Background())

	var attached, started bool
	for _, entry := range hook.AllEntries() {
		switch entry.Message {
		case "input attached":
			attached = entry.Data["source"] == "key" && entry.Data["state"] == "released"
		case "session started":
			started = entry.Data["variant"] == "release" && entry.Data["tick"] == "10ms"
		}
	}
	if !attached {
		t.Fatalf("expected input attached entry for key")
	}
	if !started {
		t.Fatalf("expected session started entry with variant and tick")
	}
}
