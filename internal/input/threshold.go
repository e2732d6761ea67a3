package input

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/verte-zerg/lapwatch/internal/clock"
	"github.com/verte-zerg/lapwatch/internal/model"
)

// DefaultSample is the sampling period of analog sources.
const DefaultSample = 10 * time.Millisecond

// Sampler returns a raw analog reading.
type Sampler interface {
	Sample() (int, error)
}

// FileSampler reads an integer from a file, such as an IIO in_voltageN_raw
// attribute under /sys/bus/iio/devices.
type FileSampler struct {
	path string
}

// NewFileSampler returns a sampler for path.
func NewFileSampler(path string) *FileSampler {
	return &FileSampler{path: path}
}

func (s *FileSampler) Sample() (int, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("failed to parse sample from %s: %w", s.path, err)
	}
	return v, nil
}

type classifyFunc func(v int, prev model.PressState) model.PressState

// ThresholdSource turns a sampled analog value into press edges. Capacitive
// touch and Hall-effect sensors differ only in how a value is classified.
type ThresholdSource struct {
	name     string
	kind     model.SourceKind
	sampler  Sampler
	sched    clock.Scheduler
	period   time.Duration
	classify classifyFunc
	onError  func(error)

	state atomic.Uint32
}

// ThresholdOption configures a ThresholdSource.
type ThresholdOption func(*ThresholdSource)

// WithSampleErrors routes sampling failures to fn. Without it failures are
// ignored and the last state is kept.
func WithSampleErrors(fn func(error)) ThresholdOption {
	return func(s *ThresholdSource) {
		s.onError = fn
	}
}

// NewTouchSource builds a capacitive touch source with hysteresis: a finger
// lowers the reading, so by default a value below low is a press and a value
// above high is a release. With above the comparison is mirrored.
func NewTouchSource(name string, sampler Sampler, sched clock.Scheduler, period time.Duration, low, high int, above bool, opts ...ThresholdOption) *ThresholdSource {
	classify := func(v int, prev model.PressState) model.PressState {
		switch {
		case v < low:
			return pick(!above)
		case v > high:
			return pick(above)
		}
		return prev
	}
	return newThresholdSource(name, model.KindTouch, sampler, sched, period, classify, opts)
}

// NewHallSource builds a Hall-effect source. By default a reading outside the
// idle band [bandLow, bandHigh] means a magnet is close, which counts as a press.
func NewHallSource(name string, sampler Sampler, sched clock.Scheduler, period time.Duration, bandLow, bandHigh int, inside bool, opts ...ThresholdOption) *ThresholdSource {
	classify := func(v int, _ model.PressState) model.PressState {
		outside := v < bandLow || v > bandHigh
		return pick(outside != inside)
	}
	return newThresholdSource(name, model.KindHall, sampler, sched, period, classify, opts)
}

func newThresholdSource(name string, kind model.SourceKind, sampler Sampler, sched clock.Scheduler, period time.Duration, classify classifyFunc, opts []ThresholdOption) *ThresholdSource {
	if period <= 0 {
		period = DefaultSample
	}
	s := &ThresholdSource{
		name:     name,
		kind:     kind,
		sampler:  sampler,
		sched:    sched,
		period:   period,
		classify: classify,
	}
	for _, opt := range opts {
		opt(s)
	}
	if v, err := sampler.Sample(); err == nil {
		s.state.Store(uint32(classify(v, model.Released)))
	}
	return s
}

func (s *ThresholdSource) Name() string { return s.name }

func (s *ThresholdSource) Kind() model.SourceKind { return s.kind }

// Read samples the sensor now. On a sampling failure the last state is returned.
func (s *ThresholdSource) Read() model.PressState {
	prev := s.last()
	v, err := s.sampler.Sample()
	if err != nil {
		return prev
	}
	return s.classify(v, prev)
}

func (s *ThresholdSource) Subscribe(onEdge EdgeFunc) (func(), error) {
	stop := s.sched.Every(s.period, func() {
		v, err := s.sampler.Sample()
		if err != nil {
			if s.onError != nil {
				s.onError(fmt.Errorf("source %s: %w", s.name, err))
			}
			return
		}
		prev := s.last()
		next := s.classify(v, prev)
		if next == prev {
			return
		}
		s.state.Store(uint32(next))
		onEdge(next)
	})
	return stop, nil
}

// Sampler returns the underlying sampler.
func (s *ThresholdSource) Sampler() Sampler {
	return s.sampler
}

func (s *ThresholdSource) last() model.PressState {
	return model.PressState(s.state.Load())
}

func pick(pressed bool) model.PressState {
	if pressed {
		return model.Pressed
	}
	return model.Released
}
