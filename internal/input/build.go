package input

import (
	"fmt"

	"github.com/verte-zerg/lapwatch/internal/clock"
	"github.com/verte-zerg/lapwatch/internal/model"
)

const (
	DefaultTouchLow  = 150
	DefaultTouchHigh = 550
	DefaultHallMin   = 10
	DefaultHallMax   = 40

	maxBCMPin = 27
)

// Deps carries what Build needs besides configuration.
type Deps struct {
	Scheduler clock.Scheduler
	// OnSampleError receives sampling failures of analog sources.
	OnSampleError func(error)
}

// WithDefaults fills unset fields of cfg with the defaults for its kind.
func WithDefaults(cfg model.SourceConfig) model.SourceConfig {
	if cfg.Binding == "" {
		cfg.Binding = model.BindingVirtual
	}
	switch cfg.Kind {
	case model.KindGPIO:
		if cfg.Trigger == "" {
			cfg.Trigger = "low"
		}
		if cfg.Pull == "" {
			cfg.Pull = "up"
		}
		if cfg.Poll <= 0 {
			cfg.Poll = DefaultPoll
		}
	case model.KindTouch:
		if cfg.Trigger == "" {
			cfg.Trigger = "below"
		}
		if cfg.Low == 0 && cfg.High == 0 {
			cfg.Low, cfg.High = DefaultTouchLow, DefaultTouchHigh
		}
	case model.KindHall:
		if cfg.Trigger == "" {
			cfg.Trigger = "outside"
		}
		if cfg.Min == 0 && cfg.Max == 0 {
			cfg.Min, cfg.Max = DefaultHallMin, DefaultHallMax
		}
	}
	if cfg.Sample <= 0 {
		cfg.Sample = DefaultSample
	}
	return cfg
}

// Validate checks a source configuration without touching hardware.
func Validate(cfg model.SourceConfig) error {
	fail := func(reason string, err error) error {
		return &ConfigError{Source: cfg.Name, Reason: reason, Err: err}
	}
	switch cfg.Kind {
	case model.KindGPIO:
		if cfg.Trigger != "low" && cfg.Trigger != "high" {
			return fail(fmt.Sprintf("trigger %q (want low or high)", cfg.Trigger), ErrInvalidTrigger)
		}
		switch cfg.Binding {
		case model.BindingRPIO:
			if cfg.Pin < 0 || cfg.Pin > maxBCMPin {
				return fail(fmt.Sprintf("pin %d out of range 0-%d", cfg.Pin, maxBCMPin), ErrUnknownBinding)
			}
			if cfg.Pull != "up" && cfg.Pull != "down" && cfg.Pull != "off" {
				return fail(fmt.Sprintf("pull %q (want up, down or off)", cfg.Pull), ErrUnknownBinding)
			}
		case model.BindingVirtual:
		default:
			return fail(fmt.Sprintf("binding %q for gpio", cfg.Binding), ErrUnknownBinding)
		}
	case model.KindTouch, model.KindHall:
		switch cfg.Binding {
		case model.BindingSysfs:
			if cfg.Path == "" {
				return fail("sysfs binding needs a path", ErrUnknownBinding)
			}
		case model.BindingVirtual:
		default:
			return fail(fmt.Sprintf("binding %q for %s", cfg.Binding, cfg.Kind), ErrUnknownBinding)
		}
		if cfg.Kind == model.KindTouch {
			if cfg.Trigger != "below" && cfg.Trigger != "above" {
				return fail(fmt.Sprintf("trigger %q (want below or above)", cfg.Trigger), ErrInvalidTrigger)
			}
			if cfg.Low > cfg.High {
				return fail(fmt.Sprintf("low %d above high %d", cfg.Low, cfg.High), ErrInvalidThreshold)
			}
		} else {
			if cfg.Trigger != "outside" && cfg.Trigger != "inside" {
				return fail(fmt.Sprintf("trigger %q (want outside or inside)", cfg.Trigger), ErrInvalidTrigger)
			}
			if cfg.Min > cfg.Max {
				return fail(fmt.Sprintf("min %d above max %d", cfg.Min, cfg.Max), ErrInvalidThreshold)
			}
		}
	default:
		return fail(fmt.Sprintf("kind %q", cfg.Kind), ErrUnknownKind)
	}
	return nil
}

// Build validates every enabled source and binds it to hardware. Disabled
// sources are skipped. Any invalid source fails the whole build.
func Build(cfgs []model.SourceConfig, deps Deps) ([]Source, error) {
	if deps.Scheduler == nil {
		deps.Scheduler = clock.TickerScheduler{}
	}
	seen := map[string]struct{}{}
	sources := make([]Source, 0, len(cfgs))
	for i, raw := range cfgs {
		if !raw.Enabled {
			continue
		}
		cfg := WithDefaults(raw)
		if cfg.Name == "" {
			cfg.Name = fmt.Sprintf("%s%d", cfg.Kind, i)
		}
		if _, ok := seen[cfg.Name]; ok {
			return nil, &ConfigError{Source: cfg.Name, Err: ErrDuplicateName}
		}
		seen[cfg.Name] = struct{}{}
		if err := Validate(cfg); err != nil {
			return nil, err
		}
		src, err := bind(cfg, deps)
		if err != nil {
			return nil, &ConfigError{Source: cfg.Name, Reason: "bind failed", Err: err}
		}
		sources = append(sources, src)
	}
	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	return sources, nil
}

func bind(cfg model.SourceConfig, deps Deps) (Source, error) {
	var opts []ThresholdOption
	if deps.OnSampleError != nil {
		opts = append(opts, WithSampleErrors(deps.OnSampleError))
	}
	switch cfg.Kind {
	case model.KindGPIO:
		activeLow := cfg.Trigger == "low"
		var line Line
		if cfg.Binding == model.BindingRPIO {
			l, err := OpenRPIOLine(cfg.Pin, cfg.Pull, deps.Scheduler, cfg.Poll)
			if err != nil {
				return nil, err
			}
			line = l
		} else {
			// Resting level is released.
			line = NewVirtualLine(activeLow)
		}
		return NewGPIOSource(cfg.Name, line, activeLow), nil
	case model.KindTouch:
		sampler := samplerFor(cfg, cfg.High+1)
		if cfg.Trigger == "above" {
			sampler = samplerFor(cfg, cfg.Low-1)
		}
		return NewTouchSource(cfg.Name, sampler, deps.Scheduler, cfg.Sample, cfg.Low, cfg.High, cfg.Trigger == "above", opts...), nil
	case model.KindHall:
		rest := (cfg.Min + cfg.Max) / 2
		if cfg.Trigger == "inside" {
			rest = cfg.Max + 1
		}
		sampler := samplerFor(cfg, rest)
		return NewHallSource(cfg.Name, sampler, deps.Scheduler, cfg.Sample, cfg.Min, cfg.Max, cfg.Trigger == "inside", opts...), nil
	}
	return nil, ErrUnknownKind
}

// samplerFor returns the configured sampler; virtual samplers start at rest.
func samplerFor(cfg model.SourceConfig, rest int) Sampler {
	if cfg.Binding == model.BindingSysfs {
		return NewFileSampler(cfg.Path)
	}
	return NewVirtualSampler(rest)
}
