// Package indicator drives the status LED: lit while a press is handled,
// briefly dark to confirm a reset.
package indicator

import (
	"fmt"
	"sync"
	"time"

	"github.com/stianeikeland/go-rpio/v4"

	"github.com/verte-zerg/lapwatch/internal/input"
	"github.com/verte-zerg/lapwatch/internal/model"
)

// DefaultPulse is the dark period of a confirmation pulse.
const DefaultPulse = 50 * time.Millisecond

// LED is a binary output.
type LED interface {
	Set(on bool)
}

// RPIOLED is an LED on a BCM pin.
type RPIOLED struct {
	pin rpio.Pin
}

// OpenRPIOLED configures pin as an output, initially off.
func OpenRPIOLED(pin int) (*RPIOLED, error) {
	if err := input.OpenRPIO(); err != nil {
		return nil, err
	}
	p := rpio.Pin(pin)
	p.Output()
	p.Low()
	return &RPIOLED{pin: p}, nil
}

func (l *RPIOLED) Set(on bool) {
	if on {
		l.pin.High()
		return
	}
	l.pin.Low()
}

// Open returns the LED described by cfg, or nil when none is configured.
func Open(cfg model.IndicatorConfig) (LED, error) {
	switch cfg.Binding {
	case "", model.BindingNone:
		return nil, nil
	case model.BindingRPIO:
		led, err := OpenRPIOLED(cfg.Pin)
		if err != nil {
			return nil, fmt.Errorf("failed to open indicator on pin %d: %w", cfg.Pin, err)
		}
		return led, nil
	}
	return nil, fmt.Errorf("unsupported indicator binding %q", cfg.Binding)
}

// Indicator renders classifier output on an LED.
type Indicator struct {
	led   LED
	pulse time.Duration

	mu      sync.Mutex
	on      bool
	pulsing *time.Timer
}

// New returns an Indicator. A non-positive pulse uses DefaultPulse.
func New(led LED, pulse time.Duration) *Indicator {
	if pulse <= 0 {
		pulse = DefaultPulse
	}
	return &Indicator{led: led, pulse: pulse}
}

func (i *Indicator) Indicator(on bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.on = on
	if i.pulsing == nil {
		i.led.Set(on)
	}
}

// Confirm turns the LED off for the pulse period, then restores it.
func (i *Indicator) Confirm() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.pulsing != nil {
		i.pulsing.Stop()
	}
	i.led.Set(false)
	i.pulsing = time.AfterFunc(i.pulse, func() {
		i.mu.Lock()
		defer i.mu.Unlock()
		i.pulsing = nil
		i.led.Set(i.on)
	})
}

func (i *Indicator) Tick(model.Snapshot) {}
func (i *Indicator) Lap(model.LapRecord) {}
func (i *Indicator) LapsCleared()        {}

// Close turns the LED off.
func (i *Indicator) Close() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.pulsing != nil {
		i.pulsing.Stop()
		i.pulsing = nil
	}
	i.on = false
	i.led.Set(false)
}
