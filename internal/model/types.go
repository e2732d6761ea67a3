// Package model defines shared data structures.
package model

import (
	"fmt"
	"time"
)

// PressState is the level of an input source, or of the unified logical input.
type PressState uint8

const (
	Released PressState = iota
	Pressed
)

func (s PressState) String() string {
	if s == Pressed {
		return "pressed"
	}
	return "released"
}

// ParsePressState parses "pressed" or "released".
func ParsePressState(v string) (PressState, error) {
	switch v {
	case "pressed":
		return Pressed, nil
	case "released":
		return Released, nil
	}
	return Released, fmt.Errorf("invalid press state %q (want pressed or released)", v)
}

// Variant selects the press classification state machine.
type Variant string

const (
	// VariantRelease classifies a press when it is released (Idle, WaitingRelease).
	VariantRelease Variant = "release"
	// VariantStaged walks Idle, Lap, ShortPress, StopAndReset, LongPress while the press is held.
	VariantStaged Variant = "staged"
)

// Valid reports whether v names a known variant.
func (v Variant) Valid() bool {
	return v == VariantRelease || v == VariantStaged
}

// SourceKind is the sensing technology behind an input source.
type SourceKind string

const (
	KindGPIO  SourceKind = "gpio"
	KindTouch SourceKind = "touch"
	KindHall  SourceKind = "hall"
)

// Binding names the hardware access used by a source.
type Binding string

const (
	BindingRPIO    Binding = "rpio"
	BindingSysfs   Binding = "sysfs"
	BindingVirtual Binding = "virtual"
	BindingNone    Binding = "none"
)

// LapRecord is one elapsed-time snapshot taken without stopping the clock.
type LapRecord struct {
	Index   int
	Elapsed uint64 // centiseconds
}

// Snapshot is an elapsed time split into display units.
type Snapshot struct {
	Hours        uint64
	Minutes      uint64
	Seconds      uint64
	Centiseconds uint64
}

// Total returns the snapshot as centiseconds.
func (s Snapshot) Total() uint64 {
	return s.Hours*360000 + s.Minutes*6000 + s.Seconds*100 + s.Centiseconds
}

// String renders HH:MM:SS.cc.
func (s Snapshot) String() string {
	return fmt.Sprintf("%02d:%02d:%02d.%02d", s.Hours, s.Minutes, s.Seconds, s.Centiseconds)
}

// Short renders HH:MM:SS.
func (s Snapshot) Short() string {
	return fmt.Sprintf("%02d:%02d:%02d", s.Hours, s.Minutes, s.Seconds)
}

// Config defines stopwatch settings after flags and file config are merged.
type Config struct {
	Variant      Variant
	LongPressCs  uint64
	Tick         time.Duration
	HoldPoll     time.Duration
	ConfirmPulse time.Duration
	Sources      []SourceConfig
	Indicator    IndicatorConfig
}

// SourceConfig describes one input source.
type SourceConfig struct {
	Name    string
	Kind    SourceKind
	Binding Binding
	Enabled bool
	Trigger string

	// gpio
	Pin  int
	Pull string
	Poll time.Duration

	// touch: pressed below Low, released above High.
	Low  int
	High int
	// hall: idle band [Min, Max].
	Min int
	Max int

	Path   string
	Sample time.Duration
}

// IndicatorConfig describes the status LED.
type IndicatorConfig struct {
	Binding Binding
	Pin     int
}
