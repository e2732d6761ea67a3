// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/lapwatch/internal/model"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Stopwatch StopwatchConfig `toml:"stopwatch"`
	Sources   []SourceConfig  `toml:"source"`
	Indicator IndicatorConfig `toml:"indicator"`
}

// StopwatchConfig maps classifier and clock settings.
type StopwatchConfig struct {
	Variant        *string `toml:"variant"`
	LongPressCs    *int    `toml:"long-press-cs"`
	TickMs         *int    `toml:"tick-ms"`
	HoldPollMs     *int    `toml:"hold-poll-ms"`
	ConfirmPulseMs *int    `toml:"confirm-pulse-ms"`
}

// SourceConfig maps one [[source]] entry.
type SourceConfig struct {
	Name     string `toml:"name"`
	Kind     string `toml:"kind"`
	Binding  string `toml:"binding"`
	Enabled  *bool  `toml:"enabled"`
	Trigger  string `toml:"trigger"`
	Pin      int    `toml:"pin"`
	Pull     string `toml:"pull"`
	PollMs   int    `toml:"poll-ms"`
	Low      int    `toml:"low"`
	High     int    `toml:"high"`
	Min      int    `toml:"min"`
	Max      int    `toml:"max"`
	Path     string `toml:"path"`
	SampleMs int    `toml:"sample-ms"`
}

// IndicatorConfig maps the status LED.
type IndicatorConfig struct {
	Binding string `toml:"binding"`
	Pin     int    `toml:"pin"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}

// ModelSources converts [[source]] entries. With none configured a single
// virtual button named "key" is returned.
func (c FileConfig) ModelSources() []model.SourceConfig {
	if len(c.Sources) == 0 {
		return []model.SourceConfig{DefaultSource()}
	}
	out := make([]model.SourceConfig, 0, len(c.Sources))
	for _, s := range c.Sources {
		out = append(out, s.Model())
	}
	return out
}

// DefaultSource is the keyboard-driven button used when no source is configured.
func DefaultSource() model.SourceConfig {
	return model.SourceConfig{
		Name:    "key",
		Kind:    model.KindGPIO,
		Binding: model.BindingVirtual,
		Enabled: true,
	}
}

// Model converts the entry; enabled defaults to true.
func (s SourceConfig) Model() model.SourceConfig {
	enabled := true
	if s.Enabled != nil {
		enabled = *s.Enabled
	}
	return model.SourceConfig{
		Name:    s.Name,
		Kind:    model.SourceKind(s.Kind),
		Binding: model.Binding(s.Binding),
		Enabled: enabled,
		Trigger: s.Trigger,
		Pin:     s.Pin,
		Pull:    s.Pull,
		Poll:    time.Duration(s.PollMs) * time.Millisecond,
		Low:     s.Low,
		High:    s.High,
		Min:     s.Min,
		Max:     s.Max,
		Path:    s.Path,
		Sample:  time.Duration(s.SampleMs) * time.Millisecond,
	}
}

// Model converts the indicator table.
func (i IndicatorConfig) Model() model.IndicatorConfig {
	return model.IndicatorConfig{Binding: model.Binding(i.Binding), Pin: i.Pin}
}
