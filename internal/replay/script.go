// Package replay runs scripted edge sequences against a stopwatch session on
// a manual scheduler, one tick per centisecond.
package replay

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/lapwatch/internal/clock"
	"github.com/verte-zerg/lapwatch/internal/config"
	"github.com/verte-zerg/lapwatch/internal/model"
	"github.com/verte-zerg/lapwatch/internal/press"
)

// ErrNotVirtual is returned for script sources bound to hardware.
var ErrNotVirtual = errors.New("replay sources must use the virtual binding")

// Script is a decoded replay file.
type Script struct {
	Replay  Settings              `toml:"replay"`
	Sources []config.SourceConfig `toml:"source"`
	Edges   []Edge                `toml:"edge"`
}

// Settings maps the [replay] table.
type Settings struct {
	Variant     string `toml:"variant"`
	LongPressCs *int   `toml:"long-press-cs"`
	HoldPollMs  *int   `toml:"hold-poll-ms"`
	EndCs       int    `toml:"end-cs"`
	// Running starts the clock at 0 before the first edge.
	Running bool `toml:"running"`
}

// Edge changes one source at instant At (centiseconds). GPIO sources take
// Level, threshold sources take Value.
type Edge struct {
	At     int    `toml:"at"`
	Source string `toml:"source"`
	Level  string `toml:"level"`
	Value  *int   `toml:"value"`
}

// Load reads and validates a script file.
func Load(path string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("failed to read script: %w", err)
	}
	return Parse(string(data))
}

// Parse decodes and validates a script.
func Parse(data string) (Script, error) {
	var s Script
	meta, err := toml.Decode(data, &s)
	if err != nil {
		return Script{}, fmt.Errorf("failed to decode script: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Script{}, fmt.Errorf("unknown script key %q", undecoded[0].String())
	}
	if err := s.normalize(); err != nil {
		return Script{}, err
	}
	return s, nil
}

func (s *Script) normalize() error {
	if s.Replay.Variant == "" {
		s.Replay.Variant = string(model.VariantRelease)
	}
	if !model.Variant(s.Replay.Variant).Valid() {
		return fmt.Errorf("invalid variant %q", s.Replay.Variant)
	}
	if s.Replay.LongPressCs != nil && *s.Replay.LongPressCs <= 0 {
		return fmt.Errorf("long-press-cs must be > 0")
	}
	if s.Replay.HoldPollMs != nil && *s.Replay.HoldPollMs <= 0 {
		return fmt.Errorf("hold-poll-ms must be > 0")
	}
	if len(s.Sources) == 0 {
		s.Sources = []config.SourceConfig{{Name: "key", Kind: string(model.KindGPIO)}}
	}
	names := make(map[string]model.SourceKind, len(s.Sources))
	for i := range s.Sources {
		src := &s.Sources[i]
		if src.Binding == "" {
			src.Binding = string(model.BindingVirtual)
		}
		if model.Binding(src.Binding) != model.BindingVirtual {
			return fmt.Errorf("source %q: %w", src.Name, ErrNotVirtual)
		}
		if src.Name == "" {
			return fmt.Errorf("source %d has no name", i)
		}
		names[src.Name] = model.SourceKind(src.Kind)
	}

	last := 0
	for i := range s.Edges {
		e := &s.Edges[i]
		if e.At < 0 {
			return fmt.Errorf("edge %d: at must be >= 0", i)
		}
		if e.Source == "" && len(s.Sources) == 1 {
			e.Source = s.Sources[0].Name
		}
		kind, ok := names[e.Source]
		if !ok {
			return fmt.Errorf("edge %d: unknown source %q", i, e.Source)
		}
		if kind == model.KindGPIO {
			if _, err := model.ParsePressState(e.Level); err != nil {
				return fmt.Errorf("edge %d: %w", i, err)
			}
		} else if e.Value == nil {
			return fmt.Errorf("edge %d: %s source %q needs a value", i, kind, e.Source)
		}
		if e.At > last {
			last = e.At
		}
	}
	sort.SliceStable(s.Edges, func(i, j int) bool { return s.Edges[i].At < s.Edges[j].At })

	if s.Replay.EndCs == 0 {
		s.Replay.EndCs = last
	}
	if s.Replay.EndCs < last {
		return fmt.Errorf("end-cs %d is before the last edge at %d", s.Replay.EndCs, last)
	}
	return nil
}

// Config returns the stopwatch configuration the script describes.
func (s Script) Config() model.Config {
	cfg := model.Config{
		Variant:     model.Variant(s.Replay.Variant),
		LongPressCs: press.DefaultLongPress,
		Tick:        clock.DefaultTick,
		HoldPoll:    press.DefaultHoldPoll,
	}
	if s.Replay.LongPressCs != nil {
		cfg.LongPressCs = uint64(*s.Replay.LongPressCs)
	}
	if s.Replay.HoldPollMs != nil {
		cfg.HoldPoll = time.Duration(*s.Replay.HoldPollMs) * time.Millisecond
	}
	for _, src := range s.Sources {
		cfg.Sources = append(cfg.Sources, src.Model())
	}
	return cfg
}
