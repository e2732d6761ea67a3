package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/lapwatch/internal/clock"
	"github.com/verte-zerg/lapwatch/internal/model"
)

type fakeButton struct {
	driven []model.PressState
}

func (b *fakeButton) Drive(state model.PressState) bool {
	b.driven = append(b.driven, state)
	return true
}

func testConfig() model.Config {
	return model.Config{
		Variant:      model.VariantRelease,
		LongPressCs:  50,
		ConfirmPulse: 50 * time.Millisecond,
	}
}

func TestSpaceTogglesButton(t *testing.T) {
	button := &fakeButton{}
	m := NewModel(testConfig(), button)
	m.Update(tea.KeyMsg{Type: tea.KeySpace})
	m.Update(tea.KeyMsg{Type: tea.KeySpace})
	if len(button.driven) != 2 || button.driven[0] != model.Pressed || button.driven[1] != model.Released {
		t.Fatalf("expected press then release, got %v", button.driven)
	}
}

func TestEnterTapsButton(t *testing.T) {
	button := &fakeButton{}
	m := NewModel(testConfig(), button)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatalf("expected a release to be scheduled")
	}
	if len(button.driven) != 1 || button.driven[0] != model.Pressed {
		t.Fatalf("expected press, got %v", button.driven)
	}
	m.Update(tapReleaseMsg{seq: m.tapSeq})
	if len(button.driven) != 2 || button.driven[1] != model.Released {
		t.Fatalf("expected release after tap, got %v", button.driven)
	}
	m.Update(tapReleaseMsg{seq: m.tapSeq})
	if len(button.driven) != 2 {
		t.Fatalf("expected stale release to be ignored, got %v", button.driven)
	}
}

func TestSessionMessagesUpdateView(t *testing.T) {
	m := NewModel(testConfig(), nil)
	m.Update(tickMsg{snap: clock.Decompose(6150)})
	m.Update(lapMsg{rec: model.LapRecord{Index: 1, Elapsed: 150}})
	m.Update(lapMsg{rec: model.LapRecord{Index: 2, Elapsed: 6150}})
	view := m.View()
	if !containsAll(view, []string{"00:01:01.50", "(2)", "+00:01:00.00", "Laps 2", "hardware input"}) {
		t.Fatalf("view missing expected content: %s", view)
	}
	m.Update(clearedMsg{})
	if len(m.laps) != 0 || len(m.lapTable.Rows()) != 0 {
		t.Fatalf("expected laps cleared")
	}
}

func TestLapRowsNewestFirst(t *testing.T) {
	rows := lapRows([]model.LapRecord{{Index: 1, Elapsed: 100}, {Index: 2, Elapsed: 250}})
	if len(rows) != 2 || rows[0][0] != "(2)" || rows[0][2] != "+00:00:01.50" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestConfirmFlashes(t *testing.T) {
	m := NewModel(testConfig(), nil)
	_, cmd := m.Update(confirmMsg{})
	if !m.flashing || cmd == nil {
		t.Fatalf("expected flash with a scheduled end")
	}
	m.Update(flashDoneMsg{seq: m.flashSeq})
	if m.flashing {
		t.Fatalf("expected flash to end")
	}
}

func TestStoppedQuitsWithError(t *testing.T) {
	m := NewModel(testConfig(), nil)
	boom := errors.New("input fault")
	_, cmd := m.Update(stoppedMsg{err: boom})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if !errors.Is(m.err, boom) {
		t.Fatalf("expected error to be kept, got %v", m.err)
	}
	if !strings.Contains(m.View(), "input fault") {
		t.Fatalf("expected error in footer, got %q", m.View())
	}
}

func TestRendererDropsBeforeAttach(t *testing.T) {
	r := NewRenderer()
	r.Tick(clock.Decompose(1))
	r.Confirm()
}

func containsAll(haystack string, needles []string) bool {
	for _, needle := range needles {
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}
