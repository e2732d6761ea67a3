package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/lapwatch/internal/model"
)

type tickMsg struct{ snap model.Snapshot }

type lapMsg struct{ rec model.LapRecord }

type clearedMsg struct{}

type confirmMsg struct{}

type flashDoneMsg struct{ seq int }

type indicatorMsg struct{ on bool }

type tapReleaseMsg struct{ seq int }

type stoppedMsg struct{ err error }

// Renderer forwards session output into a Bubble Tea program. Output that
// arrives before Attach is dropped.
type Renderer struct {
	mu   sync.RWMutex
	send func(tea.Msg)
}

// NewRenderer returns an unattached renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Attach routes messages to p.
func (r *Renderer) Attach(p *tea.Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.send = p.Send
}

func (r *Renderer) Tick(snap model.Snapshot) { r.dispatch(tickMsg{snap: snap}) }

func (r *Renderer) Lap(rec model.LapRecord) { r.dispatch(lapMsg{rec: rec}) }

func (r *Renderer) LapsCleared() { r.dispatch(clearedMsg{}) }

func (r *Renderer) Confirm() { r.dispatch(confirmMsg{}) }

func (r *Renderer) Indicator(on bool) { r.dispatch(indicatorMsg{on: on}) }

// Stopped tells the UI that the session ended.
func (r *Renderer) Stopped(err error) { r.dispatch(stoppedMsg{err: err}) }

func (r *Renderer) dispatch(msg tea.Msg) {
	r.mu.RLock()
	send := r.send
	r.mu.RUnlock()
	if send != nil {
		send(msg)
	}
}
