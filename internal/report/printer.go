package report

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/verte-zerg/lapwatch/internal/clock"
	"github.com/verte-zerg/lapwatch/internal/model"
)

var (
	timeStyle    = lipgloss.NewStyle().Background(lipgloss.Color("12")).Foreground(lipgloss.Color("#F0F0F0"))
	lapStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	confirmStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F")).Bold(true)
)

// Printer is a headless renderer. It prints the time once per second, each
// lap as it is taken and a notice on reset. On a terminal the time line is
// redrawn in place.
type Printer struct {
	mu     sync.Mutex
	w      io.Writer
	redraw bool
	color  bool
	dirty  bool
}

// NewPrinter writes to w. Colour and in-place redraw are enabled only when w
// is a terminal; forceColor enables colour regardless.
func NewPrinter(w io.Writer, forceColor bool) *Printer {
	return &Printer{
		w:      w,
		redraw: isTerminal(w),
		color:  shouldUseColor(w, forceColor),
	}
}

func (p *Printer) Tick(snap model.Snapshot) {
	if snap.Total()%100 != 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	line := p.style(timeStyle, snap.Short())
	if p.redraw {
		p.printf("\r%s", line)
		p.dirty = true
		return
	}
	p.printf("%s\n", line)
}

func (p *Printer) Lap(rec model.LapRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.newline()
	p.printf("%s\t%s\n", p.style(lapStyle, fmt.Sprintf("(%d)", rec.Index)), clock.Decompose(rec.Elapsed).String())
}

func (p *Printer) LapsCleared() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.newline()
	p.printf("started\n")
}

func (p *Printer) Confirm() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.newline()
	p.printf("%s\n", p.style(confirmStyle, "STOPPED AND RESET"))
}

func (p *Printer) Indicator(bool) {}

// Summary prints the final time and lap table.
func (p *Printer) Summary(elapsed uint64, laps []model.LapRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.newline()
	p.printf("Time %s\n", clock.Decompose(elapsed).String())
	if len(laps) == 0 {
		return
	}
	for _, line := range FormatLaps(laps) {
		p.printf("%s\n", line)
	}
}

func (p *Printer) newline() {
	if p.dirty {
		p.printf("\n")
		p.dirty = false
	}
}

func (p *Printer) style(s lipgloss.Style, v string) string {
	if !p.color {
		return v
	}
	return s.Render(v)
}

func (p *Printer) printf(format string, args ...any) {
	if _, err := fmt.Fprintf(p.w, format, args...); err != nil {
		// Best-effort output.
		_ = err
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

func shouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	return isTerminal(w)
}
