package input

import (
	"fmt"
	"sync"
	"time"

	"github.com/stianeikeland/go-rpio/v4"

	"github.com/verte-zerg/lapwatch/internal/clock"
)

// DefaultPoll is how often the edge-detect register is checked.
const DefaultPoll = time.Millisecond

var (
	rpioMu     sync.Mutex
	rpioOpened bool
)

// OpenRPIO maps the GPIO registers once per process.
func OpenRPIO() error {
	rpioMu.Lock()
	defer rpioMu.Unlock()
	if rpioOpened {
		return nil
	}
	if err := rpio.Open(); err != nil {
		return fmt.Errorf("failed to open gpio memory: %w", err)
	}
	rpioOpened = true
	return nil
}

// CloseRPIO unmaps the GPIO registers if they were mapped.
func CloseRPIO() error {
	rpioMu.Lock()
	defer rpioMu.Unlock()
	if !rpioOpened {
		return nil
	}
	rpioOpened = false
	return rpio.Close()
}

// RPIOLine is a BCM pin read through go-rpio. Edge detection is latched by the
// SoC; the latch is drained on the scheduler so no transition is missed
// between polls.
type RPIOLine struct {
	pin   rpio.Pin
	sched clock.Scheduler
	poll  time.Duration
}

// OpenRPIOLine configures pin as an input with the given pull ("up", "down", "off").
func OpenRPIOLine(pin int, pull string, sched clock.Scheduler, poll time.Duration) (*RPIOLine, error) {
	if err := OpenRPIO(); err != nil {
		return nil, err
	}
	p := rpio.Pin(pin)
	p.Input()
	switch pull {
	case "up", "":
		p.PullUp()
	case "down":
		p.PullDown()
	case "off":
		p.PullOff()
	default:
		return nil, fmt.Errorf("invalid pull %q", pull)
	}
	if poll <= 0 {
		poll = DefaultPoll
	}
	return &RPIOLine{pin: p, sched: sched, poll: poll}, nil
}

func (l *RPIOLine) High() bool {
	return l.pin.Read() == rpio.High
}

func (l *RPIOLine) Subscribe(fn func(high bool)) (func(), error) {
	l.pin.Detect(rpio.AnyEdge)
	stop := l.sched.Every(l.poll, func() {
		if l.pin.EdgeDetected() {
			fn(l.High())
		}
	})
	return func() {
		stop()
		l.pin.Detect(rpio.NoEdge)
	}, nil
}
