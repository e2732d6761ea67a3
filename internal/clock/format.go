package clock

import "github.com/verte-zerg/lapwatch/internal/model"

const (
	csPerSecond = 100
	csPerMinute = 60 * csPerSecond
	csPerHour   = 60 * csPerMinute
)

// Decompose splits centiseconds into hours, minutes, seconds and centiseconds,
// each stage subtracting what the previous stages already accounted for.
func Decompose(cs uint64) model.Snapshot {
	hh := cs / csPerHour
	mm := (cs - hh*csPerHour) / csPerMinute
	ss := (cs - hh*csPerHour - mm*csPerMinute) / csPerSecond
	rest := cs - hh*csPerHour - mm*csPerMinute - ss*csPerSecond
	return model.Snapshot{Hours: hh, Minutes: mm, Seconds: ss, Centiseconds: rest}
}
