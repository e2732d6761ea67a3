// Package laplog keeps the ordered lap snapshots of a stopwatch session.
package laplog

import (
	"sync"

	"github.com/verte-zerg/lapwatch/internal/model"
)

// LapLog is an append-only sequence of laps. Renderers may read it while the
// classifier appends.
type LapLog struct {
	mu      sync.RWMutex
	records []model.LapRecord
	index   int
}

// New returns an empty LapLog.
func New() *LapLog {
	return &LapLog{}
}

// Append records a lap at elapsed and returns it. Indices start at 1.
func (l *LapLog) Append(elapsed uint64) model.LapRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.index++
	rec := model.LapRecord{Index: l.index, Elapsed: elapsed}
	l.records = append(l.records, rec)
	return rec
}

// Clear empties the log and resets the index counter to 0.
func (l *LapLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = nil
	l.index = 0
}

// Records returns a copy of the laps in order.
func (l *LapLog) Records() []model.LapRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]model.LapRecord(nil), l.records...)
}

// Len returns the number of laps.
func (l *LapLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Last returns the most recent lap.
func (l *LapLog) Last() (model.LapRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.records) == 0 {
		return model.LapRecord{}, false
	}
	return l.records[len(l.records)-1], true
}

// Split returns the time between lap i (0-based) and the lap before it.
// The first lap's split is its elapsed value.
func Split(records []model.LapRecord, i int) uint64 {
	if i < 0 || i >= len(records) {
		return 0
	}
	if i == 0 {
		return records[0].Elapsed
	}
	prev := records[i-1].Elapsed
	if records[i].Elapsed < prev {
		return 0
	}
	return records[i].Elapsed - prev
}
