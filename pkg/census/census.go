// Package census implements the sender-side keepalive liveness table: a
// flat 65536-entry array keyed by 16-bit client id.
package census

import (
	"fmt"
	"io"
	"sync"
	"time"
)

const tableSize = 65536

type entry struct {
	time  time.Time
	value uint8
}

// Table is the sender's flat census of per-client last-seen time and
// last-seen exit-code value.
type Table struct {
	mu        sync.Mutex
	entries   [tableSize]entry
	startTime time.Time
	maxWait   time.Duration
}

// NewTable creates a census table whose liveness horizon is maxWait.
// startTime anchors the "sender's own start time counts as one extra
// live entry" rule.
func NewTable(maxWait time.Duration) *Table {
	return &Table{startTime: time.Now(), maxWait: maxWait}
}

// Update records a heartbeat from id carrying value, observed at now.
func (t *Table) Update(id uint16, value uint8, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[id] = entry{time: now, value: value}
}

// DrainAndCensus counts entries live as of now (time > now-maxWait),
// zeroing stale entries in the same pass, and returns the total live
// count including the sender's own extra slot while it is still within
// maxWait of its own start.
func (t *Table) DrainAndCensus(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	live := 0
	if now.Sub(t.startTime) < t.maxWait {
		live++
	}
	cutoff := now.Add(-t.maxWait)
	for i := range t.entries {
		if t.entries[i].time.After(cutoff) {
			live++
		} else {
			t.entries[i] = entry{}
		}
	}
	return live
}

// LiveAges returns, for every currently-live entry, the age in seconds of
// its last heartbeat. It does not evict stale entries; only
// DrainAndCensus does.
func (t *Table) LiveAges(now time.Time) map[uint16]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := now.Add(-t.maxWait)
	ages := make(map[uint16]float64)
	for id := range t.entries {
		e := t.entries[id]
		if e.time.After(cutoff) {
			ages[uint16(id)] = now.Sub(e.time).Seconds()
		}
	}
	return ages
}

// Dump writes one line per non-zero entry to w, in the original program's
// "client: <high8>.<low8> value: <value>" format, and returns the count
// of entries written.
func (t *Table) Dump(w io.Writer) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	count := 0
	for id, e := range t.entries {
		if e.time.IsZero() {
			continue
		}
		if _, err := fmt.Fprintf(w, "client: %d.%d value: %d\n", id/256, id%256, e.value); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
