package census

import (
	"strings"
	"testing"
	"time"
)

func TestTableDrainAndCensus(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		maxWait   time.Duration
		heartbeat time.Duration // how long before base the one heartbeat landed
		wantLive  int           // excludes the sender's own extra slot
	}{
		{name: "fresh heartbeat is live", maxWait: 5 * time.Second, heartbeat: 1 * time.Second, wantLive: 1},
		{name: "heartbeat exactly at horizon is stale", maxWait: 5 * time.Second, heartbeat: 5 * time.Second, wantLive: 0},
		{name: "heartbeat well past horizon is stale", maxWait: 5 * time.Second, heartbeat: 30 * time.Second, wantLive: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := NewTable(tt.maxWait)
			table.Update(42, 7, base.Add(-tt.heartbeat))
			live := table.DrainAndCensus(base)
			// The sender's own startTime is "now" here, well within maxWait, so
			// it always contributes one extra live slot.
			wantTotal := tt.wantLive + 1
			if live != wantTotal {
				t.Errorf("DrainAndCensus() = %d, want %d", live, wantTotal)
			}
		})
	}
}

func TestTableDrainAndCensusZeroesStaleEntries(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	table := NewTable(5 * time.Second)
	table.Update(42, 7, base.Add(-30*time.Second))

	table.DrainAndCensus(base)
	if ages := table.LiveAges(base); len(ages) != 0 {
		t.Errorf("LiveAges() after stale drain = %v, want empty", ages)
	}
	var out strings.Builder
	if count, err := table.Dump(&out); err != nil || count != 0 {
		t.Errorf("Dump() after stale drain = %d entries (err %v), want 0: stale entry not zeroed", count, err)
	}
}

func TestTableSenderOwnSlotExpires(t *testing.T) {
	table := NewTable(5 * time.Second)
	if live := table.DrainAndCensus(table.startTime); live != 1 {
		t.Fatalf("DrainAndCensus() at startTime = %d, want 1 (sender's own slot)", live)
	}
	if live := table.DrainAndCensus(table.startTime.Add(10 * time.Second)); live != 0 {
		t.Errorf("DrainAndCensus() past maxwait = %d, want 0", live)
	}
}

func TestTableDump(t *testing.T) {
	now := time.Now()
	table := NewTable(time.Minute)
	table.Update(256, 9, now)   // client 1.0
	table.Update(257, 200, now) // client 1.1

	var out strings.Builder
	count, err := table.Dump(&out)
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if count != 2 {
		t.Fatalf("Dump count = %d, want 2", count)
	}
	for _, want := range []string{"client: 1.0 value: 9", "client: 1.1 value: 200"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Dump() output missing %q, got %q", want, out.String())
		}
	}
}
