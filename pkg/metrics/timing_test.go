package metrics

import (
	"testing"
	"time"
)

func TestTimingMetricRecord(t *testing.T) {
	SetEnabled(true)
	m := newTimingMetric("test")
	m.Record(2 * time.Millisecond)
	m.Record(4 * time.Millisecond)

	s := m.Stats()
	if s.Count != 2 {
		t.Fatalf("expected count 2, got %d", s.Count)
	}
	if s.MaxMs != 4 || s.MinMs != 2 || s.AvgMs != 3 {
		t.Errorf("unexpected stats %+v", s)
	}

	m.Reset()
	if m.Count() != 0 {
		t.Error("expected reset to clear count")
	}
}

func TestTimingDisabled(t *testing.T) {
	SetEnabled(false)
	defer SetEnabled(true)

	m := newTimingMetric("off")
	Timer(m)()
	m.Record(time.Second)
	if m.Count() != 0 {
		t.Errorf("expected no measurements while disabled, got %d", m.Count())
	}
}

func TestCacheMetric(t *testing.T) {
	SetEnabled(true)
	c := newCacheMetric("c")
	if c.HitRate() != 0 {
		t.Error("expected zero hit rate without data")
	}
	c.Hit()
	c.Hit()
	c.Hit()
	c.Miss()
	if got := c.HitRate(); got != 0.75 {
		t.Errorf("expected hit rate 0.75, got %v", got)
	}
	c.Reset()
	if c.Hits() != 0 || c.Misses() != 0 {
		t.Error("expected reset to clear counters")
	}
}

func TestAllTimingStatsOnlyWithData(t *testing.T) {
	SetEnabled(true)
	ResetAll()
	SortStage.Record(time.Millisecond)
	stats := AllTimingStats()
	if len(stats) != 1 || stats[0].Name != "sort_stage" {
		t.Errorf("expected only sort_stage stats, got %+v", stats)
	}
	ResetAll()
}
