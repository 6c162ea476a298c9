package utils

import (
	"testing"
	"time"
)

func TestLatencyTrackerPercentile(t *testing.T) {
	tracker := NewLatencyTracker(8)
	for i := 1; i <= 10; i++ {
		tracker.Observe(time.Duration(i) * time.Millisecond)
	}

	// Oldest two samples dropped once maxSize is exceeded.
	if tracker.Count() != 8 {
		t.Fatalf("expected 8 samples, got %d", tracker.Count())
	}
	if got := tracker.Percentile(0); got != 3*time.Millisecond {
		t.Fatalf("unexpected min: %v", got)
	}
	if got := tracker.Percentile(100); got != 10*time.Millisecond {
		t.Fatalf("unexpected max: %v", got)
	}
	if got := tracker.Percentile(50); got < 3*time.Millisecond || got > 10*time.Millisecond {
		t.Fatalf("p50 outside sample range: %v", got)
	}
}

func TestLatencyTrackerEmpty(t *testing.T) {
	tracker := NewLatencyTracker(4)
	if got := tracker.Percentile(95); got != 0 {
		t.Fatalf("expected zero for empty tracker, got %v", got)
	}
}
