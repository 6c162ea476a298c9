package classify

import (
	"math"
	"testing"
	"time"

	"github.com/harborstack/channelwatch/internal/models"
	"github.com/harborstack/channelwatch/internal/segment"
)

func dailySeries(t *testing.T, start time.Time, counts []int) models.ChannelSeries {
	t.Helper()
	points := make([]models.SeriesPoint, len(counts))
	for i, c := range counts {
		points[i] = models.SeriesPoint{Date: start.AddDate(0, 0, i), Count: c}
	}
	return models.ChannelSeries{ChannelID: "malacca-strait", Points: points}
}

func stepCounts(levels []int, lengths []int) []int {
	var counts []int
	for i, level := range levels {
		for j := 0; j < lengths[i]; j++ {
			counts = append(counts, level)
		}
	}
	return counts
}

func segmentize(t *testing.T, series models.ChannelSeries) []segment.Segment {
	t.Helper()
	detector := segment.NewDetector(segment.Config{MinSegmentSize: 3})
	_, segments, err := detector.Detect(series.Counts())
	if err != nil {
		t.Fatalf("segmentation failed: %v", err)
	}
	return segments
}

func TestClassifySingleStep(t *testing.T) {
	start := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	series := dailySeries(t, start, stepCounts([]int{100, 260}, []int{60, 30}))
	classifier := NewClassifier(Config{RelativeThreshold: 1.5, MinDurationDays: 7})

	windows := classifier.Classify(series, segmentize(t, series))
	if len(windows) != 1 {
		t.Fatalf("expected one window, got %d", len(windows))
	}

	w := windows[0]
	if !w.Start.Equal(start.AddDate(0, 0, 60)) {
		t.Fatalf("unexpected window start: %v", w.Start)
	}
	if !w.End.Equal(start.AddDate(0, 0, 89)) {
		t.Fatalf("unexpected window end: %v", w.End)
	}
	if math.Abs(w.Severity-1.6) > 1e-9 {
		t.Fatalf("expected severity 1.6, got %f", w.Severity)
	}
	if w.Confidence <= 0 || w.Confidence > 1 {
		t.Fatalf("confidence out of range: %f", w.Confidence)
	}
}

func TestClassifyFlatSeries(t *testing.T) {
	start := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	series := dailySeries(t, start, stepCounts([]int{100}, []int{90}))
	classifier := NewClassifier(Config{})

	windows := classifier.Classify(series, segmentize(t, series))
	if len(windows) != 0 {
		t.Fatalf("expected no windows for flat series, got %d", len(windows))
	}
}

func TestClassifyShortSpikeSuppressed(t *testing.T) {
	start := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	series := dailySeries(t, start, stepCounts([]int{100, 260}, []int{87, 3}))
	classifier := NewClassifier(Config{RelativeThreshold: 1.5, MinDurationDays: 7})

	windows := classifier.Classify(series, segmentize(t, series))
	if len(windows) != 0 {
		t.Fatalf("expected 3-day spike to be suppressed, got %d windows", len(windows))
	}
}

func TestClassifyMergesSubMinimumGap(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	counts := stepCounts([]int{100, 260, 100, 260}, []int{30, 10, 4, 10})
	series := dailySeries(t, start, counts)
	classifier := NewClassifier(Config{RelativeThreshold: 1.5, MinDurationDays: 7})

	windows := classifier.Classify(series, segmentize(t, series))
	if len(windows) != 1 {
		t.Fatalf("expected merged single window, got %d", len(windows))
	}

	w := windows[0]
	if !w.Start.Equal(start.AddDate(0, 0, 30)) {
		t.Fatalf("unexpected merged start: %v", w.Start)
	}
	if !w.End.Equal(start.AddDate(0, 0, 53)) {
		t.Fatalf("unexpected merged end: %v", w.End)
	}
	if w.Severity <= 0 {
		t.Fatalf("expected positive severity, got %f", w.Severity)
	}
}

func TestClassifyDistantWindowsStaySeparate(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	counts := stepCounts([]int{100, 260, 100, 260}, []int{30, 10, 20, 10})
	series := dailySeries(t, start, counts)
	classifier := NewClassifier(Config{RelativeThreshold: 1.5, MinDurationDays: 7})

	windows := classifier.Classify(series, segmentize(t, series))
	if len(windows) != 2 {
		t.Fatalf("expected two windows, got %d", len(windows))
	}
	if !windows[1].Start.After(windows[0].End) {
		t.Fatalf("windows out of order: %+v", windows)
	}
}
