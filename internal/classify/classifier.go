// Package classify turns segmentation output into congestion windows.
package classify

import (
	"math"

	"github.com/harborstack/channelwatch/internal/models"
	"github.com/harborstack/channelwatch/internal/segment"
	"github.com/harborstack/channelwatch/internal/utils"
)

// Config holds the congestion policy knobs.
type Config struct {
	// RelativeThreshold is the multiplicative factor a segment mean must
	// exceed its baseline by to qualify, e.g. 1.5 for a 50% jump.
	RelativeThreshold float64
	// MinDurationDays suppresses short spikes: a qualifying segment must
	// span at least this many days, and qualifying windows separated by a
	// shorter gap are merged.
	MinDurationDays int
}

// Classifier applies the congestion policy to segments.
type Classifier struct {
	threshold   float64
	minDuration int
}

// NewClassifier constructs a Classifier from config, applying defaults.
func NewClassifier(cfg Config) *Classifier {
	threshold := cfg.RelativeThreshold
	if threshold <= 1 {
		threshold = 1.5
	}
	minDuration := cfg.MinDurationDays
	if minDuration <= 0 {
		minDuration = 7
	}
	return &Classifier{threshold: threshold, minDuration: minDuration}
}

// Classify returns zero or more congestion windows ordered by start date.
// The baseline for each candidate segment is the nearest preceding segment
// that did not itself qualify. An empty result is a valid "no anomaly"
// outcome, not an error.
func (c *Classifier) Classify(series models.ChannelSeries, segments []segment.Segment) []models.CongestionWindow {
	if len(segments) < 2 || series.Len() == 0 {
		return nil
	}

	windows := make([]models.CongestionWindow, 0)
	baseline := segments[0]

	for _, seg := range segments[1:] {
		if baseline.Mean <= 0 || seg.Mean <= baseline.Mean*c.threshold {
			baseline = seg
			continue
		}

		start := series.Points[seg.Start].Date
		end := series.Points[seg.End-1].Date
		if utils.DaysBetween(start, end)+1 < c.minDuration {
			// Short spike: suppressed as noise, and it does not become
			// the new baseline either.
			continue
		}

		windows = append(windows, models.CongestionWindow{
			Start:        start,
			End:          end,
			SegmentMean:  seg.Mean,
			BaselineMean: baseline.Mean,
			Severity:     (seg.Mean - baseline.Mean) / baseline.Mean,
			Confidence:   confidence(seg, baseline),
		})
	}

	return c.mergeClose(windows)
}

// mergeClose collapses adjacent windows separated by a sub-minimum gap, so a
// detection-artifact split is reported as one event.
func (c *Classifier) mergeClose(windows []models.CongestionWindow) []models.CongestionWindow {
	if len(windows) < 2 {
		return windows
	}

	merged := windows[:1]
	for _, w := range windows[1:] {
		last := &merged[len(merged)-1]
		gapDays := utils.DaysBetween(last.End, w.Start) - 1
		if gapDays >= c.minDuration {
			merged = append(merged, w)
			continue
		}

		lastDays := float64(last.Days())
		wDays := float64(w.Days())
		combinedMean := (last.SegmentMean*lastDays + w.SegmentMean*wDays) / (lastDays + wDays)

		last.End = w.End
		last.SegmentMean = combinedMean
		last.Severity = (combinedMean - last.BaselineMean) / last.BaselineMean
		if w.Confidence > last.Confidence {
			last.Confidence = w.Confidence
		}
	}
	return merged
}

// confidence scores a boundary from its mean separation in pooled-spread
// units and the sample size backing the congested segment.
func confidence(seg, baseline segment.Segment) float64 {
	pooled := math.Sqrt((seg.Variance + baseline.Variance) / 2)
	if pooled < 1 {
		pooled = 1
	}
	separation := math.Abs(seg.Mean-baseline.Mean) / pooled

	score := 0.35
	score += 0.4 * math.Min(1, separation/6)
	score += 0.25 * math.Min(1, float64(seg.Len())/14)
	if score > 1 {
		score = 1
	}
	return score
}
