// Package segment provides penalized changepoint detection for daily
// vessel-count series.
package segment

import (
	"fmt"
	"math"

	"github.com/harborstack/channelwatch/internal/models"
)

// Config controls the changepoint search.
type Config struct {
	// MinSegmentSize is the smallest admissible segment length in points.
	MinSegmentSize int
	// Penalty trades fit quality against segment count. Zero selects an
	// automatic variance-scaled penalty.
	Penalty float64
}

// Segment is a contiguous run of the input series with its summary statistics.
// Indexes are half-open: [Start, End).
type Segment struct {
	Start    int
	End      int
	Mean     float64
	Variance float64
}

// Len returns the number of points in the segment.
func (s Segment) Len() int { return s.End - s.Start }

// Detector finds mean-shift changepoints using PELT with an L2 cost. The
// search is exact and deterministic: identical input always yields identical
// boundaries.
type Detector struct {
	minSize int
	penalty float64
}

// NewDetector constructs a Detector from config, applying defaults.
func NewDetector(cfg Config) *Detector {
	minSize := cfg.MinSegmentSize
	if minSize < 2 {
		minSize = 3
	}
	return &Detector{minSize: minSize, penalty: cfg.Penalty}
}

// Detect returns the ordered changepoint indices partitioning values into
// segments, together with the segments themselves. A changepoint at index i
// means a new regime starts at values[i]. A series shorter than the minimum
// segment size fails with models.ErrInsufficientData.
func (d *Detector) Detect(values []float64) ([]int, []Segment, error) {
	n := len(values)
	if n < d.minSize {
		return nil, nil, fmt.Errorf("%w: %d points, need at least %d", models.ErrInsufficientData, n, d.minSize)
	}

	penalty := d.penalty
	if penalty <= 0 {
		penalty = autoPenalty(values)
	}

	// Prefix sums for O(1) L2 segment cost.
	sum := make([]float64, n+1)
	sumSq := make([]float64, n+1)
	for i, v := range values {
		sum[i+1] = sum[i] + v
		sumSq[i+1] = sumSq[i] + v*v
	}
	cost := func(a, b int) float64 {
		length := float64(b - a)
		s := sum[b] - sum[a]
		return (sumSq[b] - sumSq[a]) - s*s/length
	}

	// PELT: F[t] is the optimal penalized cost of values[:t]; prev[t] the
	// last changepoint before t on an optimal path. Strict comparison keeps
	// the earliest candidate on ties, so flat stretches stay unsplit.
	f := make([]float64, n+1)
	prev := make([]int, n+1)
	f[0] = -penalty
	candidates := []int{0}

	for t := d.minSize; t <= n; t++ {
		best := math.Inf(1)
		bestTau := 0
		for _, tau := range candidates {
			if t-tau < d.minSize {
				continue
			}
			c := f[tau] + cost(tau, t) + penalty
			if c < best {
				best = c
				bestTau = tau
			}
		}
		f[t] = best
		prev[t] = bestTau

		pruned := candidates[:0]
		for _, tau := range candidates {
			if t-tau < d.minSize || f[tau]+cost(tau, t) <= f[t] {
				pruned = append(pruned, tau)
			}
		}
		candidates = pruned
		if t-d.minSize+1 >= d.minSize {
			candidates = append(candidates, t-d.minSize+1)
		}
	}

	var boundaries []int
	for t := n; t > 0; t = prev[t] {
		if prev[t] > 0 {
			boundaries = append([]int{prev[t]}, boundaries...)
		}
	}

	return boundaries, buildSegments(values, boundaries, sum, sumSq), nil
}

// buildSegments derives per-segment stats from the boundary set.
func buildSegments(values []float64, boundaries []int, sum, sumSq []float64) []Segment {
	edges := append([]int{0}, boundaries...)
	edges = append(edges, len(values))

	segments := make([]Segment, 0, len(edges)-1)
	for i := 0; i+1 < len(edges); i++ {
		a, b := edges[i], edges[i+1]
		length := float64(b - a)
		mean := (sum[b] - sum[a]) / length
		variance := (sumSq[b]-sumSq[a])/length - mean*mean
		if variance < 0 {
			variance = 0
		}
		segments = append(segments, Segment{Start: a, End: b, Mean: mean, Variance: variance})
	}
	return segments
}

// autoPenalty derives a BIC-style penalty from the spread of first
// differences, so the caller does not have to tune for each channel's
// traffic level. Floored at 1 to keep integer count series from
// over-segmenting on numerically flat stretches.
func autoPenalty(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 1
	}

	mean := 0.0
	for i := 1; i < n; i++ {
		mean += values[i] - values[i-1]
	}
	mean /= float64(n - 1)

	variance := 0.0
	for i := 1; i < n; i++ {
		d := values[i] - values[i-1] - mean
		variance += d * d
	}
	variance /= float64(n - 1)

	// Differencing a series with i.i.d. noise doubles the noise variance.
	noiseVar := variance / 2

	penalty := 2 * noiseVar * math.Log(float64(n))
	if penalty < 1 {
		penalty = 1
	}
	return penalty
}
