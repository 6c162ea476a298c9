package models

import "time"

// SeriesPoint is one daily vessel-count observation.
type SeriesPoint struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

// ChannelSeries holds the ordered daily vessel counts for one channel over a
// trailing window ending at the reference date. Dates are strictly increasing;
// missing days are absent points, not zeros.
type ChannelSeries struct {
	ChannelID string        `json:"channel_id"`
	Points    []SeriesPoint `json:"points"`
}

// Len returns the number of observations.
func (s ChannelSeries) Len() int { return len(s.Points) }

// Counts returns the raw count values in date order.
func (s ChannelSeries) Counts() []float64 {
	values := make([]float64, len(s.Points))
	for i, p := range s.Points {
		values[i] = float64(p.Count)
	}
	return values
}

// Span returns the first and last dates covered by the series.
func (s ChannelSeries) Span() (time.Time, time.Time) {
	if len(s.Points) == 0 {
		return time.Time{}, time.Time{}
	}
	return s.Points[0].Date, s.Points[len(s.Points)-1].Date
}

// TimeRange bounds a date interval.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
