package models

import "time"

// CongestionWindow is a date range classified as an anomalous traffic regime.
// Immutable once produced by the classifier.
type CongestionWindow struct {
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	SegmentMean  float64   `json:"segment_mean"`
	BaselineMean float64   `json:"baseline_mean"`
	Severity     float64   `json:"severity"`
	Confidence   float64   `json:"confidence"`
}

// Days returns the window length in calendar days, inclusive of both ends.
func (w CongestionWindow) Days() int {
	return int(w.End.Sub(w.Start).Hours()/24) + 1
}

// Midpoint returns the temporal centre of the window.
func (w CongestionWindow) Midpoint() time.Time {
	return w.Start.Add(w.End.Sub(w.Start) / 2)
}

// EvidenceCategory enumerates evidence sources.
type EvidenceCategory string

const (
	EvidenceWeather EvidenceCategory = "weather"
	EvidenceNews    EvidenceCategory = "news"
)

// EvidenceItem is one piece of contextual text with its timestamp and source tag.
type EvidenceItem struct {
	Category  EvidenceCategory `json:"category"`
	Source    string           `json:"source"`
	Timestamp time.Time        `json:"timestamp"`
	Text      string           `json:"text"`
	URL       string           `json:"url"`
}

// EvidenceStatus reports whether a category was retrievable.
type EvidenceStatus string

const (
	EvidencePresent     EvidenceStatus = "present"
	EvidenceUnavailable EvidenceStatus = "unavailable"
)

// EvidenceSet carries the correlated items for one category of one window,
// making partial provider failure explicit rather than a silently empty slice.
type EvidenceSet struct {
	Category EvidenceCategory `json:"category"`
	Status   EvidenceStatus   `json:"status"`
	Reason   string           `json:"reason"`
	Items    []EvidenceItem   `json:"items"`
}

// WindowReport pairs a congestion window with its correlated evidence.
type WindowReport struct {
	Window   CongestionWindow `json:"window"`
	Evidence []EvidenceSet    `json:"evidence"`
}

// Finding is the terminal output of one detection request. Immutable once
// assembled; owned by the caller after return.
type Finding struct {
	ChannelID      string         `json:"channel_id"`
	ChannelName    string         `json:"channel_name"`
	ReferenceDate  time.Time      `json:"reference_date"`
	LookbackDays   int            `json:"lookback_days"`
	Windows        []WindowReport `json:"windows"`
	OverallVerdict bool           `json:"overall_verdict"`
	Advisories     []string       `json:"advisories"`
	CreatedAt      time.Time      `json:"created_at"`
}
