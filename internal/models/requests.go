package models

import "time"

// StructuredRequest is the validated outcome of query interpretation.
type StructuredRequest struct {
	ChannelID     string    `json:"channel_id"`
	ReferenceDate time.Time `json:"reference_date"`
}

// ListFindingsRequest captures filters for historical findings.
type ListFindingsRequest struct {
	ChannelID string    `json:"channel_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Limit     int       `json:"limit"`
}

// ChannelPattern summarises recurring congestion behaviour mined from
// historical findings for one channel.
type ChannelPattern struct {
	ChannelID       string    `json:"channel_id"`
	Episodes        int       `json:"episodes"`
	Findings        int       `json:"findings"`
	Prevalence      float64   `json:"prevalence"`
	MeanSeverity    float64   `json:"mean_severity"`
	TypicalDuration float64   `json:"typical_duration"`
	LastSeen        time.Time `json:"last_seen"`
}
