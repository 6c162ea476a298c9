package models

import "errors"

// Detection-stage failures. Both abort the whole request; no partial Finding
// is returned.
var (
	// ErrInsufficientData signals the loaded series is too short to segment.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrDataUnavailable signals the loader cannot supply a series for the
	// requested window.
	ErrDataUnavailable = errors.New("data unavailable")
)
