package engine

import (
	"github.com/harborstack/channelwatch/internal/models"
)

// assembleFinding composes the window reports into the terminal Finding.
// The verdict is true iff at least one congestion window was reported.
// CreatedAt is an assembly timestamp, not part of the detection result;
// repeated runs over an unchanged series differ only in that field.
func (e *Engine) assembleFinding(req models.StructuredRequest, reports []models.WindowReport) models.Finding {
	finding := models.Finding{
		ChannelID:      req.ChannelID,
		ChannelName:    e.vocab.NameOf(req.ChannelID),
		ReferenceDate:  req.ReferenceDate,
		LookbackDays:   e.cfg.LookbackDays,
		Windows:        reports,
		OverallVerdict: len(reports) > 0,
		CreatedAt:      e.now().UTC(),
	}
	finding.Advisories = e.advisories.Advise(finding)
	return finding
}
