package engine

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/harborstack/channelwatch/internal/models"
)

// correlate gathers weather and news evidence around one congestion window.
// Each category degrades independently: a failed or unconfigured provider
// yields an unavailable set with a reason, never an error.
func (e *Engine) correlate(ctx context.Context, channelID string, window models.CongestionWindow) []models.EvidenceSet {
	start := window.Start.AddDate(0, 0, -e.cfg.EvidenceMarginDays)
	end := window.End.AddDate(0, 0, e.cfg.EvidenceMarginDays)

	sets := make([]models.EvidenceSet, 0, 2)

	if e.weather == nil {
		sets = append(sets, unavailableSet(models.EvidenceWeather, "weather provider not configured"))
	} else {
		items, err := e.weather.Observations(ctx, channelID, start, end)
		sets = append(sets, e.buildSet(models.EvidenceWeather, channelID, window, start, end, items, err))
	}

	if e.news == nil {
		sets = append(sets, unavailableSet(models.EvidenceNews, "news provider not configured"))
	} else {
		items, err := e.news.Headlines(ctx, channelID, start, end)
		sets = append(sets, e.buildSet(models.EvidenceNews, channelID, window, start, end, items, err))
	}

	return sets
}

func (e *Engine) buildSet(category models.EvidenceCategory, channelID string, window models.CongestionWindow, start, end time.Time, items []models.EvidenceItem, err error) models.EvidenceSet {
	if err != nil {
		e.logger.Warn("evidence retrieval failed",
			slog.String("category", string(category)),
			slog.String("channel", channelID),
			slog.Any("error", err))
		return unavailableSet(category, err.Error())
	}
	items = filterRange(items, start, end)
	return models.EvidenceSet{
		Category: category,
		Status:   models.EvidencePresent,
		Items:    rankEvidence(items, window.Midpoint(), e.cfg.EvidenceCap),
	}
}

// filterRange keeps items whose timestamps fall inside [start, end], end
// inclusive through its whole day. Providers already filter, but the margin
// bound is the correlator's contract.
func filterRange(items []models.EvidenceItem, start, end time.Time) []models.EvidenceItem {
	limit := end.AddDate(0, 0, 1)
	kept := make([]models.EvidenceItem, 0, len(items))
	for _, item := range items {
		if item.Timestamp.Before(start) || !item.Timestamp.Before(limit) {
			continue
		}
		kept = append(kept, item)
	}
	return kept
}

func unavailableSet(category models.EvidenceCategory, reason string) models.EvidenceSet {
	return models.EvidenceSet{
		Category: category,
		Status:   models.EvidenceUnavailable,
		Reason:   reason,
	}
}

// rankEvidence orders items by proximity to the window midpoint, earlier
// item first on ties, and truncates to limit.
func rankEvidence(items []models.EvidenceItem, midpoint time.Time, limit int) []models.EvidenceItem {
	ranked := make([]models.EvidenceItem, len(items))
	copy(ranked, items)

	sort.SliceStable(ranked, func(i, j int) bool {
		di := absDuration(ranked[i].Timestamp.Sub(midpoint))
		dj := absDuration(ranked[j].Timestamp.Sub(midpoint))
		if di != dj {
			return di < dj
		}
		return ranked[i].Timestamp.Before(ranked[j].Timestamp)
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
