package patterns

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/harborstack/channelwatch/internal/models"
)

// Store abstracts persistence for mined channel patterns.
type Store interface {
	StorePatterns(ctx context.Context, patterns []models.ChannelPattern) error
}

// Miner aggregates historical findings into per-channel congestion patterns.
type Miner struct {
	store  Store
	logger *slog.Logger
}

// NewMiner constructs a Miner; store may be nil for dry runs.
func NewMiner(logger *slog.Logger, store Store) *Miner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Miner{store: store, logger: logger}
}

// Mine summarises findings into one pattern per channel: how often the
// channel congests, how severe its episodes run, and how long they last.
func (m *Miner) Mine(ctx context.Context, findings []models.Finding) ([]models.ChannelPattern, error) {
	if len(findings) == 0 {
		return nil, nil
	}

	stats := make(map[string]*channelAggregate)
	for _, finding := range findings {
		agg := ensureAggregate(stats, finding.ChannelID)
		agg.findings++
		if finding.CreatedAt.After(agg.lastSeen) {
			agg.lastSeen = finding.CreatedAt
		}
		if !finding.OverallVerdict {
			continue
		}
		agg.congested++
		for _, report := range finding.Windows {
			agg.episodes++
			agg.severitySum += report.Window.Severity
			agg.durationSum += float64(report.Window.Days())
		}
	}

	patterns := make([]models.ChannelPattern, 0, len(stats))
	for channelID, agg := range stats {
		pattern := models.ChannelPattern{
			ChannelID:  channelID,
			Episodes:   agg.episodes,
			Findings:   agg.findings,
			Prevalence: float64(agg.congested) / float64(agg.findings),
			LastSeen:   agg.lastSeen,
		}
		if agg.episodes > 0 {
			pattern.MeanSeverity = agg.severitySum / float64(agg.episodes)
			pattern.TypicalDuration = agg.durationSum / float64(agg.episodes)
		}
		patterns = append(patterns, pattern)
	}

	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Prevalence != patterns[j].Prevalence {
			return patterns[i].Prevalence > patterns[j].Prevalence
		}
		return patterns[i].ChannelID < patterns[j].ChannelID
	})

	if m.store != nil && len(patterns) > 0 {
		if err := m.store.StorePatterns(ctx, patterns); err != nil {
			m.logger.Warn("pattern store failed", slog.Any("error", err))
		}
	}

	return patterns, nil
}

type channelAggregate struct {
	findings    int
	congested   int
	episodes    int
	severitySum float64
	durationSum float64
	lastSeen    time.Time
}

func ensureAggregate(m map[string]*channelAggregate, channelID string) *channelAggregate {
	if channelID == "" {
		channelID = "unknown"
	}
	agg, ok := m[channelID]
	if !ok {
		agg = &channelAggregate{}
		m[channelID] = agg
	}
	return agg
}
