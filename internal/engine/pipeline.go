package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/harborstack/channelwatch/internal/classify"
	"github.com/harborstack/channelwatch/internal/interpret"
	"github.com/harborstack/channelwatch/internal/models"
	"github.com/harborstack/channelwatch/internal/segment"
)

// SeriesLoader supplies daily vessel counts for a channel over the trailing
// window ending at referenceDate.
type SeriesLoader interface {
	Load(ctx context.Context, channelID string, referenceDate time.Time, lookbackDays int) (models.ChannelSeries, error)
}

// WeatherProvider returns weather observations for a channel in a date range.
type WeatherProvider interface {
	Observations(ctx context.Context, channelID string, start, end time.Time) ([]models.EvidenceItem, error)
}

// NewsProvider returns news headlines mentioning a channel in a date range.
type NewsProvider interface {
	Headlines(ctx context.Context, channelID string, start, end time.Time) ([]models.EvidenceItem, error)
}

// FindingStore persists assembled findings for later pattern mining.
type FindingStore interface {
	StoreFinding(ctx context.Context, finding models.Finding) error
}

// Config carries the detection parameters for one engine instance.
type Config struct {
	LookbackDays       int
	MinSegmentSize     int
	Penalty            float64
	RelativeThreshold  float64
	MinDurationDays    int
	EvidenceMarginDays int
	EvidenceCap        int
	// LoaderTimeout bounds each series load regardless of the request
	// deadline, so a stalled upstream cannot hold a detection open.
	LoaderTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.LookbackDays <= 0 {
		c.LookbackDays = 90
	}
	if c.LoaderTimeout <= 0 {
		c.LoaderTimeout = 5 * time.Second
	}
	if c.EvidenceMarginDays <= 0 {
		c.EvidenceMarginDays = 3
	}
	if c.EvidenceCap <= 0 {
		c.EvidenceCap = 5
	}
	return c
}

// Engine orchestrates one detection request: load the series, segment it,
// classify congestion windows, correlate evidence, assemble the finding.
type Engine struct {
	logger     *slog.Logger
	cfg        Config
	loader     SeriesLoader
	weather    WeatherProvider
	news       NewsProvider
	store      FindingStore
	vocab      interpret.Vocabulary
	detector   *segment.Detector
	classifier *classify.Classifier
	advisories *AdvisoryEngine
	now        func() time.Time
}

// New constructs a detection engine. weather, news, store and advisories may
// be nil; the corresponding stages degrade rather than fail.
func New(
	logger *slog.Logger,
	cfg Config,
	loader SeriesLoader,
	weather WeatherProvider,
	news NewsProvider,
	store FindingStore,
	vocab interpret.Vocabulary,
	advisories *AdvisoryEngine,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	return &Engine{
		logger:  logger,
		cfg:     cfg,
		loader:  loader,
		weather: weather,
		news:    news,
		store:   store,
		vocab:   vocab,
		detector: segment.NewDetector(segment.Config{
			MinSegmentSize: cfg.MinSegmentSize,
			Penalty:        cfg.Penalty,
		}),
		classifier: classify.NewClassifier(classify.Config{
			RelativeThreshold: cfg.RelativeThreshold,
			MinDurationDays:   cfg.MinDurationDays,
		}),
		advisories: advisories,
		now:        time.Now,
	}
}

// Detect runs the full pipeline for a validated request. The returned finding
// always carries a verdict; evidence degradation never fails the request.
func (e *Engine) Detect(ctx context.Context, req models.StructuredRequest) (models.Finding, error) {
	if e.loader == nil {
		return models.Finding{}, fmt.Errorf("series loader not configured")
	}
	if !e.vocab.Contains(req.ChannelID) {
		return models.Finding{}, fmt.Errorf("%w: unknown channel %q", interpret.ErrUnsupportedChannel, req.ChannelID)
	}

	loadCtx, cancel := context.WithTimeout(ctx, e.cfg.LoaderTimeout)
	series, err := e.loader.Load(loadCtx, req.ChannelID, req.ReferenceDate, e.cfg.LookbackDays)
	cancel()
	if err != nil {
		return models.Finding{}, fmt.Errorf("load series: %w", err)
	}

	_, segments, err := e.detector.Detect(series.Counts())
	if err != nil {
		return models.Finding{}, fmt.Errorf("segment series: %w", err)
	}

	windows := e.classifier.Classify(series, segments)

	reports := make([]models.WindowReport, 0, len(windows))
	for _, window := range windows {
		reports = append(reports, models.WindowReport{
			Window:   window,
			Evidence: e.correlate(ctx, req.ChannelID, window),
		})
	}

	finding := e.assembleFinding(req, reports)

	if e.store != nil {
		if err := e.store.StoreFinding(ctx, finding); err != nil {
			e.logger.Warn("failed to persist finding",
				slog.String("channel", req.ChannelID),
				slog.Any("error", err))
		}
	}

	return finding, nil
}

// Ask interprets a natural-language question and runs detection on the
// resulting structured request.
func (e *Engine) Ask(ctx context.Context, question string) (models.Finding, error) {
	req, err := interpret.Parse(question, e.vocab)
	if err != nil {
		return models.Finding{}, err
	}
	return e.Detect(ctx, req)
}
