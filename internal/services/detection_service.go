package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/harborstack/channelwatch/internal/engine"
	"github.com/harborstack/channelwatch/internal/metrics"
	"github.com/harborstack/channelwatch/internal/models"
	"github.com/harborstack/channelwatch/internal/patterns"
	"github.com/harborstack/channelwatch/internal/utils"
)

// HistoryRepo defines storage operations for finding history.
type HistoryRepo interface {
	ListFindings(ctx context.Context, req models.ListFindingsRequest) ([]models.Finding, error)
}

// DetectionService fronts the engine: it runs detections, tracks latency,
// records metrics and serves finding history and mined patterns.
type DetectionService struct {
	logger    *slog.Logger
	engine    *engine.Engine
	history   HistoryRepo
	miner     *patterns.Miner
	latencies *utils.LatencyTracker
}

// NewDetectionService constructs the service facade.
func NewDetectionService(logger *slog.Logger, eng *engine.Engine, history HistoryRepo) *DetectionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DetectionService{
		logger:    logger,
		engine:    eng,
		history:   history,
		miner:     patterns.NewMiner(logger, nil),
		latencies: utils.NewLatencyTracker(1024),
	}
}

// Detect runs the pipeline for a structured request.
func (s *DetectionService) Detect(ctx context.Context, req models.StructuredRequest) (models.Finding, error) {
	start := time.Now()
	finding, err := s.engine.Detect(ctx, req)
	s.observe(time.Since(start), finding, err)
	return finding, err
}

// Ask interprets a natural-language question and runs detection on it.
func (s *DetectionService) Ask(ctx context.Context, question string) (models.Finding, error) {
	start := time.Now()
	finding, err := s.engine.Ask(ctx, question)
	s.observe(time.Since(start), finding, err)
	return finding, err
}

func (s *DetectionService) observe(duration time.Duration, finding models.Finding, err error) {
	if err != nil {
		metrics.ObserveDetection(duration, metrics.OutcomeError)
		return
	}
	s.latencies.Observe(duration)
	metrics.ObserveDetection(duration, metrics.OutcomeSuccess)
	for _, report := range finding.Windows {
		for _, set := range report.Evidence {
			if set.Status == models.EvidenceUnavailable {
				metrics.ObserveEvidenceUnavailable(string(set.Category))
			}
		}
	}
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		p95 := s.latencies.Percentile(95)
		s.logger.Info("detection latency", slog.Duration("p95", p95), slog.Int("samples", count))
	}
}

// History returns stored findings matching the filters.
func (s *DetectionService) History(ctx context.Context, req models.ListFindingsRequest) ([]models.Finding, error) {
	if s.history == nil {
		return nil, &utils.AppError{Op: "service.history", Msg: "finding history not configured"}
	}
	findings, err := s.history.ListFindings(ctx, req)
	if err != nil {
		s.logger.Error("list findings failed", slog.Any("error", err))
		return nil, err
	}
	return findings, nil
}

// Patterns mines the stored history into per-channel congestion patterns.
func (s *DetectionService) Patterns(ctx context.Context, channelID string) ([]models.ChannelPattern, error) {
	if s.history == nil {
		return nil, &utils.AppError{Op: "service.patterns", Msg: "finding history not configured"}
	}
	findings, err := s.history.ListFindings(ctx, models.ListFindingsRequest{ChannelID: channelID})
	if err != nil {
		s.logger.Error("list findings failed", slog.Any("error", err))
		return nil, err
	}
	return s.miner.Mine(ctx, findings)
}

// LatencyP95 returns the current p95 detection latency.
func (s *DetectionService) LatencyP95() time.Duration {
	if s.latencies == nil {
		return 0
	}
	return s.latencies.Percentile(95)
}
