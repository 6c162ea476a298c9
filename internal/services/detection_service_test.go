package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harborstack/channelwatch/internal/engine"
	"github.com/harborstack/channelwatch/internal/interpret"
	"github.com/harborstack/channelwatch/internal/models"
)

type loaderStub struct {
	series models.ChannelSeries
	err    error
}

func (l *loaderStub) Load(_ context.Context, channelID string, _ time.Time, _ int) (models.ChannelSeries, error) {
	if l.err != nil {
		return models.ChannelSeries{}, l.err
	}
	series := l.series
	series.ChannelID = channelID
	return series, nil
}

type historyStub struct {
	findings []models.Finding
	err      error
}

func (h *historyStub) ListFindings(context.Context, models.ListFindingsRequest) ([]models.Finding, error) {
	return h.findings, h.err
}

func congestedSeries() models.ChannelSeries {
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := models.ChannelSeries{}
	for i := 0; i < 90; i++ {
		count := 100
		if i >= 60 {
			count = 260
		}
		series.Points = append(series.Points, models.SeriesPoint{Date: first.AddDate(0, 0, i), Count: count})
	}
	return series
}

var serviceVocab = interpret.Vocabulary{
	{ID: "malacca-strait", Name: "Strait of Malacca", Aliases: []string{"malacca"}},
}

func newTestService(loader engine.SeriesLoader, history HistoryRepo) *DetectionService {
	eng := engine.New(nil, engine.Config{
		LookbackDays:      90,
		MinSegmentSize:    3,
		RelativeThreshold: 1.5,
		MinDurationDays:   7,
	}, loader, nil, nil, nil, serviceVocab, nil)
	return NewDetectionService(nil, eng, history)
}

func TestServiceDetect(t *testing.T) {
	service := newTestService(&loaderStub{series: congestedSeries()}, nil)

	finding, err := service.Detect(context.Background(), models.StructuredRequest{
		ChannelID:     "malacca-strait",
		ReferenceDate: time.Date(2024, 3, 30, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if !finding.OverallVerdict {
		t.Error("expected congestion verdict")
	}
	if service.LatencyP95() <= 0 {
		t.Error("expected latency sample recorded")
	}
}

func TestServiceDetectError(t *testing.T) {
	service := newTestService(&loaderStub{err: models.ErrDataUnavailable}, nil)

	_, err := service.Detect(context.Background(), models.StructuredRequest{
		ChannelID:     "malacca-strait",
		ReferenceDate: time.Date(2024, 3, 30, 0, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, models.ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
}

func TestServiceAsk(t *testing.T) {
	service := newTestService(&loaderStub{series: congestedSeries()}, nil)

	finding, err := service.Ask(context.Background(), "was malacca congested in 2024-03-30?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if finding.ChannelID != "malacca-strait" {
		t.Errorf("channel = %q", finding.ChannelID)
	}
}

func TestServiceAskUnsupported(t *testing.T) {
	service := newTestService(&loaderStub{series: congestedSeries()}, nil)

	_, err := service.Ask(context.Background(), "was the suez canal congested in 2024-03-30?")
	if !errors.Is(err, interpret.ErrUnsupportedChannel) {
		t.Fatalf("expected ErrUnsupportedChannel, got %v", err)
	}
}

func TestServiceHistory(t *testing.T) {
	history := &historyStub{findings: []models.Finding{{ChannelID: "malacca-strait"}}}
	service := newTestService(&loaderStub{}, history)

	findings, err := service.History(context.Background(), models.ListFindingsRequest{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(findings) != 1 {
		t.Errorf("expected 1 finding, got %d", len(findings))
	}
}

func TestServiceHistoryUnconfigured(t *testing.T) {
	service := newTestService(&loaderStub{}, nil)
	if _, err := service.History(context.Background(), models.ListFindingsRequest{}); err == nil {
		t.Fatal("expected error without history repo")
	}
}

func TestServicePatterns(t *testing.T) {
	history := &historyStub{findings: []models.Finding{
		{
			ChannelID:      "malacca-strait",
			OverallVerdict: true,
			CreatedAt:      time.Now().UTC(),
			Windows: []models.WindowReport{{Window: models.CongestionWindow{
				Start:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
				End:      time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
				Severity: 1.2,
			}}},
		},
		{ChannelID: "malacca-strait", CreatedAt: time.Now().UTC()},
	}}
	service := newTestService(&loaderStub{}, history)

	mined, err := service.Patterns(context.Background(), "malacca-strait")
	if err != nil {
		t.Fatalf("patterns: %v", err)
	}
	if len(mined) != 1 {
		t.Fatalf("expected 1 pattern, got %d", len(mined))
	}
	if mined[0].Prevalence != 0.5 {
		t.Errorf("prevalence = %f, want 0.5", mined[0].Prevalence)
	}
}
