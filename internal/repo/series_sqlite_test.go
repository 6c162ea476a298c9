package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harborstack/channelwatch/internal/models"
)

func day(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.DateOnly, value)
	if err != nil {
		t.Fatalf("parse day %q: %v", value, err)
	}
	return parsed.UTC()
}

func openTestStore(t *testing.T) *SeriesStore {
	t.Helper()
	store, err := OpenSeriesStore(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSeriesStoreLoadWindow(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	points := make([]models.SeriesPoint, 0, 10)
	for i := 0; i < 10; i++ {
		points = append(points, models.SeriesPoint{
			Date:  day(t, "2024-03-01").AddDate(0, 0, i),
			Count: 100 + i,
		})
	}
	if err := store.UpsertCounts(ctx, "malacca-strait", points); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	series, err := store.Load(ctx, "malacca-strait", day(t, "2024-03-10"), 5)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(series.Points) != 5 {
		t.Fatalf("expected 5 points in window, got %d", len(series.Points))
	}
	if !series.Points[0].Date.Equal(day(t, "2024-03-06")) {
		t.Errorf("window start = %s, want 2024-03-06", series.Points[0].Date.Format(time.DateOnly))
	}
	if series.Points[4].Count != 109 {
		t.Errorf("last count = %d, want 109", series.Points[4].Count)
	}
}

func TestSeriesStoreUpsertReplaces(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	d := day(t, "2024-03-01")
	if err := store.UpsertCounts(ctx, "malacca-strait", []models.SeriesPoint{{Date: d, Count: 100}}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := store.UpsertCounts(ctx, "malacca-strait", []models.SeriesPoint{{Date: d, Count: 250}}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	series, err := store.Load(ctx, "malacca-strait", d, 1)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(series.Points) != 1 || series.Points[0].Count != 250 {
		t.Fatalf("expected single replaced point with count 250, got %+v", series.Points)
	}
}

func TestSeriesStoreLoadEmpty(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Load(context.Background(), "mandeb-strait", day(t, "2024-03-10"), 30)
	if !errors.Is(err, models.ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
}

func TestSeriesStoreFindings(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	findings := []models.Finding{
		{
			ChannelID:     "malacca-strait",
			ChannelName:   "Strait of Malacca",
			ReferenceDate: day(t, "2024-01-31"),
			LookbackDays:  90,
			Windows: []models.WindowReport{{
				Window: models.CongestionWindow{
					Start:        day(t, "2024-01-10"),
					End:          day(t, "2024-01-20"),
					SegmentMean:  260,
					BaselineMean: 100,
					Severity:     1.6,
					Confidence:   0.8,
				},
			}},
			OverallVerdict: true,
			CreatedAt:      time.Now().UTC(),
		},
		{
			ChannelID:      "malacca-strait",
			ReferenceDate:  day(t, "2024-02-29"),
			LookbackDays:   90,
			OverallVerdict: false,
			CreatedAt:      time.Now().UTC(),
		},
		{
			ChannelID:      "mandeb-strait",
			ReferenceDate:  day(t, "2024-02-15"),
			LookbackDays:   90,
			OverallVerdict: true,
			CreatedAt:      time.Now().UTC(),
		},
	}
	for _, finding := range findings {
		if err := store.StoreFinding(ctx, finding); err != nil {
			t.Fatalf("store finding: %v", err)
		}
	}

	listed, err := store.ListFindings(ctx, models.ListFindingsRequest{ChannelID: "malacca-strait"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 findings for malacca-strait, got %d", len(listed))
	}
	if !listed[0].ReferenceDate.Equal(day(t, "2024-01-31")) {
		t.Errorf("findings not ordered by reference date: first is %s", listed[0].ReferenceDate.Format(time.DateOnly))
	}
	if len(listed[0].Windows) != 1 || listed[0].Windows[0].Window.Severity != 1.6 {
		t.Errorf("window payload not round-tripped: %+v", listed[0].Windows)
	}

	ranged, err := store.ListFindings(ctx, models.ListFindingsRequest{
		Start: day(t, "2024-02-01"),
		End:   day(t, "2024-02-20"),
	})
	if err != nil {
		t.Fatalf("list ranged: %v", err)
	}
	if len(ranged) != 1 || ranged[0].ChannelID != "mandeb-strait" {
		t.Fatalf("expected single mandeb-strait finding in range, got %+v", ranged)
	}

	limited, err := store.ListFindings(ctx, models.ListFindingsRequest{Limit: 1})
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected limit 1 to apply, got %d findings", len(limited))
	}
}
