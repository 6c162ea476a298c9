package repo

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harborstack/channelwatch/internal/cache"
	"github.com/harborstack/channelwatch/internal/models"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

// memCache is a minimal in-process cache.Provider for client tests.
type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]byte)}
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.entries[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return value, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func (m *memCache) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *memCache) Close() error { return nil }

func newTestTrafficClient(transport roundTripFunc, cacheProvider cache.Provider) *TrafficAPIClient {
	client := NewTrafficAPIClient(
		"https://traffic.example.com/openapi/series",
		"app-123",
		"top-secret",
		"channelwatch",
		map[string]string{"malacca-strait": "101-0003"},
		5*time.Second,
		cacheProvider,
		time.Hour,
	)
	client.httpClient = &http.Client{Transport: transport}
	client.now = func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }
	client.nonce = func() string { return "4242424242" }
	return client
}

func TestTrafficAPILoadSignsRequest(t *testing.T) {
	var captured *http.Request
	client := newTestTrafficClient(func(req *http.Request) (*http.Response, error) {
		captured = req
		return jsonResponse(http.StatusOK, `{
			"success": true,
			"data": [
				{"day": "2024-03-08", "value": 101},
				{"day": "2024-03-10", "value": 103},
				{"day": "2024-03-09", "value": 102}
			]
		}`), nil
	}, nil)

	series, err := client.Load(context.Background(), "malacca-strait", time.Date(2024, 3, 10, 8, 30, 0, 0, time.UTC), 3)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(series.Points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(series.Points))
	}
	for i := 1; i < len(series.Points); i++ {
		if !series.Points[i-1].Date.Before(series.Points[i].Date) {
			t.Fatalf("points not sorted by date: %+v", series.Points)
		}
	}

	query := captured.URL.Query()
	if got := query.Get("startDay"); got != "2024-03-08" {
		t.Errorf("startDay = %q, want 2024-03-08", got)
	}
	if got := query.Get("endDay"); got != "2024-03-10" {
		t.Errorf("endDay = %q, want 2024-03-10", got)
	}
	if got := query.Get("zbxxs"); got != "101-0003" {
		t.Errorf("metric code = %q, want 101-0003", got)
	}

	timestamp := captured.Header.Get("timestamp")
	if timestamp == "" {
		t.Fatal("timestamp header missing")
	}
	wantSign := signParams(map[string]string{
		"appId":     "app-123",
		"client":    "channelwatch",
		"startDay":  "2024-03-08",
		"endDay":    "2024-03-10",
		"nonce":     "4242424242",
		"timestamp": timestamp,
	}, "top-secret")
	if got := captured.Header.Get("sign"); got != wantSign {
		t.Errorf("sign = %q, want %q", got, wantSign)
	}
	if got := captured.Header.Get("appId"); got != "app-123" {
		t.Errorf("appId header = %q, want app-123", got)
	}
}

func TestTrafficAPILoadCachesSeries(t *testing.T) {
	calls := 0
	client := newTestTrafficClient(func(*http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(http.StatusOK, `{
			"success": true,
			"data": [{"day": "2024-03-10", "value": 100}]
		}`), nil
	}, newMemCache())

	ref := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if _, err := client.Load(context.Background(), "malacca-strait", ref, 1); err != nil {
			t.Fatalf("load %d: %v", i, err)
		}
	}
	if calls != 1 {
		t.Errorf("expected single upstream call, got %d", calls)
	}
}

func TestTrafficAPILoadRejected(t *testing.T) {
	client := newTestTrafficClient(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"success": false, "message": "invalid sign"}`), nil
	}, nil)

	_, err := client.Load(context.Background(), "malacca-strait", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), 7)
	if !errors.Is(err, models.ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "invalid sign") {
		t.Errorf("error should carry upstream message, got %v", err)
	}
}

func TestTrafficAPILoadUnknownChannel(t *testing.T) {
	client := newTestTrafficClient(func(*http.Request) (*http.Response, error) {
		t.Fatal("no request expected for unknown channel")
		return nil, nil
	}, nil)

	_, err := client.Load(context.Background(), "suez-canal", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), 7)
	if !errors.Is(err, models.ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
}
