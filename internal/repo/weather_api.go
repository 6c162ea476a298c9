package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/harborstack/channelwatch/internal/cache"
	"github.com/harborstack/channelwatch/internal/models"
	"github.com/harborstack/channelwatch/internal/utils"
)

// WeatherAPIClient fetches marine weather observations for a channel over a
// date range. Calls are rate limited so burst correlation over many windows
// stays inside the provider's quota.
type WeatherAPIClient struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	limiter     *rate.Limiter
	cache       cache.Provider
	evidenceTTL time.Duration
}

// NewWeatherAPIClient constructs a weather client. rateEvery bounds request
// frequency; zero disables the limiter.
func NewWeatherAPIClient(baseURL, apiKey string, timeout, rateEvery time.Duration, cacheProvider cache.Provider, evidenceTTL time.Duration) *WeatherAPIClient {
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if rateEvery > 0 {
		limiter = rate.NewLimiter(rate.Every(rateEvery), 1)
	}
	return &WeatherAPIClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		httpClient:  &http.Client{Timeout: timeout},
		limiter:     limiter,
		cache:       cacheProvider,
		evidenceTTL: evidenceTTL,
	}
}

type weatherRequest struct {
	Channel string `json:"channel"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

type weatherResponse struct {
	Observations []struct {
		Time    string `json:"time"`
		Summary string `json:"summary"`
		Source  string `json:"source"`
	} `json:"observations"`
}

// Observations returns weather evidence items for the channel within
// [start, end]. Items outside the range or with unparseable timestamps are
// dropped.
func (c *WeatherAPIClient) Observations(ctx context.Context, channelID string, start, end time.Time) ([]models.EvidenceItem, error) {
	if c.baseURL == "" {
		return nil, &utils.AppError{Op: "weather.observations", Msg: "weather API base URL not configured"}
	}

	startDay := utils.Day(start).Format(time.DateOnly)
	endDay := utils.Day(end).Format(time.DateOnly)
	cacheKey := fmt.Sprintf("weather:%s:%s:%s", channelID, startDay, endDay)
	if cached, err := c.cache.Get(ctx, cacheKey); err == nil {
		var items []models.EvidenceItem
		if err := json.Unmarshal(cached, &items); err == nil {
			return items, nil
		}
		_ = c.cache.Del(ctx, cacheKey)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &utils.AppError{Op: "weather.observations", Msg: "rate limiter wait", Err: err}
	}

	body, err := json.Marshal(weatherRequest{Channel: channelID, Start: startDay, End: endDay})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/marine/observations", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &utils.AppError{Op: "weather.observations", Msg: "weather API request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &utils.AppError{Op: "weather.observations", Msg: fmt.Sprintf("weather API returned %s", resp.Status)}
	}

	var payload weatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &utils.AppError{Op: "weather.observations", Msg: "decode weather response", Err: err}
	}

	rangeStart := utils.Day(start)
	rangeEnd := utils.Day(end).AddDate(0, 0, 1)
	items := make([]models.EvidenceItem, 0, len(payload.Observations))
	for _, obs := range payload.Observations {
		ts, err := parseObservationTime(obs.Time)
		if err != nil {
			continue
		}
		if ts.Before(rangeStart) || !ts.Before(rangeEnd) {
			continue
		}
		source := obs.Source
		if source == "" {
			source = "weather-api"
		}
		items = append(items, models.EvidenceItem{
			Category:  models.EvidenceWeather,
			Source:    source,
			Timestamp: ts,
			Text:      obs.Summary,
		})
	}

	if encoded, err := json.Marshal(items); err == nil {
		_ = c.cache.Set(ctx, cacheKey, encoded, c.evidenceTTL)
	}

	return items, nil
}

func parseObservationTime(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", time.DateOnly} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized observation time %q", value)
}
