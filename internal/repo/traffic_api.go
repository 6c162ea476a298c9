package repo

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/harborstack/channelwatch/internal/cache"
	"github.com/harborstack/channelwatch/internal/models"
	"github.com/harborstack/channelwatch/internal/utils"
)

// TrafficAPIClient loads vessel counts from the upstream maritime indicator
// openapi. Requests carry an MD5 signature over the ASCII-sorted signing
// params plus the secret key, per the provider's contract.
type TrafficAPIClient struct {
	baseURL     string
	appID       string
	secretKey   string
	client      string
	metricCodes map[string]string
	httpClient  *http.Client
	cache       cache.Provider
	seriesTTL   time.Duration
	now         func() time.Time
	nonce       func() string
}

// NewTrafficAPIClient constructs a client for the signed vessel-count API.
// metricCodes maps channel IDs to the provider's indicator codes.
func NewTrafficAPIClient(baseURL, appID, secretKey, client string, metricCodes map[string]string, timeout time.Duration, cacheProvider cache.Provider, seriesTTL time.Duration) *TrafficAPIClient {
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TrafficAPIClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		appID:       appID,
		secretKey:   secretKey,
		client:      client,
		metricCodes: metricCodes,
		httpClient:  &http.Client{Timeout: timeout},
		cache:       cacheProvider,
		seriesTTL:   seriesTTL,
		now:         time.Now,
		nonce:       randomNonce,
	}
}

type trafficAPIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    []struct {
		Day   string  `json:"day"`
		Value float64 `json:"value"`
	} `json:"data"`
}

// Load fetches the channel's daily counts for the trailing window ending at
// referenceDate. Responses are cached per channel and window.
func (c *TrafficAPIClient) Load(ctx context.Context, channelID string, referenceDate time.Time, lookbackDays int) (models.ChannelSeries, error) {
	if c.baseURL == "" {
		return models.ChannelSeries{}, fmt.Errorf("%w: traffic API base URL not configured", models.ErrDataUnavailable)
	}
	metricCode, ok := c.metricCodes[channelID]
	if !ok {
		return models.ChannelSeries{}, fmt.Errorf("%w: no metric code for channel %s", models.ErrDataUnavailable, channelID)
	}

	end := utils.Day(referenceDate)
	start := end.AddDate(0, 0, -lookbackDays+1)
	startDay := start.Format(time.DateOnly)
	endDay := end.Format(time.DateOnly)

	cacheKey := fmt.Sprintf("series:%s:%s:%s", channelID, startDay, endDay)
	if cached, err := c.cache.Get(ctx, cacheKey); err == nil {
		var series models.ChannelSeries
		if err := json.Unmarshal(cached, &series); err == nil {
			return series, nil
		}
		_ = c.cache.Del(ctx, cacheKey)
	}

	query := url.Values{}
	query.Set("client", c.client)
	query.Set("startDay", startDay)
	query.Set("endDay", endDay)
	// Indicator codes are passed through but excluded from the signature.
	query.Set("zbxxs", metricCode)

	timestamp := strconv.FormatInt(c.now().Unix(), 10)
	nonce := c.nonce()
	sign := signParams(map[string]string{
		"appId":     c.appID,
		"client":    c.client,
		"startDay":  startDay,
		"endDay":    endDay,
		"nonce":     nonce,
		"timestamp": timestamp,
	}, c.secretKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return models.ChannelSeries{}, err
	}
	req.Header.Set("appId", c.appID)
	req.Header.Set("timestamp", timestamp)
	req.Header.Set("nonce", nonce)
	req.Header.Set("sign", sign)
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.ChannelSeries{}, fmt.Errorf("%w: traffic API request: %v", models.ErrDataUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.ChannelSeries{}, fmt.Errorf("%w: traffic API returned %s", models.ErrDataUnavailable, resp.Status)
	}

	var payload trafficAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return models.ChannelSeries{}, fmt.Errorf("%w: decode traffic API response: %v", models.ErrDataUnavailable, err)
	}
	if !payload.Success {
		return models.ChannelSeries{}, fmt.Errorf("%w: traffic API rejected request: %s", models.ErrDataUnavailable, payload.Message)
	}

	series := models.ChannelSeries{ChannelID: channelID}
	for _, sample := range payload.Data {
		date, err := utils.ParseDay(sample.Day)
		if err != nil {
			continue
		}
		series.Points = append(series.Points, models.SeriesPoint{Date: date, Count: int(sample.Value)})
	}
	sort.Slice(series.Points, func(i, j int) bool {
		return series.Points[i].Date.Before(series.Points[j].Date)
	})

	if len(series.Points) == 0 {
		return models.ChannelSeries{}, fmt.Errorf("%w: traffic API returned no samples for %s", models.ErrDataUnavailable, channelID)
	}

	if encoded, err := json.Marshal(series); err == nil {
		_ = c.cache.Set(ctx, cacheKey, encoded, c.seriesTTL)
	}

	return series, nil
}

// signParams builds the provider's signature: ASCII-sort the signing params,
// join as k=v pairs, append the secret key, MD5, lowercase hex.
func signParams(params map[string]string, secretKey string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	raw := strings.Join(parts, "&") + "&key=" + secretKey

	return fmt.Sprintf("%x", md5.Sum([]byte(raw)))
}

func randomNonce() string {
	return strconv.FormatInt(1_000_000_000+rand.Int63n(9_000_000_000), 10)
}
