package repo

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/harborstack/channelwatch/internal/models"
	"github.com/harborstack/channelwatch/internal/utils"
)

// NewsFeed names one RSS/Atom source to poll for maritime headlines.
type NewsFeed struct {
	Name string
	URL  string
}

// NewsRSSClient pulls headlines from configured feeds and keeps the ones that
// mention a channel's keywords inside the requested date range. A feed that
// fails to fetch is logged and skipped; the call only errors when every feed
// fails.
type NewsRSSClient struct {
	feeds      []NewsFeed
	keywords   map[string][]string
	httpClient *http.Client
	parser     *gofeed.Parser
	logger     *slog.Logger
}

// NewNewsRSSClient constructs a news client. keywords maps channel IDs to the
// phrases that qualify a headline as evidence for that channel.
func NewNewsRSSClient(feeds []NewsFeed, keywords map[string][]string, timeout time.Duration, logger *slog.Logger) *NewsRSSClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NewsRSSClient{
		feeds:      feeds,
		keywords:   keywords,
		httpClient: &http.Client{Timeout: timeout},
		parser:     gofeed.NewParser(),
		logger:     logger,
	}
}

// Headlines returns news evidence for the channel within [start, end],
// ordered by publication time.
func (c *NewsRSSClient) Headlines(ctx context.Context, channelID string, start, end time.Time) ([]models.EvidenceItem, error) {
	if len(c.feeds) == 0 {
		return nil, &utils.AppError{Op: "news.headlines", Msg: "no news feeds configured"}
	}
	terms := c.keywords[channelID]
	if len(terms) == 0 {
		return nil, &utils.AppError{Op: "news.headlines", Msg: fmt.Sprintf("no news keywords for channel %s", channelID)}
	}

	rangeStart := utils.Day(start)
	rangeEnd := utils.Day(end).AddDate(0, 0, 1)

	var items []models.EvidenceItem
	var failed int
	var lastErr error
	for _, feed := range c.feeds {
		parsed, err := c.fetchFeed(ctx, feed.URL)
		if err != nil {
			failed++
			lastErr = err
			c.logger.Warn("news feed fetch failed", "feed", feed.Name, "error", err)
			continue
		}
		for _, entry := range parsed.Items {
			published := entry.PublishedParsed
			if published == nil {
				published = entry.UpdatedParsed
			}
			if published == nil {
				continue
			}
			ts := published.UTC()
			if ts.Before(rangeStart) || !ts.Before(rangeEnd) {
				continue
			}
			if !matchesKeywords(entry.Title+" "+entry.Description, terms) {
				continue
			}
			items = append(items, models.EvidenceItem{
				Category:  models.EvidenceNews,
				Source:    feed.Name,
				Timestamp: ts,
				Text:      entry.Title,
				URL:       entry.Link,
			})
		}
	}

	if failed == len(c.feeds) {
		return nil, &utils.AppError{Op: "news.headlines", Msg: "all news feeds failed", Err: lastErr}
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Timestamp.Before(items[j].Timestamp)
	})
	return items, nil
}

func (c *NewsRSSClient) fetchFeed(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "channelwatch/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}
	return c.parser.Parse(resp.Body)
}

func matchesKeywords(text string, terms []string) bool {
	lowered := strings.ToLower(text)
	for _, term := range terms {
		if term == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(term)) {
			return true
		}
	}
	return false
}
