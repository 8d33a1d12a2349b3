package usgs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/couchcryptid/quakewatch-service/internal/cache"
	"github.com/couchcryptid/quakewatch-service/internal/domain"
	"github.com/couchcryptid/quakewatch-service/internal/fetch"
)

// DefaultBaseURL is the root of the USGS GeoJSON feeds.
const DefaultBaseURL = "https://earthquake.usgs.gov/earthquakes/feed/v1.0/"

// Client reads the USGS summary and detail feeds through the response cache.
type Client struct {
	baseURL string
	feed    *fetch.Client
	detail  *fetch.Client
	cache   cache.Cache
	logger  *slog.Logger
}

// NewClient creates a USGS client rooted at baseURL.
func NewClient(baseURL string, fetcher *fetch.Client, c cache.Cache, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		feed:    fetcher.Named("earthquakes"),
		detail:  fetcher.Named("detail"),
		cache:   c,
		logger:  logger,
	}
}

// FeedURL returns the summary feed URL for tf.
func (c *Client) FeedURL(tf domain.Timeframe) string {
	return c.baseURL + "/summary/" + tf.FeedFile()
}

// DetailURL returns the detail document URL for an event id.
func (c *Client) DetailURL(id string) string {
	return c.baseURL + "/detail/" + url.PathEscape(id) + ".geojson"
}

// Earthquakes returns every event in the summary feed for tf. A response
// without a features array fails with domain.ErrInvalidPayload.
func (c *Client) Earthquakes(ctx context.Context, tf domain.Timeframe) ([]domain.Earthquake, error) {
	key := cache.EarthquakesKey(tf)
	if raw, ok := c.cache.Get(ctx, key); ok {
		events, err := domain.ParseFeatures(raw)
		if err == nil {
			c.logger.Debug("earthquake feed served from cache", "key", key, "count", len(events))
			return events, nil
		}
		c.logger.Warn("discarding unreadable cache entry", "key", key, "error", err)
	}

	var body feedResponse
	if err := c.feed.GetJSON(ctx, c.FeedURL(tf), &body); err != nil {
		return nil, err
	}
	features := bytes.TrimSpace(body.Features)
	if len(features) == 0 || features[0] != '[' {
		return nil, fmt.Errorf("earthquake feed %s: features is not an array: %w", tf, domain.ErrInvalidPayload)
	}

	events, err := domain.ParseFeatures(features)
	if err != nil {
		return nil, fmt.Errorf("earthquake feed %s: %w", tf, errors.Join(domain.ErrInvalidPayload, err))
	}
	c.cache.Set(ctx, key, features)
	c.logger.Info("earthquake feed fetched", "timeframe", tf, "count", len(events))
	return events, nil
}

// Detail returns the full record for one event.
func (c *Client) Detail(ctx context.Context, id string) (domain.EarthquakeDetail, error) {
	if strings.TrimSpace(id) == "" {
		return domain.EarthquakeDetail{}, errors.New("earthquake id is required")
	}

	key := cache.DetailKey(id)
	if raw, ok := c.cache.Get(ctx, key); ok {
		if d, err := domain.ParseDetail(raw); err == nil {
			return d, nil
		}
	}

	var body json.RawMessage
	if err := c.detail.GetJSON(ctx, c.DetailURL(id), &body); err != nil {
		return domain.EarthquakeDetail{}, err
	}
	d, err := domain.ParseDetail(body)
	if err != nil {
		return domain.EarthquakeDetail{}, err
	}
	c.cache.Set(ctx, key, body)
	return d, nil
}

// Ping checks that the feed host answers a HEAD for the day feed.
func (c *Client) Ping(ctx context.Context) error {
	return c.feed.Head(ctx, c.FeedURL(domain.TimeframeDay))
}

type feedResponse struct {
	Features json.RawMessage `json:"features"`
}
