package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/couchcryptid/quakewatch-service/internal/cache"
	"github.com/couchcryptid/quakewatch-service/internal/domain"
	"github.com/couchcryptid/quakewatch-service/internal/fetch"
)

// DefaultBaseURL is the Open-Meteo forecast endpoint.
const DefaultBaseURL = "https://api.open-meteo.com/v1/forecast"

// Client fetches current conditions from Open-Meteo through the response cache.
type Client struct {
	baseURL string
	fetcher *fetch.Client
	cache   cache.Cache
	logger  *slog.Logger
}

// NewClient creates an Open-Meteo client.
func NewClient(baseURL string, fetcher *fetch.Client, c cache.Cache, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		fetcher: fetcher.Named("weather"),
		cache:   c,
		logger:  logger,
	}
}

// Current returns current conditions at lat/lon. Out-of-range coordinates
// fail with domain.ErrInvalidCoordinates before any request is made.
func (c *Client) Current(ctx context.Context, lat, lon float64) (domain.Weather, error) {
	if !domain.ValidCoordinates(lat, lon) {
		return domain.Weather{}, fmt.Errorf("weather at (%v, %v): %w", lat, lon, domain.ErrInvalidCoordinates)
	}

	key := cache.WeatherKey(lat, lon)
	if raw, ok := c.cache.Get(ctx, key); ok {
		if w, err := domain.ParseWeather(raw); err == nil {
			return w, nil
		}
	}

	var body json.RawMessage
	if err := c.fetcher.GetJSON(ctx, c.forecastURL(lat, lon), &body); err != nil {
		return domain.Weather{}, err
	}
	w, err := domain.ParseWeather(body)
	if err != nil {
		return domain.Weather{}, err
	}
	c.cache.Set(ctx, key, body)
	c.logger.Debug("weather fetched", "key", key)
	return w, nil
}

// Ping checks that the forecast host answers a HEAD for a fixed point.
func (c *Client) Ping(ctx context.Context) error {
	return c.fetcher.Head(ctx, c.forecastURL(0, 0))
}

func (c *Client) forecastURL(lat, lon float64) string {
	params := url.Values{
		"latitude":      {strconv.FormatFloat(lat, 'f', -1, 64)},
		"longitude":     {strconv.FormatFloat(lon, 'f', -1, 64)},
		"current":       {"temperature_2m,relative_humidity_2m,wind_speed_10m,weather_code"},
		"hourly":        {"temperature_2m"},
		"forecast_days": {"1"},
	}
	return c.baseURL + "?" + params.Encode()
}
