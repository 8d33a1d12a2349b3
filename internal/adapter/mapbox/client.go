package mapbox

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/couchcryptid/quakewatch-service/internal/domain"
	"github.com/couchcryptid/quakewatch-service/internal/fetch"
)

// Client implements domain.Geocoder using the Mapbox Geocoding API.
type Client struct {
	token   string
	baseURL string
	fetcher *fetch.Client
	logger  *slog.Logger
}

// NewClient creates a Mapbox geocoding client. Requests share the fetch
// client's timeout and retry policy.
func NewClient(token, baseURL string, fetcher *fetch.Client, logger *slog.Logger) *Client {
	return &Client{
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: fetcher.Named("geocode"),
		logger:  logger,
	}
}

// ReverseGeocode converts coordinates to a city and country name.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.Place, error) {
	if !domain.ValidCoordinates(lat, lon) {
		return domain.Place{}, domain.ErrInvalidCoordinates
	}

	// Mapbox uses lon,lat order.
	coord := fmt.Sprintf("%.6f,%.6f", lon, lat)
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
		"types":        {"place,locality"},
	}
	u := fmt.Sprintf("%s/%s.json?%s", c.baseURL, coord, params.Encode())

	var resp response
	if err := c.fetcher.GetJSON(ctx, u, &resp); err != nil {
		return domain.Place{}, fmt.Errorf("reverse geocode: %w", err)
	}
	if len(resp.Features) == 0 {
		c.logger.Debug("no place found", "lat", lat, "lon", lon)
		return domain.Place{}, nil
	}

	f := resp.Features[0]
	place := domain.Place{Name: f.Text}
	for _, ctxEntry := range f.Context {
		if strings.HasPrefix(ctxEntry.ID, "country.") {
			place.Country = ctxEntry.Text
			break
		}
	}
	return place, nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64      `json:"center"` // [lon, lat]
	PlaceName string         `json:"place_name"`
	Text      string         `json:"text"`
	Relevance float64        `json:"relevance"`
	Context   []featureScope `json:"context"`
}

type featureScope struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}
