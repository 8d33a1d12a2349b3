package mapbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/couchcryptid/quakewatch-service/internal/domain"
	"github.com/couchcryptid/quakewatch-service/internal/fetch"
	"github.com/couchcryptid/quakewatch-service/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testToken         = "test-token"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	policy := fetch.DefaultPolicy()
	policy.MaxRetries = 1
	policy.Backoff = fetch.ConstantBackoff(0)
	fetcher := fetch.NewClient(policy, clockwork.NewFakeClock(), logger, metrics)

	return NewClient(testToken, srv.URL+"/", fetcher, logger), &calls
}

func TestClient_ReverseGeocode_Success(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/139.690000,35.680000.json", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, testToken, r.URL.Query().Get("access_token"))
		assert.Equal(t, "place,locality", r.URL.Query().Get("types"))

		resp := response{
			Features: []feature{
				{
					Center:    []float64{139.69, 35.68},
					PlaceName: "Tokyo, Tokyo, Japan",
					Text:      "Tokyo",
					Relevance: 1,
					Context: []featureScope{
						{ID: "region.123", Text: "Tokyo"},
						{ID: "country.456", Text: "Japan"},
					},
				},
			},
		}
		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	place, err := c.ReverseGeocode(context.Background(), 35.68, 139.69)
	require.NoError(t, err)
	assert.Equal(t, domain.Place{Name: "Tokyo", Country: "Japan"}, place)
}

func TestClient_ReverseGeocode_NoResults(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(response{Features: []feature{}}))
	})

	place, err := c.ReverseGeocode(context.Background(), 0, -140)
	require.NoError(t, err)
	assert.Empty(t, place.Name)
}

func TestClient_ReverseGeocode_APIError(t *testing.T) {
	c, calls := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Not Authorized"}`))
	})

	_, err := c.ReverseGeocode(context.Background(), 35.68, 139.69)
	require.Error(t, err)

	var statusErr *fetch.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Equal(t, int32(2), calls.Load(), "one attempt plus one retry")
}

func TestClient_ReverseGeocode_InvalidCoordinates(t *testing.T) {
	c, calls := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	_, err := c.ReverseGeocode(context.Background(), 91, 0)
	require.ErrorIs(t, err, domain.ErrInvalidCoordinates)
	assert.Zero(t, calls.Load())
}

func TestClient_ReverseGeocode_TokenStaysOutOfLogsAndErrors(t *testing.T) {
	const secret = "sk.secret-token-123"

	unauthorized := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(unauthorized.Close)
	unreachable := httptest.NewServer(http.NotFoundHandler())
	unreachable.Close()

	for name, baseURL := range map[string]string{
		"status error":    unauthorized.URL,
		"transport error": unreachable.URL,
	} {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
			policy := fetch.DefaultPolicy()
			policy.MaxRetries = 1
			policy.Backoff = fetch.ConstantBackoff(0)
			fetcher := fetch.NewClient(policy, clockwork.NewFakeClock(), logger, observability.NewMetricsForTesting())
			c := NewClient(secret, baseURL, fetcher, logger)

			_, err := c.ReverseGeocode(context.Background(), 35.68, 139.69)
			require.Error(t, err)
			assert.NotContains(t, err.Error(), secret)
			assert.NotContains(t, buf.String(), secret)
			assert.Contains(t, buf.String(), "access_token=REDACTED")
		})
	}
}
