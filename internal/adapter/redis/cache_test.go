package redis

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/quakewatch-service/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachable returns a client pointed at a port nothing listens on.
func unreachable(t *testing.T) *goredis.Client {
	t.Helper()
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestCache_UnreachableRedisDegradesToMiss(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	c := NewCache(unreachable(t), 5*time.Minute, clockwork.NewFakeClock(), slog.New(slog.NewTextHandler(io.Discard, nil)), metrics)
	ctx := context.Background()

	c.Set(ctx, "k", []byte(`1`))
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("miss")), 0)

	c.Clear(ctx)
	require.Error(t, c.Ping(ctx))
}

func TestNewClient_FailsWithoutServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewClient(ctx, "127.0.0.1:1", "", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "127.0.0.1:1")
}
