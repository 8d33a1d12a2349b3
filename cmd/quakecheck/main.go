// Command quakecheck fetches one USGS summary feed, applies the dashboard's
// filter and sort rules, and prints the listing with its statistics. It
// reads the same environment as the service (USGS_BASE_URL, FETCH_TIMEOUT,
// FETCH_MAX_RETRIES).
//
// Usage:
//
//	go run ./cmd/quakecheck -timeframe week -min-mag 4.5 -sort magnitude
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/quakewatch-service/internal/adapter/usgs"
	"github.com/couchcryptid/quakewatch-service/internal/cache"
	"github.com/couchcryptid/quakewatch-service/internal/config"
	"github.com/couchcryptid/quakewatch-service/internal/domain"
	"github.com/couchcryptid/quakewatch-service/internal/fetch"
	"github.com/couchcryptid/quakewatch-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

type options struct {
	timeframe string
	minMag    float64
	search    string
	sortBy    string
	order     string
	limit     int
}

func main() {
	var opts options
	flag.StringVar(&opts.timeframe, "timeframe", "day", "feed window: hour, day, week or month")
	flag.Float64Var(&opts.minMag, "min-mag", 2.5, "minimum magnitude (negative disables)")
	flag.StringVar(&opts.search, "search", "", "case-insensitive place substring")
	flag.StringVar(&opts.sortBy, "sort", "time", "sort key: time, magnitude or depth")
	flag.StringVar(&opts.order, "order", "desc", "sort order: asc or desc")
	flag.IntVar(&opts.limit, "limit", 20, "rows to print")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		os.Exit(1)
	}
	// Progress logs go to stderr so the listing stays pipeable.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()
	metrics := observability.NewMetricsForTesting()
	policy := fetch.DefaultPolicy()
	policy.MaxRetries = cfg.FetchMaxRetries
	policy.Timeout = cfg.FetchTimeout

	client := usgs.NewClient(cfg.USGSBaseURL,
		fetch.NewClient(policy, clock, logger, metrics),
		cache.NewMemory(cfg.CacheTTL, clock, metrics),
		logger)

	os.Exit(run(ctx, client, opts, os.Stdout))
}

type feed interface {
	Earthquakes(ctx context.Context, tf domain.Timeframe) ([]domain.Earthquake, error)
}

func run(ctx context.Context, src feed, opts options, w io.Writer) int {
	criteria, err := opts.criteria()
	if err != nil {
		fmt.Fprintf(w, "FATAL: %v\n", err)
		return 2
	}

	events, err := src.Earthquakes(ctx, criteria.Timeframe)
	if err != nil {
		fmt.Fprintf(w, "FATAL: fetch %s feed: %v\n", criteria.Timeframe, err)
		return 1
	}

	shown := domain.Apply(events, criteria)
	stats := domain.ComputeStats(shown)

	fmt.Fprintf(w, "=== USGS %s feed: %d fetched, %d matching ===\n\n", criteria.Timeframe, len(events), len(shown))
	for i, e := range shown {
		if i == opts.limit {
			fmt.Fprintf(w, "  ... %d more\n", len(shown)-opts.limit)
			break
		}
		fmt.Fprintf(w, "  %-6s %-7s %-20s %s\n", fmtMag(e.Magnitude), fmtDepth(e.Depth),
			time.UnixMilli(e.Time).UTC().Format("2006-01-02 15:04:05"), e.Place)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Magnitude  max %.1f  min %.1f  avg %.2f\n", stats.MaxMagnitude, stats.MinMagnitude, stats.AverageMagnitude)
	fmt.Fprintf(w, "Depth km   max %.1f  min %.1f  avg %.1f\n", stats.MaxDepth, stats.MinDepth, stats.AverageDepth)
	fmt.Fprintf(w, "Severity   high %d  medium %d  low %d\n", stats.BySeverity.High, stats.BySeverity.Medium, stats.BySeverity.Low)
	if peak, ok := domain.Peak(shown); ok {
		fmt.Fprintf(w, "Peak       M%s %s\n", fmtMag(peak.Magnitude), peak.Place)
	}
	return 0
}

func (o options) criteria() (domain.FilterCriteria, error) {
	c := domain.DefaultFilterCriteria()
	c.Timeframe = domain.Timeframe(o.timeframe)
	switch c.Timeframe {
	case domain.TimeframeHour, domain.TimeframeDay, domain.TimeframeWeek, domain.TimeframeMonth:
	default:
		return c, fmt.Errorf("unknown timeframe %q", o.timeframe)
	}

	c.SortBy = domain.SortKey(o.sortBy)
	switch c.SortBy {
	case domain.SortByTime, domain.SortByMagnitude, domain.SortByDepth:
	default:
		return c, fmt.Errorf("unknown sort key %q", o.sortBy)
	}

	c.Order = domain.SortOrder(o.order)
	if c.Order != domain.OrderAsc && c.Order != domain.OrderDesc {
		return c, fmt.Errorf("unknown order %q", o.order)
	}

	if o.minMag < 0 {
		c.MinMagnitude = nil
	} else {
		minMag := o.minMag
		c.MinMagnitude = &minMag
	}
	c.Search = o.search
	if o.limit < 1 {
		return c, fmt.Errorf("limit must be positive, got %d", o.limit)
	}
	return c, nil
}

func fmtMag(m *float64) string {
	if m == nil {
		return "?"
	}
	return fmt.Sprintf("%.1f", *m)
}

func fmtDepth(d *float64) string {
	if d == nil {
		return "?"
	}
	return fmt.Sprintf("%.1fkm", *d)
}
