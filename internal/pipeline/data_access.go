package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/quakewatch-service/internal/cache"
	"github.com/couchcryptid/quakewatch-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// EarthquakeSource reads earthquake feeds and details.
type EarthquakeSource interface {
	Earthquakes(ctx context.Context, tf domain.Timeframe) ([]domain.Earthquake, error)
	Detail(ctx context.Context, id string) (domain.EarthquakeDetail, error)
	Ping(ctx context.Context) error
}

// WeatherSource reads current conditions.
type WeatherSource interface {
	Current(ctx context.Context, lat, lon float64) (domain.Weather, error)
	Ping(ctx context.Context) error
}

// APIStatus is the reachability of each upstream API.
type APIStatus struct {
	USGS    bool `json:"usgs"`
	Weather bool `json:"weather"`
}

// DataAccess applies the dashboard's error policy on top of the upstream
// clients and collapses concurrent identical requests into one call.
type DataAccess struct {
	quakes  EarthquakeSource
	weather WeatherSource
	group   singleflight.Group
	logger  *slog.Logger
	notify  func(Level, string)
}

// NewDataAccess creates the facade. Notices are logged until a Pipeline
// takes ownership of it.
func NewDataAccess(quakes EarthquakeSource, weather WeatherSource, logger *slog.Logger) *DataAccess {
	d := &DataAccess{quakes: quakes, weather: weather, logger: logger}
	d.notify = func(level Level, msg string) {
		logger.Info("notice", "level", level, "message", msg)
	}
	return d
}

// shared runs fn once per key for all concurrent callers. fn runs without
// the caller's cancellation so one caller giving up cannot fail the others;
// each caller returns ctx.Err() as soon as its own ctx ends.
func shared[T any](ctx context.Context, g *singleflight.Group, key string, fn func(context.Context) (T, error)) (T, bool, error) {
	ch := g.DoChan(key, func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})
	var zero T
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Shared, res.Err
		}
		return res.Val.(T), res.Shared, nil
	}
}

// Earthquakes returns the feed for tf or the error that prevented it.
func (d *DataAccess) Earthquakes(ctx context.Context, tf domain.Timeframe) ([]domain.Earthquake, error) {
	events, joined, err := shared(ctx, &d.group, cache.EarthquakesKey(tf), func(ctx context.Context) ([]domain.Earthquake, error) {
		return d.quakes.Earthquakes(ctx, tf)
	})
	if joined {
		d.logger.Debug("joined in-flight earthquake fetch", "timeframe", tf)
	}
	if err != nil {
		return nil, err
	}
	return events, nil
}

// FetchEarthquakes never fails: on error it notifies the user and returns
// an empty list.
func (d *DataAccess) FetchEarthquakes(ctx context.Context, tf domain.Timeframe) []domain.Earthquake {
	events, err := d.Earthquakes(ctx, tf)
	if err != nil && ctx.Err() != nil {
		return []domain.Earthquake{}
	}
	if err != nil {
		d.logger.Error("fetch earthquakes failed", "timeframe", tf, "error", err)
		d.notify(LevelError, MsgEarthquakeFetchFailed)
		return []domain.Earthquake{}
	}
	return events
}

// FetchEarthquakeDetails propagates errors so the caller can offer a retry.
func (d *DataAccess) FetchEarthquakeDetails(ctx context.Context, id string) (domain.EarthquakeDetail, error) {
	detail, _, err := shared(ctx, &d.group, cache.DetailKey(id), func(ctx context.Context) (domain.EarthquakeDetail, error) {
		return d.quakes.Detail(ctx, id)
	})
	if err != nil {
		d.logger.Warn("fetch earthquake detail failed", "id", id, "error", err)
		return domain.EarthquakeDetail{}, err
	}
	return detail, nil
}

// FetchWeather returns nil with a warning notice on any failure.
func (d *DataAccess) FetchWeather(ctx context.Context, lat, lon float64) *domain.Weather {
	w, _, err := shared(ctx, &d.group, cache.WeatherKey(lat, lon), func(ctx context.Context) (domain.Weather, error) {
		return d.weather.Current(ctx, lat, lon)
	})
	if err != nil && ctx.Err() != nil {
		return nil
	}
	if err != nil {
		d.logger.Warn("fetch weather failed", "lat", lat, "lon", lon, "error", err)
		d.notify(LevelWarning, MsgWeatherFetchFailed)
		return nil
	}
	return &w
}

// CheckAPIHealth pings both upstreams.
func (d *DataAccess) CheckAPIHealth(ctx context.Context) APIStatus {
	status := APIStatus{
		USGS:    d.quakes.Ping(ctx) == nil,
		Weather: d.weather.Ping(ctx) == nil,
	}
	d.logger.Debug("api health checked", "usgs", status.USGS, "weather", status.Weather)
	return status
}
