package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "https://earthquake.usgs.gov/earthquakes/feed/v1.0/", cfg.USGSBaseURL)
	assert.Equal(t, "https://api.open-meteo.com/v1/forecast", cfg.WeatherBaseURL)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 3, cfg.FetchMaxRetries)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 5*time.Minute, cfg.RefreshInterval)
	assert.Equal(t, 5*time.Minute, cfg.StaleAfter)
	assert.Equal(t, "day", cfg.DefaultTimeframe)
	assert.Equal(t, 20, cfg.PageSize)
	assert.False(t, cfg.HomeSet)
	assert.Equal(t, "quakewatch.db", cfg.DBPath)
	assert.False(t, cfg.MapboxEnabled)
	assert.Equal(t, 5*time.Second, cfg.MapboxTimeout)
	assert.Equal(t, 256, cfg.MapboxCacheSize)
	assert.Equal(t, "Your Location", cfg.HomeName)
	assert.Empty(t, cfg.RedisAddr)
	assert.False(t, cfg.AlertsEnabled())
	assert.Equal(t, "earthquake-alerts", cfg.KafkaAlertTopic)
	assert.Equal(t, 5.0, cfg.AlertMinMagnitude)
	assert.Equal(t, 500.0, cfg.AlertRadiusKm)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("USGS_BASE_URL", "http://usgs.local/")
	t.Setenv("WEATHER_BASE_URL", "http://weather.local/forecast")
	t.Setenv("FETCH_TIMEOUT", "2s")
	t.Setenv("FETCH_MAX_RETRIES", "5")
	t.Setenv("CACHE_TTL", "1m")
	t.Setenv("REFRESH_INTERVAL", "30s")
	t.Setenv("STALE_AFTER", "10m")
	t.Setenv("DEFAULT_TIMEFRAME", "week")
	t.Setenv("PAGE_SIZE", "50")
	t.Setenv("HOME_LAT", "35.68")
	t.Setenv("HOME_LON", "139.69")
	t.Setenv("HOME_NAME", "Tokyo")
	t.Setenv("DB_PATH", "/tmp/qw.db")
	t.Setenv("MAPBOX_TOKEN", "pk.test")
	t.Setenv("MAPBOX_TIMEOUT", "2s")
	t.Setenv("MAPBOX_CACHE_SIZE", "64")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_ALERT_TOPIC", "quake-alerts")
	t.Setenv("ALERT_MIN_MAGNITUDE", "6.5")
	t.Setenv("ALERT_RADIUS_KM", "1000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "http://usgs.local/", cfg.USGSBaseURL)
	assert.Equal(t, "http://weather.local/forecast", cfg.WeatherBaseURL)
	assert.Equal(t, 2*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 5, cfg.FetchMaxRetries)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
	assert.Equal(t, 30*time.Second, cfg.RefreshInterval)
	assert.Equal(t, 10*time.Minute, cfg.StaleAfter)
	assert.Equal(t, "week", cfg.DefaultTimeframe)
	assert.Equal(t, 50, cfg.PageSize)
	assert.True(t, cfg.HomeSet)
	assert.Equal(t, 35.68, cfg.HomeLat)
	assert.Equal(t, 139.69, cfg.HomeLon)
	assert.Equal(t, "Tokyo", cfg.HomeName)
	assert.Equal(t, "/tmp/qw.db", cfg.DBPath)
	assert.True(t, cfg.MapboxEnabled)
	assert.Equal(t, "pk.test", cfg.MapboxToken)
	assert.Equal(t, 2*time.Second, cfg.MapboxTimeout)
	assert.Equal(t, 64, cfg.MapboxCacheSize)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.True(t, cfg.AlertsEnabled())
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "quake-alerts", cfg.KafkaAlertTopic)
	assert.Equal(t, 6.5, cfg.AlertMinMagnitude)
	assert.Equal(t, 1000.0, cfg.AlertRadiusKm)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidDurations(t *testing.T) {
	for _, name := range []string{"FETCH_TIMEOUT", "CACHE_TTL", "REFRESH_INTERVAL", "STALE_AFTER", "MAPBOX_TIMEOUT"} {
		t.Run(name, func(t *testing.T) {
			t.Setenv(name, "-1s")
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), name)
		})
	}
}

func TestLoad_InvalidFetchMaxRetries(t *testing.T) {
	t.Setenv("FETCH_MAX_RETRIES", "11")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FETCH_MAX_RETRIES")
}

func TestLoad_InvalidPageSize(t *testing.T) {
	t.Setenv("PAGE_SIZE", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAGE_SIZE")
}

func TestLoad_InvalidTimeframe(t *testing.T) {
	t.Setenv("DEFAULT_TIMEFRAME", "year")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEFAULT_TIMEFRAME")
}

func TestLoad_HomeRequiresBothCoordinates(t *testing.T) {
	t.Setenv("HOME_LAT", "10")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HOME_LON")
}

func TestLoad_HomeOutOfRange(t *testing.T) {
	t.Setenv("HOME_LAT", "91")
	t.Setenv("HOME_LON", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HOME_LAT")
}

func TestLoad_InvalidAlertMagnitude(t *testing.T) {
	t.Setenv("ALERT_MIN_MAGNITUDE", "big")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ALERT_MIN_MAGNITUDE")
}

func TestLoad_MapboxEnabledWithoutToken(t *testing.T) {
	t.Setenv("MAPBOX_ENABLED", "true")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAPBOX_TOKEN")
}

func TestLoad_MapboxDisabledExplicitly(t *testing.T) {
	t.Setenv("MAPBOX_TOKEN", "pk.test")
	t.Setenv("MAPBOX_ENABLED", "false")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.MapboxEnabled)
}
