package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/quakewatch-service/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Upstream APIs.
	USGSBaseURL     string
	WeatherBaseURL  string
	FetchTimeout    time.Duration
	FetchMaxRetries int

	CacheTTL         time.Duration
	RefreshInterval  time.Duration
	StaleAfter       time.Duration
	DefaultTimeframe string
	PageSize         int

	// Device location. HomeSet is false when HOME_LAT/HOME_LON are unset.
	HomeSet  bool
	HomeLat  float64
	HomeLon  float64
	HomeName string

	DBPath string

	// Mapbox reverse geocoding for unnamed locations.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxBaseURL   string
	MapboxTimeout   time.Duration
	MapboxCacheSize int

	// Optional Redis response cache.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Optional Kafka alert publishing, enabled when KAFKA_BROKERS is set.
	KafkaBrokers      []string
	KafkaAlertTopic   string
	AlertMinMagnitude float64
	AlertRadiusKm     float64
}

// Load reads configuration from environment variables (and a .env file when
// present), applying defaults where unset.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:         sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:         sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:        sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:  shutdownTimeout,
		USGSBaseURL:      sharedcfg.EnvOrDefault("USGS_BASE_URL", "https://earthquake.usgs.gov/earthquakes/feed/v1.0/"),
		WeatherBaseURL:   sharedcfg.EnvOrDefault("WEATHER_BASE_URL", "https://api.open-meteo.com/v1/forecast"),
		DefaultTimeframe: sharedcfg.EnvOrDefault("DEFAULT_TIMEFRAME", "day"),
		HomeName:         sharedcfg.EnvOrDefault("HOME_NAME", domain.UnnamedLocation),
		DBPath:           sharedcfg.EnvOrDefault("DB_PATH", "quakewatch.db"),
		MapboxToken:      os.Getenv("MAPBOX_TOKEN"),
		MapboxBaseURL:    sharedcfg.EnvOrDefault("MAPBOX_BASE_URL", "https://api.mapbox.com/geocoding/v5/mapbox.places"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		KafkaAlertTopic:  sharedcfg.EnvOrDefault("KAFKA_ALERT_TOPIC", "earthquake-alerts"),
	}

	durations := []struct {
		name string
		def  string
		dst  *time.Duration
	}{
		{"FETCH_TIMEOUT", "10s", &cfg.FetchTimeout},
		{"CACHE_TTL", "5m", &cfg.CacheTTL},
		{"REFRESH_INTERVAL", "5m", &cfg.RefreshInterval},
		{"STALE_AFTER", "5m", &cfg.StaleAfter},
		{"MAPBOX_TIMEOUT", "5s", &cfg.MapboxTimeout},
	}
	for _, d := range durations {
		v, err := parsePositiveDuration(d.name, d.def)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	if cfg.FetchMaxRetries, err = parseInt("FETCH_MAX_RETRIES", 3, 0, 10); err != nil {
		return nil, err
	}
	if cfg.PageSize, err = parseInt("PAGE_SIZE", 20, 1, 100); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = parseInt("REDIS_DB", 0, 0, 15); err != nil {
		return nil, err
	}
	if cfg.MapboxCacheSize, err = parseInt("MAPBOX_CACHE_SIZE", 256, 1, 100000); err != nil {
		return nil, err
	}
	if cfg.AlertMinMagnitude, err = parseFloat("ALERT_MIN_MAGNITUDE", 5.0); err != nil {
		return nil, err
	}
	if cfg.AlertRadiusKm, err = parseFloat("ALERT_RADIUS_KM", 500); err != nil {
		return nil, err
	}

	cfg.MapboxEnabled = cfg.MapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		cfg.MapboxEnabled = v == "true"
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}

	if err := cfg.loadHome(); err != nil {
		return nil, err
	}

	switch cfg.DefaultTimeframe {
	case "hour", "day", "week", "month":
	default:
		return nil, fmt.Errorf("invalid DEFAULT_TIMEFRAME %q: want hour, day, week or month", cfg.DefaultTimeframe)
	}
	if cfg.KafkaAlertTopic == "" {
		return nil, errors.New("KAFKA_ALERT_TOPIC must not be empty")
	}

	return cfg, nil
}

// AlertsEnabled reports whether Kafka alert publishing is configured.
func (c *Config) AlertsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func (c *Config) loadHome() error {
	latStr, lonStr := os.Getenv("HOME_LAT"), os.Getenv("HOME_LON")
	if latStr == "" && lonStr == "" {
		return nil
	}
	if latStr == "" || lonStr == "" {
		return errors.New("HOME_LAT and HOME_LON must be set together")
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || lat < -90 || lat > 90 {
		return fmt.Errorf("invalid HOME_LAT %q", latStr)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil || lon < -180 || lon > 180 {
		return fmt.Errorf("invalid HOME_LON %q", lonStr)
	}
	c.HomeSet, c.HomeLat, c.HomeLon = true, lat, lon
	return nil
}

func parsePositiveDuration(name, def string) (time.Duration, error) {
	s := sharedcfg.EnvOrDefault(name, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return d, nil
}

func parseInt(name string, def, lo, hi int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s %q: must be an integer in [%d, %d]", name, s, lo, hi)
	}
	return n, nil
}

func parseFloat(name string, def float64) (float64, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return v, nil
}
