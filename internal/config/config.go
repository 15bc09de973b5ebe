package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Cache backends accepted by CACHE_BACKEND.
const (
	CacheBackendMemory   = "memory"
	CacheBackendPostgres = "postgres"
)

// Geodesic models accepted by GEODESIC_MODEL.
const (
	GeodesicSphere = "sphere"
	GeodesicWGS84  = "wgs84"
)

// Config holds all client settings, populated from environment variables.
type Config struct {
	RadarAPIURL        string
	Station            string
	Sweep              int
	SiteLon            float64
	SiteLat            float64
	HTTPTimeout        time.Duration
	PollInterval       time.Duration
	CacheRetention     time.Duration
	CacheBackend       string
	CacheMaxNamespaces int
	DatabaseURL        string
	GeodesicModel      string
	TransformQueue     int
	HTTPAddr           string
	LogLevel           string
	LogFormat          string
	ShutdownTimeout    time.Duration
	KafkaBrokers       []string
	KafkaScanTopic     string
	KafkaEnabled       bool
	WebsocketPath      string
	WSBaseDelay        time.Duration
	WSMaxDelay         time.Duration
	WSHeartbeatDelay   time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load() // missing file is fine

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		RadarAPIURL:     strings.TrimRight(sharedcfg.EnvOrDefault("RADAR_API_URL", "http://localhost:5000"), "/"),
		Station:         strings.ToUpper(strings.TrimSpace(sharedcfg.EnvOrDefault("RADAR_STATION", "KTLX"))),
		CacheBackend:    sharedcfg.EnvOrDefault("CACHE_BACKEND", CacheBackendMemory),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		GeodesicModel:   sharedcfg.EnvOrDefault("GEODESIC_MODEL", GeodesicSphere),
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		KafkaBrokers:    sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaScanTopic:  sharedcfg.EnvOrDefault("KAFKA_SCAN_TOPIC", "radar-scans"),
	}
	cfg.KafkaEnabled = len(cfg.KafkaBrokers) > 0
	cfg.WebsocketPath = sharedcfg.EnvOrDefault("WS_PATH", "watch/station/"+cfg.Station)

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"RADAR_HTTP_TIMEOUT", "10s", &cfg.HTTPTimeout},
		{"POLL_INTERVAL", "5s", &cfg.PollInterval},
		{"CACHE_RETENTION", "1h", &cfg.CacheRetention},
		{"WS_BASE_DELAY", "300ms", &cfg.WSBaseDelay},
		{"WS_MAX_DELAY", "15s", &cfg.WSMaxDelay},
		{"WS_HEARTBEAT_DELAY", "1s", &cfg.WSHeartbeatDelay},
	}
	for _, d := range durations {
		v, err := parsePositiveDuration(d.key, d.def)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	if cfg.SiteLon, err = parseFloat("RADAR_SITE_LON", -97.2778, 180); err != nil {
		return nil, err
	}
	if cfg.SiteLat, err = parseFloat("RADAR_SITE_LAT", 35.3331, 90); err != nil {
		return nil, err
	}

	if cfg.Sweep, err = parseInt("RADAR_SWEEP", 0, 0); err != nil {
		return nil, err
	}

	if cfg.CacheMaxNamespaces, err = parseInt("CACHE_MAX_NAMESPACES", 256, 1); err != nil {
		return nil, err
	}
	if cfg.TransformQueue, err = parseInt("TRANSFORM_QUEUE_SIZE", 16, 1); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.RadarAPIURL == "" {
		return errors.New("RADAR_API_URL is required")
	}
	if !strings.HasPrefix(c.RadarAPIURL, "http://") && !strings.HasPrefix(c.RadarAPIURL, "https://") {
		return errors.New("RADAR_API_URL must be an http or https URL")
	}
	if c.Station == "" {
		return errors.New("RADAR_STATION is required")
	}
	switch c.CacheBackend {
	case CacheBackendMemory:
	case CacheBackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("CACHE_BACKEND is postgres but DATABASE_URL is not set")
		}
	default:
		return fmt.Errorf("invalid CACHE_BACKEND %q", c.CacheBackend)
	}
	switch c.GeodesicModel {
	case GeodesicSphere, GeodesicWGS84:
	default:
		return fmt.Errorf("invalid GEODESIC_MODEL %q", c.GeodesicModel)
	}
	if c.WSMaxDelay < c.WSBaseDelay {
		return errors.New("WS_MAX_DELAY must not be less than WS_BASE_DELAY")
	}
	if c.KafkaEnabled && c.KafkaScanTopic == "" {
		return errors.New("KAFKA_SCAN_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, def, lowest int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < lowest {
		return 0, fmt.Errorf("invalid %s: %s", key, s)
	}
	return n, nil
}

// parseFloat reads a coordinate, rejecting values outside [-limit, limit].
func parseFloat(key string, def, limit float64) (float64, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < -limit || v > limit {
		return 0, fmt.Errorf("invalid %s: %s", key, s)
	}
	return v, nil
}
