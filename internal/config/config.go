package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// State whose municipalities the dashboard covers (two-letter UF).
	StateCode string

	// Upstream endpoints.
	MosqlimateURL string
	InfoDengueURL string
	IBGEURL       string

	BulkTimeout   time.Duration
	SingleTimeout time.Duration
	GeoTimeout    time.Duration

	// Bulk pagination. PageCap 0 means follow every page.
	PageCap     int
	PerPage     int
	PageWorkers int

	CacheTTL        time.Duration
	GeoCacheTTL     time.Duration
	CacheMaxEntries int

	// Optional snapshot publishing.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaSnapshotTopic string

	WarmupDisease string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		StateCode: strings.ToUpper(sharedcfg.EnvOrDefault("STATE_CODE", "GO")),

		MosqlimateURL: sharedcfg.EnvOrDefault("MOSQLIMATE_URL", "https://api.mosqlimate.org/api/datastore/infodengue/"),
		InfoDengueURL: sharedcfg.EnvOrDefault("INFODENGUE_URL", "https://info.dengue.mat.br/api/alertcity"),
		IBGEURL:       sharedcfg.EnvOrDefault("IBGE_URL", "https://servicodados.ibge.gov.br/api/v3/malhas/estados"),

		KafkaEnabled:       os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSnapshotTopic: sharedcfg.EnvOrDefault("KAFKA_SNAPSHOT_TOPIC", "arbovirus-alert-snapshots"),

		WarmupDisease: sharedcfg.EnvOrDefault("WARMUP_DISEASE", "dengue"),
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"BULK_TIMEOUT", "30s", &cfg.BulkTimeout},
		{"SINGLE_TIMEOUT", "10s", &cfg.SingleTimeout},
		{"GEO_TIMEOUT", "30s", &cfg.GeoTimeout},
		{"CACHE_TTL", "1h", &cfg.CacheTTL},
		{"GEO_CACHE_TTL", "24h", &cfg.GeoCacheTTL},
	}
	for _, d := range durations {
		v, err := parsePositiveDuration(d.key, d.def)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	ints := []struct {
		key string
		def int
		min int
		dst *int
	}{
		{"INFODENGUE_PAGE_CAP", 5, 0, &cfg.PageCap},
		{"INFODENGUE_PER_PAGE", 100, 1, &cfg.PerPage},
		{"INFODENGUE_PAGE_WORKERS", 2, 1, &cfg.PageWorkers},
		{"CACHE_MAX_ENTRIES", 256, 1, &cfg.CacheMaxEntries},
	}
	for _, n := range ints {
		v, err := parseInt(n.key, n.def, n.min)
		if err != nil {
			return nil, err
		}
		*n.dst = v
	}

	if len(cfg.StateCode) != 2 {
		return nil, errors.New("invalid STATE_CODE: must be a two-letter state code")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if cfg.KafkaEnabled && cfg.KafkaSnapshotTopic == "" {
		return nil, errors.New("KAFKA_SNAPSHOT_TOPIC is required when KAFKA_ENABLED is true")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", key)
	}
	return d, nil
}

func parseInt(key string, def, minValue int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < minValue {
		return 0, fmt.Errorf("invalid %s: must be an integer >= %d", key, minValue)
	}
	return n, nil
}

// writeMargin covers processing and response encoding after the last
// upstream call of a view returns.
const writeMargin = 5 * time.Second

// HTTPWriteTimeout is the longest a cold view can take: the first bulk page,
// the remaining capped pages in rounds of PageWorkers, then the mesh, plus a
// margin. With no page cap the page count is unbounded and so is the
// timeout (0).
func (c *Config) HTTPWriteTimeout() time.Duration {
	if c.PageCap == 0 {
		return 0
	}
	workers := max(c.PageWorkers, 1)
	rounds := (c.PageCap - 1 + workers - 1) / workers
	state := c.BulkTimeout*time.Duration(1+rounds) + c.GeoTimeout
	return max(state, c.SingleTimeout) + writeMargin
}
