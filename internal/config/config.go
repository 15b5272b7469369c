package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Forecast hub layout and retrieval.
	RootDir          string
	FileExt          string
	WindowDays       int
	LoadConcurrency  int
	FillTransparency float64

	// Metadata provider: exactly one of MetadataURL and MetadataFile.
	MetadataURL       string
	MetadataFile      string
	MetadataProject   string
	MetadataToken     string
	MetadataTimeout   time.Duration
	MetadataCacheTTL  time.Duration
	MetadataRateLimit float64

	// Truth source: at most one of TruthBaseURL and TruthDir.
	TruthBaseURL  string
	TruthDir      string
	TruthTimeout  time.Duration
	TruthCacheTTL time.Duration

	KafkaBrokers        []string
	KafkaSinkTopic      string
	KafkaPublishEnabled bool

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults
// where unset, and validates the result.
func Load() (*Config, error) {
	cfg, err := Parse()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse reads environment variables without cross-field validation, so
// command-line flags can be applied before Validate.
func Parse() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	var errs []error
	windowDays, err := parseInt("FORECAST_WINDOW_DAYS", 6, 0)
	errs = append(errs, err)
	concurrency, err := parseInt("LOAD_CONCURRENCY", 4, 1)
	errs = append(errs, err)
	transparency, err := parseFloat("FILL_TRANSPARENCY", 0.5)
	errs = append(errs, err)
	rateLimit, err := parseFloat("METADATA_RATE_LIMIT", 5)
	errs = append(errs, err)
	metadataTimeout, err := parseDuration("METADATA_TIMEOUT", "10s")
	errs = append(errs, err)
	cacheTTL, err := parseDuration("METADATA_CACHE_TTL", "1h")
	errs = append(errs, err)
	truthTimeout, err := parseDuration("TRUTH_TIMEOUT", "30s")
	errs = append(errs, err)
	truthTTL, err := parseDuration("TRUTH_CACHE_TTL", "1h")
	errs = append(errs, err)
	publish, err := parseBool("KAFKA_PUBLISH_ENABLED", false)
	errs = append(errs, err)
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return &Config{
		RootDir:          sharedcfg.EnvOrDefault("FORECAST_ROOT_DIR", "data-processed"),
		FileExt:          sharedcfg.EnvOrDefault("FORECAST_FILE_EXT", "csv"),
		WindowDays:       windowDays,
		LoadConcurrency:  concurrency,
		FillTransparency: transparency,

		MetadataURL:       os.Getenv("METADATA_URL"),
		MetadataFile:      os.Getenv("METADATA_FILE"),
		MetadataProject:   sharedcfg.EnvOrDefault("METADATA_PROJECT", "COVID-19 Forecasts"),
		MetadataToken:     os.Getenv("METADATA_TOKEN"),
		MetadataTimeout:   metadataTimeout,
		MetadataCacheTTL:  cacheTTL,
		MetadataRateLimit: rateLimit,

		TruthBaseURL:  os.Getenv("TRUTH_BASE_URL"),
		TruthDir:      os.Getenv("TRUTH_DIR"),
		TruthTimeout:  truthTimeout,
		TruthCacheTTL: truthTTL,

		KafkaBrokers:        sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic:      sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "forecast-plot-data"),
		KafkaPublishEnabled: publish,

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}, nil
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	switch {
	case c.MetadataURL == "" && c.MetadataFile == "":
		return errors.New("one of METADATA_URL or METADATA_FILE is required")
	case c.MetadataURL != "" && c.MetadataFile != "":
		return errors.New("METADATA_URL and METADATA_FILE are mutually exclusive")
	case c.TruthBaseURL != "" && c.TruthDir != "":
		return errors.New("TRUTH_BASE_URL and TRUTH_DIR are mutually exclusive")
	case c.RootDir == "":
		return errors.New("FORECAST_ROOT_DIR is required")
	case c.FillTransparency < 0 || c.FillTransparency > 1:
		return errors.New("FILL_TRANSPARENCY must be between 0 and 1")
	case c.MetadataRateLimit < 0:
		return errors.New("METADATA_RATE_LIMIT must not be negative")
	case c.KafkaPublishEnabled && len(c.KafkaBrokers) == 0:
		return errors.New("KAFKA_PUBLISH_ENABLED is true but KAFKA_BROKERS is empty")
	case c.KafkaPublishEnabled && c.KafkaSinkTopic == "":
		return errors.New("KAFKA_SINK_TOPIC is required when publishing")
	}
	return nil
}

func parseInt(key string, def, minimum int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < minimum {
		return 0, fmt.Errorf("invalid %s: must be an integer >= %d", key, minimum)
	}
	return n, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
