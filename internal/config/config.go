package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config carries every pipeline knob. Defaults match the reference
// deployment; environment variables override defaults and CLI flags
// override both.
type Config struct {
	// Input / output
	FeedsPath   string
	OutPath     string
	WeightsPath string

	// Fetcher
	RequestTimeout   time.Duration
	RetryAttempts    int
	RetryDelay       time.Duration
	GlobalBudget     time.Duration
	FetchConcurrency int
	UserAgent        string

	// Collection caps
	MaxPerFeed int
	MaxTotal   int
	PerHostMax map[string]int

	// Verifier
	VerifyLinks       bool
	VerifyBudget      time.Duration
	VerifyConcurrency int

	// Assembler
	TargetCount int

	// Policy
	BlockAggregators bool
	MaxAge           time.Duration

	Debug bool
}

// Load builds a Config from environment variables over defaults.
func Load() (*Config, error) {
	cfg := &Config{
		FeedsPath:   getEnvOrDefault("FEEDS_FILE", "feeds.txt"),
		OutPath:     getEnvOrDefault("OUT_FILE", "headlines.json"),
		WeightsPath: getEnvOrDefault("WEIGHTS_FILE", "configs/weights.yaml"),

		RequestTimeout:   getEnvDurationOrDefault("HTTP_TIMEOUT", 10*time.Second),
		RetryAttempts:    getEnvIntOrDefault("FETCH_RETRIES", 2),
		RetryDelay:       getEnvDurationOrDefault("RETRY_DELAY", 500*time.Millisecond),
		GlobalBudget:     getEnvDurationOrDefault("GLOBAL_BUDGET", 210*time.Second),
		FetchConcurrency: getEnvIntOrDefault("FETCH_CONCURRENCY", 8),
		UserAgent:        getEnvOrDefault("FETCH_UA", "NewsRiverBot/1.3 (+https://mypybite.github.io/newsriver/)"),

		MaxPerFeed: getEnvIntOrDefault("MAX_PER_FEED", 14),
		MaxTotal:   getEnvIntOrDefault("MAX_TOTAL", 320),
		PerHostMax: map[string]int{
			"toronto.citynews.ca": 8,
			"financialpost.com":   6,
		},

		VerifyLinks:       getEnvBoolOrDefault("VERIFY_LINKS", true),
		VerifyBudget:      getEnvDurationOrDefault("VERIFY_BUDGET", 60*time.Second),
		VerifyConcurrency: getEnvIntOrDefault("VERIFY_CONCURRENCY", 8),

		TargetCount: getEnvIntOrDefault("TARGET_COUNT", 0),

		BlockAggregators: getEnvBoolOrDefault("BLOCK_AGGREGATORS", true),
		MaxAge:           getEnvDurationOrDefault("MAX_AGE", 0),

		Debug: os.Getenv("DEBUG") == "true",
	}

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.FeedsPath == "" {
		return fmt.Errorf("feeds file path is required")
	}
	if c.OutPath == "" {
		return fmt.Errorf("output path is required")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if c.GlobalBudget <= 0 {
		return fmt.Errorf("global budget must be positive")
	}
	if c.FetchConcurrency < 1 {
		return fmt.Errorf("fetch concurrency must be at least 1")
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("retry count cannot be negative")
	}
	if c.TargetCount < 0 {
		return fmt.Errorf("target count cannot be negative")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		// bare numbers mean seconds, matching the reference deployment
		if secs, err := strconv.ParseFloat(value, 64); err == nil {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return defaultValue
}
