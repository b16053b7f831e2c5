package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// External document service
	ConfluenceBaseURL  string
	ConfluenceEmail    string
	ConfluenceAPIToken string

	// Local URL space
	LocalBaseURL string
	HomepageID   string

	// Optional bearer key for the JSON API
	MirrorAPIKey string

	// Link enrichment
	FetchTimeout       time.Duration
	MaxConcurrentFetch int
	TitleCacheSize     int
}

func Load() Config {
	port := envOr("PORT", "8091")
	cfg := Config{
		Port: port,

		ConfluenceBaseURL:  os.Getenv("CONFLUENCE_BASE_URL"),
		ConfluenceEmail:    os.Getenv("CONFLUENCE_EMAIL"),
		ConfluenceAPIToken: os.Getenv("CONFLUENCE_API_TOKEN"),

		LocalBaseURL: envOr("LOCAL_BASE_URL", "http://localhost:"+port),
		HomepageID:   os.Getenv("HOMEPAGE_ID"),

		MirrorAPIKey: os.Getenv("MIRROR_API_KEY"),

		FetchTimeout:       envDuration("FETCH_TIMEOUT", 10*time.Second),
		MaxConcurrentFetch: envInt("MAX_CONCURRENT_FETCH", 5),
		TitleCacheSize:     envInt("TITLE_CACHE_SIZE", 512),
	}

	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.MaxConcurrentFetch <= 0 {
		cfg.MaxConcurrentFetch = 5
	}
	if cfg.TitleCacheSize <= 0 {
		cfg.TitleCacheSize = 512
	}

	return cfg
}

func (c Config) Validate() error {
	if c.ConfluenceBaseURL == "" {
		return fmt.Errorf("CONFLUENCE_BASE_URL is required")
	}
	if c.ConfluenceAPIToken == "" {
		return fmt.Errorf("CONFLUENCE_API_TOKEN is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
