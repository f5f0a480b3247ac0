package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds scraper configuration.
type Config struct {
	OutputRoot        string
	ManifestFormat    string // json, csv, or dual
	Timeout           time.Duration
	Delay             time.Duration
	RandomDelay       time.Duration
	RespectRobotsTxt  bool
	MaxRetries        int
	RetryBackoff      time.Duration
	RetryBackoffMax   time.Duration
	UserAgent         string
	DedupeMaxSize     int
	SourceConcurrency int
	MetricsAddr       string
	LogFile           string
	Verbose           bool
}

const logFileName = "pudl-scrape.log"

// DefaultOutputRoot is <home>/Downloads/pudl/scrape, falling back to a
// relative directory when the home directory cannot be resolved.
func DefaultOutputRoot() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join("Downloads", "pudl", "scrape")
	}
	return filepath.Join(home, "Downloads", "pudl", "scrape")
}

// DefaultConfig returns conservative defaults for government data portals.
func DefaultConfig() *Config {
	return &Config{
		OutputRoot:        DefaultOutputRoot(),
		ManifestFormat:    "json",
		Timeout:           5 * time.Minute,
		Delay:             0,
		RandomDelay:       0,
		RespectRobotsTxt:  false,
		MaxRetries:        3,
		RetryBackoff:      time.Second,
		RetryBackoffMax:   30 * time.Second,
		UserAgent:         "pudl-scrape/1.0 (+https://catalyst.coop/pudl)",
		DedupeMaxSize:     100000,
		SourceConcurrency: 1,
		Verbose:           false,
	}
}

// LogPath is LogFile, or the process log file inside the output root.
func (c *Config) LogPath() string {
	if c.LogFile != "" {
		return c.LogFile
	}
	return filepath.Join(c.OutputRoot, logFileName)
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.OutputRoot == "" {
		return fmt.Errorf("output root cannot be empty")
	}
	if c.ManifestFormat != "csv" && c.ManifestFormat != "json" && c.ManifestFormat != "dual" {
		return fmt.Errorf("manifest format must be csv, json, or dual")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	if c.SourceConcurrency <= 0 {
		return fmt.Errorf("source concurrency must be positive")
	}

	return nil
}
