package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvString returns the trimmed value of key and whether it was set to a non-empty value.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses key as an integer.
func EnvInt(key string) (int, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvBool parses key with strconv.ParseBool.
func EnvBool(key string) (bool, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvDuration parses key with time.ParseDuration.
func EnvDuration(key string) (time.Duration, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// ApplyEnv overlays the PUDL_SCRAPE_* environment variables onto c.
func (c *Config) ApplyEnv() error {
	if value, ok := EnvString("PUDL_SCRAPE_OUTPUT"); ok {
		c.OutputRoot = value
	}
	if value, ok := EnvString("PUDL_SCRAPE_METRICS_ADDR"); ok {
		c.MetricsAddr = value
	}
	if value, ok, err := EnvDuration("PUDL_SCRAPE_TIMEOUT"); err != nil {
		return err
	} else if ok {
		c.Timeout = value
	}
	if value, ok, err := EnvDuration("PUDL_SCRAPE_DELAY"); err != nil {
		return err
	} else if ok {
		c.Delay = value
	}
	if value, ok, err := EnvDuration("PUDL_SCRAPE_RANDOM_DELAY"); err != nil {
		return err
	} else if ok {
		c.RandomDelay = value
	}
	if value, ok, err := EnvBool("PUDL_SCRAPE_RESPECT_ROBOTS"); err != nil {
		return err
	} else if ok {
		c.RespectRobotsTxt = value
	}
	if value, ok, err := EnvInt("PUDL_SCRAPE_MAX_RETRIES"); err != nil {
		return err
	} else if ok {
		c.MaxRetries = value
	}
	if value, ok, err := EnvInt("PUDL_SCRAPE_CONCURRENCY"); err != nil {
		return err
	} else if ok {
		c.SourceConcurrency = value
	}
	return nil
}
