package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const EnvPrefix = "GRADSCOUT_"

// ApplyEnv loads <dir>/.env (if present, without clobbering variables already
// set in the process) and then applies GRADSCOUT_* overrides to s.
func ApplyEnv(s *Settings, dir string) error {
	envPath := filepath.Join(dir, ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return fmt.Errorf("load %s: %w", envPath, err)
		}
	}

	var errs []string
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s%s=%q is not an integer", EnvPrefix, key, v))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s%s=%q is not a duration", EnvPrefix, key, v))
				return
			}
			*dst = d
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s%s=%q is not a bool", EnvPrefix, key, v))
				return
			}
			*dst = b
		}
	}

	num("PORT", &s.App.Port)
	str("DATA_DIR", &s.App.DataDir)
	str("LOG_LEVEL", &s.App.LogLevel)
	str("LOG_FORMAT", &s.App.LogFormat)

	num("CONCURRENCY", &s.Scraping.Concurrency)
	dur("RATE_LIMIT_DELAY", &s.Scraping.RateLimitDelay)
	dur("JITTER", &s.Scraping.Jitter)
	dur("COMPANY_TIMEOUT", &s.Scraping.CompanyTimeout)
	dur("RUN_TIMEOUT", &s.Scraping.RunTimeout)
	num("MAX_ATTEMPTS", &s.Scraping.MaxAttempts)
	str("USER_AGENT", &s.Scraping.UserAgent)

	flag("POLLING_ENABLED", &s.Polling.Enabled)
	dur("POLLING_INTERVAL", &s.Polling.Interval)

	str("OUTPUT_DIR", &s.Output.Directory)

	if len(errs) > 0 {
		return fmt.Errorf("env overrides: %s", strings.Join(errs, "; "))
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}
