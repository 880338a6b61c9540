package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// envReader reads typed values from the environment. A variable that is set but
// does not parse is recorded instead of silently falling back to the default.
type envReader struct {
	errs []error
}

func (e *envReader) invalid(key, value string, err error) {
	e.errs = append(e.errs, fmt.Errorf("invalid %s=%q: %w", key, value, err))
}

func (e *envReader) err() error {
	return errors.Join(e.errs...)
}

func (e *envReader) str(key, defaultVal string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultVal
}

func (e *envReader) int(key string, defaultVal int) int {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		e.invalid(key, value, err)
		return defaultVal
	}
	return v
}

func (e *envReader) bool(key string, defaultVal bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return defaultVal
	}
	v, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		e.invalid(key, value, err)
		return defaultVal
	}
	return v
}

func (e *envReader) duration(key string, defaultVal time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		e.invalid(key, value, err)
		return defaultVal
	}
	return d
}

func (e *envReader) list(key string, defaults []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		parts := strings.Split(value, ",")
		filtered := make([]string, 0, len(parts))
		for _, part := range parts {
			p := strings.TrimSpace(part)
			if p != "" {
				filtered = append(filtered, p)
			}
		}
		if len(filtered) > 0 {
			return filtered
		}
	}
	return defaults
}
