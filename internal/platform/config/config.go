// Package config reads service configuration from environment variables
package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"ejournal/internal/platform/logger"
)

// Conf is a namespaced view over environment variables (e.g. "GRADESYNC_", "SERVICE_PGSQL_")
// Use New() for global access, or Prefix("GRADESYNC_") for module scopes
type Conf struct{ prefix string }

// New creates a root Conf (no prefix)
func New() Conf { return Conf{} }

// Prefix creates a child Conf with an additional prefix, e.g. cfg.Prefix("GRADESYNC_")
func (c Conf) Prefix(p string) Conf { return Conf{prefix: c.prefix + p} }

// key composes the fully-qualified env var name
func (c Conf) key(k string) string { return c.prefix + k }

// lookup returns the trimmed value for key
func (c Conf) lookup(key string) string { return strings.TrimSpace(os.Getenv(c.key(key))) }

// MustString panics if the given key is missing or empty
func (c Conf) MustString(key string) string {
	v := c.lookup(key)
	if v == "" {
		logger.Get().Panic().Str("key", c.key(key)).Msg("missing required env")
	}
	return v
}

// MustInt panics if the given key is missing, empty, or not an int
func (c Conf) MustInt(key string) int {
	s := c.MustString(key)
	v, err := strconv.Atoi(s)
	if err != nil {
		logger.Get().Panic().Str("key", c.key(key)).Str("value", s).Msg("invalid int value")
	}
	return v
}

// MustDuration panics if the given key is missing, empty, or not a valid duration
func (c Conf) MustDuration(key string) time.Duration {
	s := c.MustString(key)
	d, err := time.ParseDuration(s)
	if err != nil {
		logger.Get().Panic().Str("key", c.key(key)).Str("value", s).Msg("invalid duration (e.g., 250ms, 2s, 1h)")
	}
	return d
}

// MustURL panics if the given key is missing, empty, or not a valid absolute URL
func (c Conf) MustURL(key string) *url.URL {
	s := c.MustString(key)
	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() {
		logger.Get().Panic().Str("key", c.key(key)).Str("value", s).Msg("invalid absolute URL")
	}
	return u
}

// Require ensures that all given keys are present (non-empty). Panics otherwise
func (c Conf) Require(keys ...string) {
	for _, k := range keys {
		if c.lookup(k) == "" {
			logger.Get().Panic().Str("key", c.key(k)).Msg("missing required env")
		}
	}
}

// MayString returns the value or def if missing/empty
func (c Conf) MayString(key, def string) string {
	if v := c.lookup(key); v != "" {
		return v
	}
	return def
}

// MayInt returns the value or def if missing/empty; logs and returns def if invalid
func (c Conf) MayInt(key string, def int) int {
	s := c.lookup(key)
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Int("default", def).Msg("invalid int; using default")
	return def
}

// MayFloat64 returns the value or def if missing/empty; logs and returns def if invalid
func (c Conf) MayFloat64(key string, def float64) float64 {
	s := c.lookup(key)
	if s == "" {
		return def
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Float64("default", def).
		Msg("invalid float64; using default")
	return def
}

// MayBool returns the value or def if missing/empty; logs and returns def if invalid
func (c Conf) MayBool(key string, def bool) bool {
	s := c.lookup(key)
	if s == "" {
		return def
	}
	if v, err := strconv.ParseBool(s); err == nil {
		return v
	}
	logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Bool("default", def).Msg("invalid bool; using default")
	return def
}

// MayDuration returns the value or def if missing/empty; logs and returns def if invalid
func (c Conf) MayDuration(key string, def time.Duration) time.Duration {
	s := c.lookup(key)
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Dur("default", def).Msg("invalid duration; using default")
	return def
}

// MayURL returns the value as a string if it parses as an absolute URL; def otherwise
func (c Conf) MayURL(key, def string) string {
	s := c.lookup(key)
	if s == "" {
		return def
	}
	if u, err := url.Parse(s); err == nil && u.IsAbs() {
		return strings.TrimRight(s, "/")
	}
	logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Str("default", def).Msg("invalid URL; using default")
	return def
}

// MayPort returns a net/http addr like ":4100"; def is returned for missing or out-of-range values
func (c Conf) MayPort(key string, def int) string {
	p := c.MayInt(key, def)
	if p < 1 || p > 65535 {
		logger.Get().Warn().Str("key", c.key(key)).Int("value", p).Int("default", def).Msg("invalid TCP port; using default")
		p = def
	}
	return ":" + strconv.Itoa(p)
}

// MayEnum ensures value is one of allowed; returns def if empty; panics if invalid
func (c Conf) MayEnum(key, def string, allowed ...string) string {
	v := c.MayString(key, def)
	if v == "" {
		return v
	}
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return strings.ToLower(v)
		}
	}
	logger.Get().Panic().Str("key", c.key(key)).Str("value", v).Strs("allowed", allowed).Msg("invalid enum value")
	return ""
}
