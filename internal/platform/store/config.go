package store

import (
	"time"

	"ejournal/internal/platform/config"
)

// Config aggregates per backend configuration
type Config struct {
	AppName string

	PG PGConfig
}

// PGConfig configures postgres connectivity and tracing
type PGConfig struct {
	Enabled     bool
	URL         string
	MaxConns    int32
	LogSQL      bool
	SlowQueryMs int

	// boot knobs
	ConnectRetries int           // default 20
	PingTimeout    time.Duration // default 3s
}

// ConfigFromEnv reads SERVICE_PGSQL_* into a Config
// SERVICE_PGSQL_DBURL is required; the rest have defaults
func ConfigFromEnv(appName string) Config {
	c := config.New().Prefix("SERVICE_PGSQL_")
	return Config{
		AppName: appName,
		PG: PGConfig{
			Enabled:        true,
			URL:            c.MustString("DBURL"),
			MaxConns:       int32(c.MayInt("MAX_CONNS", 8)),
			LogSQL:         c.MayBool("LOG_SQL", false),
			SlowQueryMs:    c.MayInt("SLOW_MS", 250),
			ConnectRetries: c.MayInt("CONNECT_RETRIES", 20),
			PingTimeout:    c.MayDuration("PING_TIMEOUT", 3*time.Second),
		},
	}
}
