// Package alert forwards failures an operator should see to Rollbar
package alert

import (
	"context"
	"os"

	"ejournal/internal/platform/config"
	perr "ejournal/internal/platform/errors"
	"ejournal/internal/platform/logger"

	"github.com/rollbar/rollbar-go"
)

// Reporter receives failures that need a human: panics, dead letters, misconfigured registrations
type Reporter interface {
	Report(ctx context.Context, err error, extras map[string]any)
	Close() error
}

// Options configures the Rollbar client
type Options struct {
	Token       string
	Env         string
	CodeVersion string
	Host        string
}

// FromEnv reads ROLLBAR_TOKEN and ROLLBAR_ENV; an empty token disables reporting
func FromEnv(codeVersion string) Options {
	c := config.New().Prefix("ROLLBAR_")
	host, _ := os.Hostname()
	return Options{
		Token:       c.MayString("TOKEN", ""),
		Env:         c.MayString("ENV", "development"),
		CodeVersion: codeVersion,
		Host:        host,
	}
}

// New returns a Rollbar backed Reporter, or Nop when no token is configured
func New(opt Options) Reporter {
	if opt.Token == "" {
		logger.Named("alert").Debug().Msg("rollbar disabled, no token")
		return Nop{}
	}
	c := rollbar.New(opt.Token, opt.Env, opt.CodeVersion, opt.Host, "")
	return &rollbarReporter{c: c}
}

type rollbarReporter struct{ c *rollbar.Client }

func (r *rollbarReporter) Report(ctx context.Context, err error, extras map[string]any) {
	if err == nil {
		return
	}
	r.c.ErrorWithExtrasAndContext(ctx, levelFor(err), err, withCode(err, extras))
}

func (r *rollbarReporter) Close() error { return r.c.Close() }

// Nop drops every report
type Nop struct{}

// Report does nothing
func (Nop) Report(context.Context, error, map[string]any) {}

// Close does nothing
func (Nop) Close() error { return nil }

func levelFor(err error) string {
	switch perr.CodeOf(err) {
	case perr.ErrorCodePanic:
		return rollbar.CRIT
	case perr.ErrorCodeConfig, perr.ErrorCodeUnauthorized:
		return rollbar.ERR
	default:
		return rollbar.WARN
	}
}

func withCode(err error, extras map[string]any) map[string]any {
	out := make(map[string]any, len(extras)+1)
	for k, v := range extras {
		out[k] = v
	}
	out["error_kind"] = perr.CodeOf(err).String()
	return out
}
