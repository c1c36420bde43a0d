package pg

import (
	"context"
	"fmt"

	"ejournal/internal/platform/logger"

	"github.com/rs/zerolog"
)

// QueryEvent describes one statement round trip
type QueryEvent struct {
	SQL       string
	Args      any
	ElapsedUS int64
	Err       error
	Slow      bool
}

// QueryTracer receives one event per statement
type QueryTracer interface {
	OnQuery(ctx context.Context, ev QueryEvent)
}

// maxArgLen caps logged string args; registration rows carry PEM keys
const maxArgLen = 128

// Tracer returns a tracer that always prints SQL when LogSQL=true,
// independent of the process-wide root level
func Tracer(root logger.Logger) QueryTracer {
	ll := root.Level(zerolog.DebugLevel).With().Str("component", "pg").Logger()
	return &zlTracer{log: ll}
}

type zlTracer struct{ log logger.Logger }

func (z *zlTracer) OnQuery(_ context.Context, ev QueryEvent) {
	evt := z.log.Info()
	if ev.Slow {
		evt = z.log.Warn()
	}

	evt.Float64("elapsed_ms", float64(ev.ElapsedUS)/1000.0).
		Bool("slow", ev.Slow).
		Str("sql", compact(ev.SQL)).
		Interface("args", clip(ev.Args)).
		Err(ev.Err).
		Msg("pg query")
}

// clip shortens long string and byte args so secrets and blobs stay out of logs
func clip(args any) any {
	list, ok := args.([]any)
	if !ok {
		return args
	}
	out := make([]any, len(list))
	for i, a := range list {
		switch v := a.(type) {
		case string:
			if len(v) > maxArgLen {
				out[i] = fmt.Sprintf("<%d chars>", len(v))
				continue
			}
		case []byte:
			out[i] = fmt.Sprintf("<%d bytes>", len(v))
			continue
		}
		out[i] = a
	}
	return out
}

func compact(s string) string {
	out := make([]rune, 0, len(s))
	space := false
	for _, r := range s {
		if r == '\n' || r == '\t' || r == '\r' || r == ' ' {
			if !space {
				out = append(out, ' ')
				space = true
			}
			continue
		}
		space = false
		out = append(out, r)
	}
	return string(out)
}
