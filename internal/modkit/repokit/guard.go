package repokit

import (
	"context"
	"time"

	perr "ejournal/internal/platform/errors"
)

const readyTimeout = 5 * time.Second

// Guarder is anything that can prove its backends answer, such as *store.Store
type Guarder interface {
	Guard(context.Context) error
}

// Ready checks g before a command starts using it.
// Without a caller deadline the check gives up after five seconds
func Ready(ctx context.Context, name string, g Guarder) error {
	if g == nil {
		return perr.Configf("%s: not configured", name)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, readyTimeout)
		defer cancel()
	}
	if err := g.Guard(ctx); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "%s not ready", name)
	}
	return nil
}
