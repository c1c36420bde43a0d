package middleware

import (
	stdhttp "net/http"
	"runtime/debug"

	"ejournal/internal/platform/alert"
	perr "ejournal/internal/platform/errors"
	"ejournal/internal/platform/logger"
	phttp "ejournal/internal/platform/net/http"
)

// RecoverJSON converts panics into the standard JSON error envelope,
// logs the stack and forwards the panic to rep
func RecoverJSON(rep alert.Reporter) func(stdhttp.Handler) stdhttp.Handler {
	if rep == nil {
		rep = alert.Nop{}
	}
	return func(next stdhttp.Handler) stdhttp.Handler {
		return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == stdhttp.ErrAbortHandler {
					panic(v)
				}
				err := perr.PanicErrf("panic recovered: %v", v)
				logger.C(r.Context()).Error().
					Interface("panic", v).
					Str("stack", string(debug.Stack())).
					Msg("panic recovered")
				rep.Report(r.Context(), err, map[string]any{"method": r.Method, "path": r.URL.Path})
				phttp.RespondError(w, r, perr.PanicErrf("internal error"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
