package http

import (
	"context"
	"errors"
	stdhttp "net/http"
	"time"

	"ejournal/internal/platform/config"
	"ejournal/internal/platform/logger"

	"github.com/go-chi/chi/v5"
)

// Server is a thin wrapper over chi + stdlib http.Server
type Server struct {
	addr string
	mux  *chi.Mux
	srv  *stdhttp.Server
}

// NewServer creates an http server listening on <prefix>API_PORT (default :4100)
// opts receive the *chi.Mux so callers can mount routes and middleware
func NewServer(cfg config.Conf, opts ...func(*chi.Mux)) *Server {
	addr := cfg.MayPort("API_PORT", 4100)
	m := chi.NewRouter()
	for _, o := range opts {
		o(m)
	}
	return &Server{
		addr: addr,
		mux:  m,
		srv: &stdhttp.Server{
			Addr:              addr,
			Handler:           m,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Router returns a Router facade over the internal chi mux
func (s *Server) Router() Router { return AdaptChi(s.mux) }

// Addr returns the listening address
func (s *Server) Addr() string { return s.addr }

// Handler exposes the mux for httptest
func (s *Server) Handler() stdhttp.Handler { return s.mux }

// Run serves until ctx is done, then shuts down with a 10s grace period
func (s *Server) Run(ctx context.Context) error {
	log := logger.Named("http")
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.addr).Msg("http listening")
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, stdhttp.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info().Msg("http shutting down")
	if err := s.srv.Shutdown(shutCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
		return err
	}
	return nil
}
