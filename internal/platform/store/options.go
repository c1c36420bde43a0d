package store

import (
	"ejournal/internal/platform/logger"
)

// Option mutates Store during Open
type Option func(*Store) error

// WithLogger sets the logger used by subclients
func WithLogger(log logger.Logger) Option {
	return func(s *Store) error {
		s.Log = log
		return nil
	}
}

// WithPG installs an already opened seam, bypassing openPG (tests, CLI one-shots)
func WithPG(tx TxRunner) Option {
	return func(s *Store) error {
		s.PG = tx
		return nil
	}
}
