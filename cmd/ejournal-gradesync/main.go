// Command ejournal-gradesync pushes eJournal grades to LMS gradebooks
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ejournal/internal/platform/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logger.Get().Error().Err(err).Msg("ejournal-gradesync failed")
		stop()
		os.Exit(1)
	}
}
