package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"ejournal/internal/core/version"
	"ejournal/internal/modkit"
	phttp "ejournal/internal/platform/net/http"
	"ejournal/internal/platform/net/middleware"
	"ejournal/internal/platform/store/migrate"
	"ejournal/internal/services/gradesync/domain"
	gsmod "ejournal/internal/services/gradesync/module"
	"ejournal/migrations"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           version.Service,
		Short:         "Push eJournal grades to LMS gradebooks over LTI 1.1 and LTI 1.3",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newWorkerCmd(),
		newServeCmd(),
		newMigrateCmd(),
		newSendCmd(),
		newVersionCmd(),
	)
	return root
}

// moduleFlags binds the CLI overrides shared by commands that build the module
func moduleFlags(cmd *cobra.Command, o *gsmod.Options) {
	f := cmd.Flags()
	f.StringVar(&o.BaseURL, "base-url", "", "public eJournal origin for deep links (GRADESYNC_BASE_URL)")
	f.IntVar(&o.GroupConcurrency, "concurrency", 0, "dispatch groups sent at once (GRADESYNC_GROUP_CONCURRENCY)")
	f.Float64Var(&o.RatePerSec, "rps", 0, "outbound LMS requests per second, 0 = unlimited (GRADESYNC_RPS)")
}

func newWorkerCmd() *cobra.Command {
	var o gsmod.Options
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Lease queued grade syncs and send them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := boot(ctx, true)
			if err != nil {
				return err
			}
			defer a.close()

			ports := mustPorts(gsmod.New(a.deps(), o))
			return ignoreCanceled(ports.Worker.Run(ctx))
		},
	}
	moduleFlags(cmd, &o)
	cmd.Flags().DurationVar(&o.PollEvery, "poll-every", 0, "queue poll interval (GRADESYNC_POLL_EVERY)")
	cmd.Flags().IntVar(&o.QueueTakeBatch, "batch", 0, "jobs leased per poll (GRADESYNC_QUEUE_TAKE_BATCH)")
	return cmd
}

func newServeCmd() *cobra.Command {
	var (
		o          gsmod.Options
		withWorker bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ops HTTP API (enqueue, job status, health)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := boot(ctx, true)
			if err != nil {
				return err
			}
			defer a.close()

			m := gsmod.New(a.deps(), o)
			srv := phttp.NewServer(a.cfg.Prefix("GRADESYNC_"), func(mux *chi.Mux) {
				mux.Use(
					middleware.RequestID(),
					middleware.RealIP(),
					middleware.RecoverJSON(a.alert),
					middleware.AccessLogZerolog(middleware.AccessLogOptions{Slow: time.Second}),
				)
			})
			modkit.MountAll(srv.Router(), m)

			p := pool.New().WithContext(ctx).WithCancelOnError()
			p.Go(srv.Run)
			if withWorker {
				p.Go(mustPorts(m).Worker.Run)
			}
			return ignoreCanceled(p.Wait())
		},
	}
	moduleFlags(cmd, &o)
	cmd.Flags().BoolVar(&withWorker, "with-worker", false, "also run the queue worker in this process")
	cmd.Flags().BoolVar(&o.InlineSync, "inline-sync", false, "mount POST /v1/gradesync/sync (GRADESYNC_INLINE_SYNC)")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate up|down",
		Short:     "Apply the embedded migrations, or revert the latest one",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(migrate.Up), string(migrate.Down)},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := boot(ctx, false)
			if err != nil {
				return err
			}
			defer a.close()

			r := migrate.Runner{
				DSN:    a.cfg.Prefix("SERVICE_PGSQL_").MustString("DBURL"),
				Source: migrations.FS,
				Meter:  a.meter,
			}
			v, err := r.Run(ctx, migrate.Direction(args[0]))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
			return err
		},
	}
}

func newSendCmd() *cobra.Command {
	var (
		o       gsmod.Options
		enqueue bool
	)
	cmd := &cobra.Command{
		Use:   "send <request.json|->",
		Short: "Run one grade sync from a JSON SyncRequest and print the results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			req, err := readRequest(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}

			a, err := boot(ctx, true)
			if err != nil {
				return err
			}
			defer a.close()
			ports := mustPorts(gsmod.New(a.deps(), o))

			if enqueue {
				id, err := ports.Jobs.Enqueue(ctx, req)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), map[string]string{"id": id})
			}

			batch, err := ports.Sync.Sync(ctx, req)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), batch); err != nil {
				return err
			}
			if n := batch.Count(domain.OutcomeFailed); n > 0 {
				return fmt.Errorf("%d of %d grade sends failed", n, len(batch.Results))
			}
			return nil
		},
	}
	moduleFlags(cmd, &o)
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "queue the request for the worker instead of sending inline")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeJSON(cmd.OutOrStdout(), version.Info())
		},
	}
}

func mustPorts(m *gsmod.Module) gsmod.Ports {
	p, ok := modkit.PortsAs[gsmod.Ports](m)
	if !ok {
		panic("gradesync module exposes no Ports")
	}
	return p
}

// readRequest decodes a SyncRequest from path, "-" meaning stdin
func readRequest(path string, stdin io.Reader) (domain.SyncRequest, error) {
	var req domain.SyncRequest
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return req, fmt.Errorf("read request: %w", err)
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("decode request %s: %w", path, err)
	}
	if len(req.Recipients) == 0 {
		return req, errors.New("request has no recipients")
	}
	return req, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
