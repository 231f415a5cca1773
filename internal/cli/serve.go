package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oaubike/relay/internal/api"
	"github.com/oaubike/relay/internal/config"
	"github.com/oaubike/relay/internal/control"
	"github.com/oaubike/relay/internal/netstate"
	"github.com/oaubike/relay/internal/notify"
	"github.com/oaubike/relay/internal/proxy"
	"github.com/oaubike/relay/internal/queue"
	"github.com/oaubike/relay/internal/store"
	"github.com/oaubike/relay/internal/syncer"
)

// shutdownGrace bounds how long in-flight requests get on shutdown.
const shutdownGrace = 5 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	ListenAddr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay daemon",
		Long: `Run the relay daemon.

The daemon opens the local queue database, precaches the app shell from
the backend, and serves the app on the listen address. Failed location
updates and emergency alerts are queued and drained in the background.

Example:
  bikerelay serve
  bikerelay serve --config relay.yaml --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ListenAddr, "listen", "", "listen address (overrides config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	log := setupLogging(opts.Verbose)

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.ListenAddr != "" {
		cfg.ListenAddr = opts.ListenAddr
	}

	log.Info("opening queue database", "path", cfg.DBPath)
	handle := store.NewHandle(cfg.DBPath)
	st, err := handle.Open()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := handle.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	if evicted, err := st.EvictStaleCaches(ctx, cfg.CacheName); err != nil {
		log.Warn("stale cache eviction failed", "error", err)
	} else if evicted > 0 {
		log.Info("evicted stale cache entries", "count", evicted, "current", cfg.CacheName)
	}

	queues := queue.New(handle, log)
	client, err := api.New(cfg.BackendURL, cfg.RequestTimeout.Std())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid backend url", err)
	}
	notifier := notify.NewLog(log)
	sync := syncer.New(queues, client, notifier, handle, cfg.CacheName, log)

	// A regained connection triggers an immediate drain instead of
	// waiting out the periodic interval.
	tracker := netstate.New(func() {
		go func() {
			if err := sync.SyncAll(ctx); err != nil {
				log.Warn("reconnect sync aborted", "error", err)
			}
		}()
	}, log)

	dispatcher := control.NewDispatcher(sync, tracker.Online, handle.Ready, nil, log)

	srv, err := proxy.New(proxy.Config{
		BackendURL:     cfg.BackendURL,
		Queues:         queues,
		Store:          handle,
		Tracker:        tracker,
		Notifier:       notifier,
		Dispatcher:     dispatcher,
		CacheName:      cfg.CacheName,
		RequestTimeout: cfg.RequestTimeout.Std(),
		Log:            log,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build relay", err)
	}

	srv.Precache(cfg.Precache)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	go sync.RunPeriodic(ctx, cfg.SyncInterval.Std())

	httpSrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer shutdownCancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown error", "error", err)
		}
	}()

	log.Info("relay started", "listen", cfg.ListenAddr, "backend", cfg.BackendURL)
	fmt.Fprintf(cmd.OutOrStdout(), "Relay listening on %s (backend %s)\n", cfg.ListenAddr, cfg.BackendURL)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return WrapExitError(ExitFailure, "relay error", err)
	}

	log.Info("relay stopped gracefully")
	return nil
}
