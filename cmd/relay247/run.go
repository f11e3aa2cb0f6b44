package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/eleven-am/relay247"
	"github.com/eleven-am/relay247/internal/control"
	"github.com/eleven-am/relay247/internal/log"
	"github.com/eleven-am/relay247/internal/settings"
)

const shutdownTimeout = 10 * time.Second

func newRunCommand(opts *rootOptions) *cobra.Command {
	var listenAddr string
	var dataDir string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the relay and keep it on air until stopped",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelay(cmd.Context(), opts, listenAddr, dataDir)
		},
	}
	cmd.Flags().StringVar(&listenAddr, "listen", "127.0.0.1:8247", "control server address, empty disables it")
	cmd.Flags().StringVar(&dataDir, "data-dir", ".", "directory for the instance lock file")
	return cmd
}

func runRelay(cmdCtx context.Context, opts *rootOptions, listenAddr, dataDir string) error {
	log.Configure(log.Config{Level: opts.logLevel})
	logger := log.WithComponent("cli")

	cfg, err := settings.Load(opts.configPath)
	if err != nil {
		return err
	}

	lockPath := filepath.Join(dataDir, "relay247.lock")
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock %s: %w", lockPath, err)
	}
	if !locked {
		return fmt.Errorf("another relay instance holds %s", lockPath)
	}
	defer lock.Unlock()

	rel, err := relay247.New(relay247.Options{Config: cfg})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// After the first signal starts a graceful stop, a second one exits
	// immediately.
	go func() {
		<-ctx.Done()
		stop()
		second := make(chan os.Signal, 1)
		signal.Notify(second, syscall.SIGINT, syscall.SIGTERM)
		<-second
		logger.Warn().Msg("second signal, exiting now")
		os.Exit(1)
	}()

	var srv *control.Server
	if listenAddr != "" {
		srv = control.NewServer(control.Options{
			Addr:    listenAddr,
			Status:  rel.Status,
			Metrics: rel.MetricsHandler(),
			Stop:    rel.Stop,
			Skip:    rel.Skip,
			Logs:    rel.SubscribeLogs,
		})
		go func() {
			if err := srv.ListenAndServe(); err != nil {
				logger.Error().Err(err).Msg("control server failed")
			}
		}()
	}

	runErr := rel.Run(ctx)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("control server shutdown")
		}
	}
	return runErr
}
