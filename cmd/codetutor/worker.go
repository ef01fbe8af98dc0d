package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/codetutor/internal/lifecycle"
	"github.com/michaelbrown/codetutor/internal/metrics"
	"github.com/michaelbrown/codetutor/internal/transport"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Serve requests over stdin/stdout (default)",
	Long: `Read one JSON request per stdin line and write JSON envelopes to stdout.

A "ready" envelope is written once the worker accepts requests and a
"shutdown" envelope when it is terminated by a signal. Logs go to stderr.`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	a, err := newApp(os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	conn := transport.NewConn(os.Stdin, os.Stdout)

	ctl := lifecycle.New(context.Background(), conn, lifecycle.WithLogger(a.logger))
	ctl.Start()
	defer ctl.Stop()

	if a.cfg.Metrics.Addr != "" {
		stop := serveMetrics(a.cfg.Metrics.Addr, a)
		defer stop()
	}

	a.logger.Info("IPC server has started")
	srv := transport.NewServer(conn, a.encoder(), a.dispatcher, a.logger)
	if err := srv.Serve(ctl.Context()); err != nil {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}

// serveMetrics exposes /metrics on addr in the background.
func serveMetrics(addr string, a *app) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server stopped", "error", err)
		}
	}()
	a.logger.Info("metrics listening", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}
