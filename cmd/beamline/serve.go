package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpAdapter "github.com/aretw0/beamline/pkg/adapters/http"
	"github.com/aretw0/beamline/pkg/runner"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Exposes the beamline over HTTP: devices, plans, synchronous runs, recorded runs,
abort, a server-sent event stream of documents and Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = a.exp.Server.Addr
		}

		// Signals abort the run through the server shutdown below.
		r := a.runner(runner.WithSignals(false))
		server := httpAdapter.NewServer(a.engine, r,
			httpAdapter.WithStore(a.store),
			httpAdapter.WithLogger(a.logger),
			httpAdapter.WithMetrics(a.metrics),
		)
		defer server.Close()

		srv := &http.Server{
			Addr:    addr,
			Handler: server,
		}

		serverErrors := make(chan error, 1)
		go func() {
			a.logger.Info("Starting beamline server", "addr", addr, "experiment", a.exp.Name)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		case sig := <-shutdown:
			a.logger.Info("Start shutdown", "signal", sig.String())
			a.engine.Abort("server shutting down")

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				a.logger.Error("Graceful shutdown did not complete", "err", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("error killing server: %w", err)
				}
			}
			a.logger.Info("Beamline server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (defaults to server.addr of the experiment)")
}
