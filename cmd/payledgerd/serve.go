package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/goliatone/go-payledger/httpapi"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(opts *rootOptions) *cobra.Command {
	var (
		addr    string
		migrate bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the webhook endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer application.Close()

			if migrate && application.client != nil {
				if err := runMigrations(ctx, application.config, application.client); err != nil {
					return err
				}
			}

			cfg := application.config
			if addr == "" {
				addr = cfg.HTTP.Addr
			}
			serverOpts := []httpapi.Option{
				httpapi.WithLogger(application.logger),
				httpapi.WithMaxBodyBytes(cfg.HTTP.MaxBodyBytes),
				httpapi.WithUnsupportedStatus(cfg.Webhook.UnsupportedProductStatus),
			}
			if application.metrics != nil {
				serverOpts = append(serverOpts, httpapi.WithMetricsHandler(application.metrics.Handler()))
			}
			server := &http.Server{
				Addr:              addr,
				Handler:           httpapi.NewServer(application.service, serverOpts...).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			return listenAndServe(ctx, server, application)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to http.addr)")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply database migrations before serving")
	return cmd
}

func listenAndServe(ctx context.Context, server *http.Server, application *app) error {
	errCh := make(chan error, 1)
	go func() {
		application.logger.Info("payledgerd listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	application.logger.Info("payledgerd shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
