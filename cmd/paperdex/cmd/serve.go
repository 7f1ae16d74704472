package cmd

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
	"go.uber.org/zap"

	"github.com/kailas-cloud/paperdex/internal/config"
	chiTransport "github.com/kailas-cloud/paperdex/internal/transport/chi"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), root, port)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Override http.port from config")
	return cmd
}

func runServe(ctx context.Context, root *rootOptions, port int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, root, func(c *config.Config) {
		if port > 0 {
			c.HTTP.Port = port
		}
	})
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg

	server := chiTransport.NewServer(a.indexing, a.search, a.health, a.chunks, chiTransport.Options{
		MaxBatchPapers:  cfg.HTTP.MaxBatchPapers,
		ReplaceExisting: cfg.Indexing.ReplaceExisting,
		APIKeys:         cfg.Auth.APIKeys,
	}, a.logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Routes(),
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-quit:
		a.logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Error during shutdown", zap.Error(err))
		return fmt.Errorf("shutdown: %w", err)
	}

	a.logger.Info("Server stopped gracefully")
	return nil
}
