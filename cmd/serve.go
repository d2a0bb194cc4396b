package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scu-nlp/scu-crawler/internal/api"
	"github.com/scu-nlp/scu-crawler/internal/service"
	"github.com/scu-nlp/scu-crawler/internal/storage/sqlite"
)

// newServeCmd runs the HTTP service layer: crawl triggers, status, and
// metrics.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the crawler HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			history, err := sqlite.Open(cfg.Storage.DBDir)
			if err != nil {
				return fmt.Errorf("open run history: %w", err)
			}
			defer func() {
				if cerr := history.Close(); cerr != nil {
					logger.Warn("close run history failed", zap.Error(cerr))
				}
			}()

			runner := service.NewCrawlRunner(cfg, logger)
			server := api.NewServer(runner, history, cfg, logger)

			httpServer := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
				Handler:           server.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("http server listening", zap.Int("port", cfg.Server.Port))
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown http server: %w", err)
			}
			logger.Info("http server stopped")
			return nil
		},
	}
}
