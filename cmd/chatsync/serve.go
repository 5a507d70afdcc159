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

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gwi.com/chatsync/internal/api"
	"gwi.com/chatsync/internal/logger"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("port", "", "HTTP port (overrides HTTP_PORT)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP gateway over one chat session",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if port, _ := cmd.Flags().GetString("port"); port != "" {
			cfg.HTTPPort = port
		}
		if err := setupLogging(cfg, ""); err != nil {
			return err
		}
		defer logger.Sync()
		log := logger.Log

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		router := api.NewRouter(api.NewAPIHandler(a.session, cfg.APIToken, log), a.metrics.Handler())
		serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
		srv := &http.Server{
			Addr:        serverAddr,
			Handler:     router,
			ReadTimeout: 15 * time.Second,
			// No WriteTimeout: /api/events streams for as long as the client stays.
			IdleTimeout: 120 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("server_starting", zap.String("addr", serverAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
		case err := <-errCh:
			return fmt.Errorf("could not listen on %s: %w", serverAddr, err)
		}
		log.Info("server_shutting_down")

		// Close the session first so open event streams end.
		a.session.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		log.Info("server_stopped")
		return nil
	},
}
