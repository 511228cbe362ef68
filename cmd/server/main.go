package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kamikazebr/therapy-records/internal/server/api"
	"github.com/kamikazebr/therapy-records/internal/server/services"
	"github.com/kamikazebr/therapy-records/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:   "therapy-server",
	Short: "Therapy device record server",
	Long:  "HTTP API and admin tooling for CPAP/APAP/BiPAP device accounts and therapy-session records",
	// Default to serve command if no subcommand provided
	Run: func(cmd *cobra.Command, args []string) {
		runServe(cmd, args)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Run:   runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Current(serviceName))
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, adminCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) {
	a, err := newApp(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	logger := a.logger
	logger.Info("starting", version.Current(serviceName).Fields()...)

	// Write an initial snapshot so consumers find a file on disk
	if snap, err := a.snapshots.Export(context.Background()); err != nil {
		logger.Warn("initial snapshot export failed", zap.Error(err))
	} else {
		logger.Info("snapshot exported", zap.String("path", a.cfg.SnapshotPath), zap.Int("count", snap.Count))
	}

	if a.cfg.JWT.Secret == "" {
		logger.Info("JWT_SECRET not set, logins will not issue tokens")
	}

	router := api.NewRouter(api.RouterConfig{
		Accounts:       a.accounts,
		Gate:           a.gate,
		Records:        a.records,
		Snapshots:      a.snapshots,
		Forwarder:      a.forwarder,
		MetricsHandler: promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
		JWTSecret:      a.cfg.JWT.Secret,
		JWTExpiration:  a.cfg.JWT.Expiration,
		RequireAuth:    a.cfg.RequireAuth,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:         a.cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Start background cleanup jobs
	go pruneExpiredLockouts(ctx, a.gate, logger)

	// Start server
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func pruneExpiredLockouts(ctx context.Context, gate *services.LoginGate, logger *zap.Logger) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := gate.PruneExpired(); n > 0 {
				logger.Debug("pruned expired lockouts", zap.Int("count", n))
			}
		}
	}
}
