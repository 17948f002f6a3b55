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

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"api_ventas/internal/config"
	"api_ventas/internal/dashboard"
	"api_ventas/internal/logging"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile, addr, apiBase string
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Serve the sales dashboard over the Query Service",
		Long: `Serve the sales dashboard.

Examples:
  dashboard --api-base http://localhost:3000/api
  dashboard --addr :8080`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadDashboard(envFile)
			if apiBase != "" && cfg != nil {
				cfg.APIBase = apiBase
				err = cfg.Validate()
			}
			if err != nil {
				return err
			}
			if addr == "" {
				addr = ":" + cfg.Port
			}
			return serve(cmd.Context(), cfg, addr)
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file to read before the environment")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address; defaults to :DASHBOARD_PORT")
	cmd.Flags().StringVar(&apiBase, "api-base", "", "Query Service base URL; defaults to DASHBOARD_API_BASE")
	return cmd
}

func serve(ctx context.Context, cfg *config.Dashboard, addr string) error {
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := dashboard.NewAPIClient(cfg.APIBase, cfg.RequestTimeout, logger.Named("query"))
	defer func() { _ = client.Close() }()

	loc := cfg.Location()
	dash := dashboard.New(client, loc, logger.Named("dashboard"))
	format := dashboard.NewFormatter(cfg.Locale, cfg.CurrencyDigits, loc)

	gin.SetMode(gin.ReleaseMode)
	router, err := dashboard.NewRouter(dash, format, dashboard.ServerConfig{
		DefaultLimit: cfg.DefaultLimit,
		LoadTimeout:  cfg.RequestTimeout,
	}, logger.Named("http"))
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Dashboard starting", zap.String("address", addr), zap.String("api_base", cfg.APIBase))
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
