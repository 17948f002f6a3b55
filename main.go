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
	"go.uber.org/zap"

	"api_ventas/api"
	"api_ventas/internal/config"
	"api_ventas/internal/logging"
	"api_ventas/internal/sales"
	"api_ventas/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error trying to start server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, closeStore, err := store.OpenSales(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("failed to close store", zap.Error(err))
		}
	}()

	mapper, err := sales.NewMapper(cfg.VendorLocation())
	if err != nil {
		return err
	}
	salesService := sales.NewService(storage, mapper, logger.Named("sales"),
		sales.WithMaxLimit(cfg.MaxPageLimit),
		sales.WithStoreTimeout(cfg.StoreTimeout),
	)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	api.InitRoutes(r, salesService, logger.Named("http"), api.RouterConfig{
		CORSOrigins:  cfg.CORSOrigins,
		WebhookRate:  cfg.WebhookRateLimit,
		WebhookBurst: cfg.WebhookRateBurst,
		MaxBodyBytes: api.DefaultMaxBodyBytes,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.StoreTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting",
			zap.String("address", server.Addr),
			zap.String("store_driver", cfg.StoreDriver),
		)
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

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
