// Package main is the entry point for the stockledger portfolio service.
// It tracks per-user stock positions and an append-only transaction history,
// prices them with Alpha Vantage market data and serves the result over HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/stockledger/internal/config"
	"github.com/aristath/stockledger/internal/di"
	"github.com/aristath/stockledger/internal/server"
	"github.com/aristath/stockledger/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting stockledger")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, _, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	// Stops the scheduler and closes the databases
	defer container.Close()

	srv := server.New(server.Config{
		Log:              log,
		LedgerDB:         container.LedgerDB,
		ClientDataDB:     container.ClientDataDB,
		PortfolioHandler: container.PortfolioHandler,
		LedgerHandler:    container.LedgerHandler,
		Metrics:          container.Metrics,
		Budget:           container.AlphaVantage,
		Jobs:             container.Scheduler,
		DataDir:          cfg.DataDir,
		Port:             cfg.Port,
		DevMode:          cfg.DevMode,
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	container.Scheduler.Start()
	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down server...")
	case err := <-serverErr:
		log.Error().Err(err).Msg("HTTP server failed")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
