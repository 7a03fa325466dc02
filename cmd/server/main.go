/*
main.go - HTTP server entry point

PURPOSE:
  Initializes and starts the inventory engine server: configuration,
  dependency injection, graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (defaults -> inventory.yaml -> INVENTORY_* env)
  2. Build the logger
  3. Open the snapshot store selected by store.backend
  4. Construct the inventory service
  5. Start the HTTP server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests (http.shutdown_timeout)
  3. Close the store
  4. Exit

STORE BACKENDS:
  file      JSON data file + flock + timestamped backups (default)
  sqlite    versioned snapshot rows in SQLite
  postgres  versioned JSONB rows, advisory-lock writer exclusion
  memory    volatile, for demos

SEE ALSO:
  - api/server.go: router configuration
  - config/config.go: the knobs and their defaults
*/
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/warp/inventory-engine/api"
	"github.com/warp/inventory-engine/config"
	"github.com/warp/inventory-engine/inventory"
	"github.com/warp/inventory-engine/logger"
	"github.com/warp/inventory-engine/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("load configuration: " + err.Error())
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty || cfg.App.Env == "development")
	log.Info().Str("env", cfg.App.Env).Str("backend", cfg.Store.Backend).Msg("starting inventory engine")

	ctx := context.Background()
	st, closeStore, err := store.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open snapshot store")
	}
	defer closeStore()

	svc, err := inventory.New(st, log, inventory.Config{UnlimitedNames: cfg.Ledger.UnlimitedNames})
	if err != nil {
		log.Fatal().Err(err).Msg("construct service")
	}

	handler := api.NewHandler(svc, log)
	router := api.NewRouter(handler, api.RouterOptions{CORSOrigins: cfg.HTTP.CORSOrigins})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("stopped")
}
