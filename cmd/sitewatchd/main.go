// sitewatchd is the management service: it persists site configurations
// and scan executions in SQLite and exposes them over an HTTP API,
// running scans as background jobs.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sitewatch/sitewatch/internal/api"
	"github.com/sitewatch/sitewatch/internal/database"
	"github.com/sitewatch/sitewatch/internal/netutil"
	"github.com/sitewatch/sitewatch/pkg/handlers"
	"github.com/sitewatch/sitewatch/pkg/scan"
)

const version = "1.0.0"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})

	cfg := LoadConfig()

	log.Info().Str("path", cfg.DBPath).Msg("Initializing database")
	repo, err := database.NewSQLiteRepository(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer repo.Close()

	registry, err := handlers.NewRegistry()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build device registry")
	}

	scanner := scan.NewScanner(registry,
		scan.WithProber(netutil.NewProber(netutil.WithProbeConcurrency(cfg.ProbeConcurrency))),
		scan.WithFetchConcurrency(cfg.FetchConcurrency),
	)
	scanService := api.NewScanService(repo, scanner)

	router := mux.NewRouter()
	api.NewSiteHandler(repo).RegisterRoutes(router)
	api.NewScanHandler(repo, scanService).RegisterRoutes(router)
	api.NewStatusHandler(version).RegisterRoutes(router)

	corsMiddleware := gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins(cfg.AllowedOrigins),
		gorillahandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorillahandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      gorillahandlers.CombinedLoggingHandler(os.Stdout, corsMiddleware(router)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-signalChan
	log.Info().Str("signal", sig.String()).Msg("Received termination signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	log.Info().Msg("Shutting down HTTP server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
}
