package main

import (
	"context"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"stealthcompany.com/patientpanel/internal/api"
	"stealthcompany.com/patientpanel/internal/config"
	"stealthcompany.com/patientpanel/internal/couchbase"
	"stealthcompany.com/patientpanel/internal/docstore"
	"stealthcompany.com/patientpanel/internal/metrics"
	"stealthcompany.com/patientpanel/internal/orchestrator"
	"stealthcompany.com/patientpanel/internal/presenter"
	"stealthcompany.com/patientpanel/internal/recordstore"
	"stealthcompany.com/patientpanel/internal/seed"
	"stealthcompany.com/patientpanel/internal/toast"
	"stealthcompany.com/patientpanel/pkg/zerolog_config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Set app prefix
	zerolog_config.SetAppPrefix("patient-panel")

	// Initialize zerolog with Elasticsearch
	if err := zerolog_config.StartupWithEnv(cfg.ElasticsearchURL, "logs", cfg.LogLevel); err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}

	log.Info().
		Str("backend", cfg.StoreBackend).
		Str("collection", cfg.Couchbase.Collection).
		Msg("Starting patient-panel service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := orchestrator.NewSignalHandler()
	defer signals.Stop()
	signals.HandleSignals(ctx, cancel)

	if cfg.EnableSystemMetrics {
		metrics.NewSystemCollector(prometheus.DefaultRegisterer, "patient-panel").
			Start(ctx, cfg.SystemMetricsInterval)
	}

	coll, closeStore := openCollection(ctx, cfg)
	defer closeStore()

	panel := presenter.NewPanel(recordstore.New(coll), toast.NewBoard(toast.DefaultTTL))
	server := api.NewServer(panel)

	sm := orchestrator.NewServiceManager(panel, server.SetupRoutes())
	if err := sm.StartPanelService(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start record subscription")
	}

	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		log.Fatal().Err(err).Str("port", cfg.Port).Msg("Failed to listen")
	}
	log.Info().
		Str("port", cfg.Port).
		Msg("Server starting")
	sm.StartAPIService(ln)

	if err := sm.WaitForServices(ctx); err != nil {
		log.Error().Err(err).Msg("Service exited with error")
	}
	log.Info().Msg("Server exited")
}

// openCollection connects the configured backend. The memory backend is
// filled with demo records so the panel has something to show.
func openCollection(ctx context.Context, cfg config.Config) (docstore.Collection, func()) {
	if cfg.StoreBackend == config.BackendMemory {
		coll := docstore.NewMemoryCollection(cfg.Couchbase.Collection)
		if _, err := seed.NewSeeder(coll, 30*time.Second).Seed(ctx, seed.DemoPatients(24)); err != nil {
			log.Fatal().Err(err).Msg("Failed to seed memory collection")
		}
		log.Info().Msg("Using in-memory patient collection")
		return coll, func() {}
	}

	dbClient, err := couchbase.NewClient(cfg.Couchbase)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Couchbase")
	}
	return dbClient.Collection(), func() {
		if err := dbClient.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close Couchbase connection")
		}
	}
}
