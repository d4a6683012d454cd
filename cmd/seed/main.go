package main

import (
	"context"
	"flag"
	"time"

	"github.com/rs/zerolog/log"
	"stealthcompany.com/patientpanel/internal/config"
	"stealthcompany.com/patientpanel/internal/couchbase"
	"stealthcompany.com/patientpanel/internal/patient"
	"stealthcompany.com/patientpanel/internal/seed"
	"stealthcompany.com/patientpanel/pkg/zerolog_config"
)

func main() {
	count := flag.Int("count", 24, "number of demo patients to create")
	source := flag.String("url", "", "fetch raw patient documents from this URL instead of generating demo ones")
	flag.Parse()

	if *count < 0 {
		log.Fatal().Int("count", *count).Msg("-count must not be negative")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Initialize zerolog
	zerolog_config.SetAppPrefix("patient-seed")
	if err := zerolog_config.StartupWithEnv(cfg.ElasticsearchURL, "logs", cfg.LogLevel); err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}

	log.Info().Msg("Starting patient-seed")

	// Initialize Couchbase connection
	dbClient, err := couchbase.NewClient(cfg.Couchbase)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Couchbase")
	}
	defer dbClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	seeder := seed.NewSeeder(dbClient.Collection(), 30*time.Second)

	var records []patient.NewRecordInput
	if *source != "" {
		records, err = seeder.FetchDocuments(ctx, *source)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to fetch seed documents")
		}
	} else {
		records = seed.DemoPatients(*count)
	}

	// Lock the collection before seeding
	locker := dbClient.GetLocker()
	if held, owner, err := locker.CheckLockStatus(); err == nil && held {
		log.Fatal().Str("owner", owner).Msg("Another seeder holds the lock")
	}

	log.Info().Msg("Locking collection for seeding")
	if err := locker.Lock(); err != nil {
		log.Fatal().Err(err).Msg("Failed to lock collection")
	}

	res, seedErr := seeder.Seed(ctx, records)

	log.Info().Msg("Unlocking collection after seeding")
	if err := locker.Unlock(); err != nil {
		log.Error().Err(err).Msg("Failed to unlock collection")
	}

	if seedErr != nil {
		log.Fatal().Err(seedErr).Msg("Seeding interrupted")
	}

	log.Info().
		Int("stored", res.Stored).
		Int("failed", res.Failed).
		Msg("Patient seeding completed successfully")
}
