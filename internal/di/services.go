// Package di provides service initialization functions.
package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/qrepeater/internal/config"
	"github.com/aristath/qrepeater/internal/events"
	"github.com/aristath/qrepeater/internal/modules/link"
	"github.com/aristath/qrepeater/internal/modules/montecarlo"
	"github.com/aristath/qrepeater/internal/modules/simulation"
	"github.com/aristath/qrepeater/internal/modules/sweep"
	"github.com/aristath/qrepeater/internal/reliability"
)

// InitializeRepositories creates the repositories over the container's database
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container.DB == nil {
		return fmt.Errorf("database not initialized")
	}

	container.SimulationRepo = simulation.NewRepository(container.DB.Conn(), log)
	container.SweepRepo = sweep.NewRepository(container.DB.Conn(), log)
	return nil
}

// InitializeServices creates the simulator, sweep runner, event bus and,
// when a bucket is configured, the archive service.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.EventBus = events.NewBus(log)

	container.Engine = montecarlo.NewEngine(cfg.Simulation.Workers)
	container.Simulator = simulation.NewSimulator(
		link.DefaultModel(),
		container.Engine,
		cfg.Simulation.MaxTrials,
		log,
	)
	container.Simulator.SetDefaultSeed(cfg.Simulation.Seed)

	container.SweepRunner = sweep.NewRunner(container.Simulator, container.SweepRepo, container.EventBus, log)

	if cfg.Archive.Enabled() {
		uploader, err := reliability.NewS3Uploader(context.Background(), reliability.S3Config{
			Endpoint:  cfg.Archive.Endpoint,
			Bucket:    cfg.Archive.Bucket,
			Region:    cfg.Archive.Region,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
		})
		if err != nil {
			return fmt.Errorf("failed to create archive uploader: %w", err)
		}
		container.Archive = reliability.NewArchiveService(container.SweepRepo, uploader, container.EventBus, log)
		log.Info().Str("bucket", cfg.Archive.Bucket).Msg("Sweep archiving enabled")
	}

	log.Info().
		Int("workers", container.Engine.Workers()).
		Int("max_trials", cfg.Simulation.MaxTrials).
		Msg("Services initialized")
	return nil
}
