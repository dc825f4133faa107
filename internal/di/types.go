// Package di provides dependency injection type definitions.
package di

import (
	"github.com/aristath/qrepeater/internal/database"
	"github.com/aristath/qrepeater/internal/events"
	"github.com/aristath/qrepeater/internal/modules/montecarlo"
	"github.com/aristath/qrepeater/internal/modules/simulation"
	"github.com/aristath/qrepeater/internal/modules/sweep"
	"github.com/aristath/qrepeater/internal/reliability"
	"github.com/aristath/qrepeater/internal/scheduler"
)

// Container holds all dependencies for the application.
//
// It is created by Wire() and passed to the server, which is the only
// consumer. Optional components are nil when disabled by configuration.
type Container struct {
	// Database
	DB *database.DB // simulations.db (simulation_runs, sweeps, sweep_points)

	// Repositories
	SimulationRepo *simulation.Repository
	SweepRepo      *sweep.Repository

	// Services
	EventBus    *events.Bus
	Engine      *montecarlo.Engine
	Simulator   *simulation.Simulator
	SweepRunner *sweep.Runner
	Archive     *reliability.ArchiveService // nil when ARCHIVE_BUCKET is unset

	// Background jobs
	Scheduler *scheduler.Scheduler
}

// JobInstances holds registered jobs for manual triggering via API
type JobInstances struct {
	Maintenance    *scheduler.MaintenanceJob
	ScheduledSweep *sweep.Job // nil when SWEEP_SCHEDULE is unset
}

// Close waits for background sweeps and closes the database
func (c *Container) Close() error {
	if c.SweepRunner != nil {
		c.SweepRunner.Wait()
	}
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
