// Package di provides dependency injection for scheduler jobs.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/qrepeater/internal/config"
	"github.com/aristath/qrepeater/internal/modules/sweep"
	"github.com/aristath/qrepeater/internal/scheduler"
)

// RegisterJobs creates the scheduler and registers the maintenance job and,
// when SWEEP_SCHEDULE is set, the scheduled sweep. The scheduler is not
// started here.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	container.Scheduler = scheduler.New(log)
	instances := &JobInstances{
		Maintenance: scheduler.NewMaintenanceJob(log, container.DB),
	}

	if cfg.Sweep.MaintenanceSchedule != "" {
		if err := container.Scheduler.AddJob(cfg.Sweep.MaintenanceSchedule, instances.Maintenance); err != nil {
			return nil, err
		}
	}

	if cfg.Sweep.Schedule != "" {
		plan, err := sweep.LoadPlan(cfg.Sweep.PlanFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load scheduled sweep plan: %w", err)
		}

		var exporter sweep.Exporter
		if container.Archive != nil {
			exporter = container.Archive
		}
		instances.ScheduledSweep = sweep.NewJob(container.SweepRunner, plan, exporter, cfg.Sweep.Timeout)

		if err := container.Scheduler.AddJob(cfg.Sweep.Schedule, instances.ScheduledSweep); err != nil {
			return nil, err
		}
	}

	return instances, nil
}
