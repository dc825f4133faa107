package server

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/qrepeater/internal/events"
)

// StatusMonitor periodically publishes a SystemStatus event for stream clients
type StatusMonitor struct {
	bus            *events.Bus
	systemHandlers *SystemHandlers
	log            zerolog.Logger

	// Track previous state; an unchanged status is not re-published
	last *events.SystemStatusData
}

// NewStatusMonitor creates a new status monitor
func NewStatusMonitor(bus *events.Bus, systemHandlers *SystemHandlers, log zerolog.Logger) *StatusMonitor {
	return &StatusMonitor{
		bus:            bus,
		systemHandlers: systemHandlers,
		log:            log.With().Str("component", "status_monitor").Logger(),
	}
}

// Start begins periodic status monitoring until ctx is cancelled
func (m *StatusMonitor) Start(ctx context.Context, interval time.Duration) {
	go m.monitor(ctx, interval)
}

// monitor runs the periodic monitoring loop
func (m *StatusMonitor) monitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Do initial check
	m.checkStatus(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkStatus(ctx)
		}
	}
}

// checkStatus publishes the current status when it differs from the last one.
// CPU and memory always move, so only the counters are compared.
func (m *StatusMonitor) checkStatus(ctx context.Context) {
	snapshot, err := m.systemHandlers.GetSystemStatusSnapshot(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("Status snapshot incomplete")
	}

	data := &events.SystemStatusData{
		CPUPercent:    snapshot.CPUPercent,
		MemoryPercent: snapshot.MemoryPercent,
		Runs:          snapshot.Runs,
		Sweeps:        snapshot.Sweeps,
		Subscribers:   snapshot.Subscribers,
	}

	if m.last != nil &&
		m.last.Runs == data.Runs &&
		m.last.Sweeps == data.Sweeps &&
		m.last.Subscribers == data.Subscribers {
		return
	}
	m.last = data
	m.bus.Emit("status_monitor", data)
}
