package action

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/clavis/clavis/internal/workflow"
)

// Monitor is the periodic SLA scanner. Each tick it takes a point-in-time
// read of every action carrying a deadline, broadcasts sla_overdue to the
// owning department channel for each overdue one, and a single sla_check
// summary to the status channel when any were found. Iteration failures
// are logged and the loop continues; it holds no lock across the scan.
type Monitor struct {
	repo     Repository
	views    *ViewSource
	hub      Hub
	interval time.Duration
	log      zerolog.Logger
}

func NewMonitor(repo Repository, views *ViewSource, hub Hub, interval time.Duration, log zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Monitor{repo: repo, views: views, hub: hub, interval: interval, log: log}
}

// Run blocks until ctx is cancelled. Each iteration either completes its
// broadcasts or is abandoned whole; cancellation between ticks is clean.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.log.Info().Dur("interval", m.interval).Msg("sla monitor started")
	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("sla monitor stopped")
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			if overdue, err := m.Scan(ctx); err != nil {
				m.log.Error().Err(err).Msg("sla scan failed")
			} else if overdue > 0 {
				m.log.Warn().Int("overdue", overdue).Msg("sla scan found overdue actions")
			}
		}
	}
}

// Scan performs one sweep and returns the number of overdue actions.
func (m *Monitor) Scan(ctx context.Context) (int, error) {
	actions, err := m.repo.ListWithDeadlines(ctx)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	overdue := 0
	for _, a := range actions {
		terminal, err := m.views.customTerminal(ctx, a)
		if err != nil {
			m.log.Warn().Err(err).Stringer("action_id", a.ID).Msg("sla scan: action skipped")
			continue
		}
		routed := a.Routed()
		if !workflow.IsOverdue(routed, terminal, a.SLADeadline, now) {
			continue
		}
		overdue++

		dept := workflow.PrimaryQueueDepartment(routed, terminal)
		m.hub.BroadcastDepartment(dept, map[string]interface{}{
			"event":         "sla_overdue",
			"action_id":     a.ID.String(),
			"patient_id":    a.PatientID.String(),
			"current_state": a.CurrentState,
			"timestamp":     now.Format(time.RFC3339),
		})
	}

	if overdue > 0 {
		m.hub.BroadcastStatus(map[string]interface{}{
			"event":         "sla_check",
			"overdue_count": overdue,
			"timestamp":     now.Format(time.RFC3339),
		})
	}
	return overdue, nil
}
