// Package monitoring watches the exchange backlog: the notification outbox,
// the dead letter queue and proofs awaiting review.
package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/therealutkarshpriyadarshi/watchswap/internal/logging"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/metrics"
	"github.com/therealutkarshpriyadarshi/watchswap/pkg/models"
)

// Alert thresholds
const (
	OutboxWarnDepth     = 1000
	DeadLetterCritDepth = 100
)

// Health states
const (
	HealthHealthy  = "healthy"
	HealthWarning  = "warning"
	HealthCritical = "critical"
)

// Snapshot holds the last collected backlog figures. Queue depths are -1
// when no queue is attached.
type Snapshot struct {
	OutboxDepth     int            `json:"outbox_depth"`
	DeadLetterDepth int            `json:"dead_letter_depth"`
	PendingReviews  int            `json:"pending_reviews"`
	OverdueReviews  int            `json:"overdue_reviews"`
	TasksByStatus   map[string]int `json:"tasks_by_status"`
	Swept           int64          `json:"swept_total"`
	LastUpdated     time.Time      `json:"last_updated"`
}

// TaskSource reports the task backlog
type TaskSource interface {
	ListTasksAwaitingReview(ctx context.Context) ([]*models.Task, error)
	CountTasksByStatus(ctx context.Context) (map[string]int, error)
}

// QueueProvider reports queue depths
type QueueProvider interface {
	Depth() (int, error)
	GetDLQDepth() (int, error)
}

// SweepFunc resolves a proof whose review window has closed
type SweepFunc func(ctx context.Context, taskID int64) error

// Monitor periodically collects backlog figures. A proof still awaiting
// review grace after its window closed has lost its timer and is handed to
// the sweep function.
type Monitor struct {
	mu       sync.RWMutex
	snapshot Snapshot

	tasks   TaskSource
	queue   QueueProvider
	sweep   SweepFunc
	timeout time.Duration
	grace   time.Duration
	now     func() time.Time
	logger  *logging.Logger
}

// NewMonitor creates a monitor. queue and sweep may be nil.
func NewMonitor(tasks TaskSource, queue QueueProvider, timeout, grace time.Duration, sweep SweepFunc, logger *logging.Logger) *Monitor {
	return &Monitor{
		snapshot: Snapshot{OutboxDepth: -1, DeadLetterDepth: -1},
		tasks:    tasks,
		queue:    queue,
		sweep:    sweep,
		timeout:  timeout,
		grace:    grace,
		now:      time.Now,
		logger:   logger.WithComponent("monitor"),
	}
}

// WithClock overrides the monitor's clock
func (m *Monitor) WithClock(now func() time.Time) *Monitor {
	m.now = now
	return m
}

// Start collects every interval until ctx is done
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Update(ctx); err != nil {
				m.logger.WithError(err).Warn("Failed to update backlog metrics")
			}
		}
	}
}

// Update collects the current figures and sweeps overdue reviews
func (m *Monitor) Update(ctx context.Context) error {
	awaiting, err := m.tasks.ListTasksAwaitingReview(ctx)
	if err != nil {
		metrics.RecordError("monitor", "list_reviews")
		return fmt.Errorf("failed to list pending reviews: %w", err)
	}
	counts, err := m.tasks.CountTasksByStatus(ctx)
	if err != nil {
		metrics.RecordError("monitor", "count_tasks")
		return fmt.Errorf("failed to count tasks: %w", err)
	}

	now := m.now()
	var overdue []int64
	for _, t := range awaiting {
		if now.Sub(t.UpdatedAt) > m.timeout+m.grace {
			overdue = append(overdue, t.ID)
		}
	}

	outbox, deadLetter := -1, -1
	if m.queue != nil {
		if outbox, err = m.queue.Depth(); err != nil {
			return fmt.Errorf("failed to get outbox depth: %w", err)
		}
		if deadLetter, err = m.queue.GetDLQDepth(); err != nil {
			return fmt.Errorf("failed to get dead letter depth: %w", err)
		}
	}

	var swept int64
	if m.sweep != nil {
		for _, id := range overdue {
			if err := m.sweep(ctx, id); err != nil {
				m.logger.WithTaskID(id).WithError(err).Error("Failed to resolve overdue review")
				continue
			}
			swept++
		}
		if swept > 0 {
			m.logger.Warnf("Resolved %d reviews whose timers were lost", swept)
		}
	}

	metrics.SetBacklog(outbox, deadLetter, len(awaiting), len(overdue))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot.OutboxDepth = outbox
	m.snapshot.DeadLetterDepth = deadLetter
	m.snapshot.PendingReviews = len(awaiting)
	m.snapshot.OverdueReviews = len(overdue)
	m.snapshot.TasksByStatus = counts
	m.snapshot.Swept += swept
	m.snapshot.LastUpdated = now
	return nil
}

// Snapshot returns a copy of the last collected figures
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.snapshot
	s.TasksByStatus = make(map[string]int, len(m.snapshot.TasksByStatus))
	for k, v := range m.snapshot.TasksByStatus {
		s.TasksByStatus[k] = v
	}
	return s
}

// Health summarizes the snapshot as healthy, warning or critical
func (m *Monitor) Health() string {
	s := m.Snapshot()
	switch {
	case s.DeadLetterDepth > DeadLetterCritDepth:
		return HealthCritical
	case s.OutboxDepth > OutboxWarnDepth, s.OverdueReviews > 0:
		return HealthWarning
	default:
		return HealthHealthy
	}
}

// Alerts describes every threshold the snapshot crosses
func (m *Monitor) Alerts() []string {
	s := m.Snapshot()
	alerts := []string{}

	if s.DeadLetterDepth > DeadLetterCritDepth {
		alerts = append(alerts, fmt.Sprintf("High dead letter depth: %d notifications", s.DeadLetterDepth))
	}
	if s.OutboxDepth > OutboxWarnDepth {
		alerts = append(alerts, fmt.Sprintf("High outbox depth: %d notifications pending", s.OutboxDepth))
	}
	if s.OverdueReviews > 0 {
		alerts = append(alerts, fmt.Sprintf("Overdue reviews: %d proofs past their review window", s.OverdueReviews))
	}
	return alerts
}
