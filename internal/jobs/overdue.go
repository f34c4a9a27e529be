// Package jobs runs background work on asynq: the scheduled sweep that moves
// past-due bills and pledges to OVERDUE.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// TaskMarkOverdue sweeps PENDING and PARTIAL bills past their due date.
	TaskMarkOverdue = "bills:mark_overdue"
	// QueueDefault is the only queue the worker consumes.
	QueueDefault = "default"
)

// OverduePayload optionally pins the sweep instant; zero means the time the task runs.
type OverduePayload struct {
	AsOf time.Time `json:"as_of,omitempty"`
}

// NewMarkOverdueTask builds the sweep task. A zero asOf defers to the run time.
func NewMarkOverdueTask(asOf time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(OverduePayload{AsOf: asOf})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMarkOverdue, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// Sweeper is the bill service operation the job drives.
type Sweeper interface {
	MarkOverdue(ctx context.Context, asOf time.Time) (int, error)
}

// Metrics counts job outcomes.
type Metrics struct {
	runs   *prometheus.CounterVec
	marked prometheus.Counter
}

// NewMetrics registers the job collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fundledger",
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Background job runs by task and outcome.",
		}, []string{"task", "outcome"}),
		marked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fundledger",
			Subsystem: "jobs",
			Name:      "bills_marked_overdue_total",
			Help:      "Bills moved to OVERDUE by the sweep.",
		}),
	}
	reg.MustRegister(m.runs, m.marked)
	return m
}

// OverdueJob handles TaskMarkOverdue.
type OverdueJob struct {
	bills   Sweeper
	now     func() time.Time
	logger  *slog.Logger
	metrics *Metrics
}

// NewOverdueJob wires the sweep. now and metrics may be nil.
func NewOverdueJob(bills Sweeper, now func() time.Time, logger *slog.Logger, metrics *Metrics) *OverdueJob {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OverdueJob{bills: bills, now: now, logger: logger, metrics: metrics}
}

// Handle runs one sweep. A malformed payload is not retried.
func (j *OverdueJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload OverduePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			j.observe("invalid", 0)
			return fmt.Errorf("decode %s payload: %v: %w", TaskMarkOverdue, err, asynq.SkipRetry)
		}
	}
	asOf := payload.AsOf
	if asOf.IsZero() {
		asOf = j.now()
	}
	n, err := j.bills.MarkOverdue(ctx, asOf)
	if err != nil {
		j.observe("error", n)
		j.logger.Error("overdue sweep failed", "as_of", asOf, "marked", n, "err", err)
		return err
	}
	j.observe("ok", n)
	j.logger.Info("overdue sweep complete", "as_of", asOf, "marked", n)
	return nil
}

func (j *OverdueJob) observe(outcome string, marked int) {
	if j.metrics == nil {
		return
	}
	j.metrics.runs.WithLabelValues(TaskMarkOverdue, outcome).Inc()
	j.metrics.marked.Add(float64(marked))
}
