package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type fakeSweeper struct {
	calls []time.Time
	n     int
	err   error
}

func (f *fakeSweeper) MarkOverdue(_ context.Context, asOf time.Time) (int, error) {
	f.calls = append(f.calls, asOf)
	return f.n, f.err
}

var fixed = time.Date(2025, 7, 1, 6, 0, 0, 0, time.UTC)

func newJob(s Sweeper) (*OverdueJob, *Metrics) {
	m := NewMetrics(prometheus.NewRegistry())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewOverdueJob(s, func() time.Time { return fixed }, logger, m), m
}

func TestOverdueUsesRunTimeByDefault(t *testing.T) {
	s := &fakeSweeper{n: 3}
	job, m := newJob(s)
	task, err := NewMarkOverdueTask(time.Time{})
	require.NoError(t, err)
	require.Equal(t, TaskMarkOverdue, task.Type())

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []time.Time{fixed}, s.calls)
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(TaskMarkOverdue, "ok")))
	require.Equal(t, 3.0, testutil.ToFloat64(m.marked))
}

func TestOverduePinnedAsOf(t *testing.T) {
	s := &fakeSweeper{}
	job, _ := newJob(s)
	asOf := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	task, err := NewMarkOverdueTask(asOf)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, s.calls, 1)
	require.True(t, s.calls[0].Equal(asOf))
}

func TestOverdueMalformedPayloadSkipsRetry(t *testing.T) {
	s := &fakeSweeper{}
	job, m := newJob(s)
	err := job.Handle(context.Background(), asynq.NewTask(TaskMarkOverdue, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Empty(t, s.calls)
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(TaskMarkOverdue, "invalid")))
}

func TestOverdueErrorIsReturned(t *testing.T) {
	boom := errors.New("db down")
	job, m := newJob(&fakeSweeper{err: boom})
	err := job.Handle(context.Background(), asynq.NewTask(TaskMarkOverdue, nil))
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(TaskMarkOverdue, "error")))
}

func TestWorkerRequiresJob(t *testing.T) {
	_, err := NewWorker(WorkerConfig{})
	require.Error(t, err)
}
