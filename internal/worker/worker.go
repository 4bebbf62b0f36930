package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/companion-engine/internal/engine"
	"github.com/robfig/cron/v3"
)

const (
	// DefaultSchedule runs a cycle at :00, :15, :30 and :45
	DefaultSchedule = "0 */15 * * * *"
	// DefaultCycleTimeout bounds a single cycle
	DefaultCycleTimeout = 10 * time.Minute
)

// CycleRunner runs one automation cycle
type CycleRunner interface {
	RunCycle(ctx context.Context) (*engine.CycleSummary, error)
}

// Worker runs story automation cycles on a cron schedule
type Worker struct {
	id       string
	runner   CycleRunner
	cron     *cron.Cron
	entry    cron.EntryID
	schedule string
	timeout  time.Duration
	log      *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a worker; schedule uses six fields (seconds first)
func New(runner CycleRunner, log *slog.Logger, workerID, schedule string, timeout time.Duration) (*Worker, error) {
	ctx, cancel := context.WithCancel(context.Background())

	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if timeout <= 0 {
		timeout = DefaultCycleTimeout
	}

	cronLog := cronLogger{log: log.With("worker_id", workerID)}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	w := &Worker{
		id:       workerID,
		runner:   runner,
		cron:     c,
		schedule: schedule,
		timeout:  timeout,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}

	entry, err := c.AddFunc(schedule, w.RunOnce)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("invalid cycle schedule %q: %w", schedule, err)
	}
	w.entry = entry

	return w, nil
}

// ID returns the worker id
func (w *Worker) ID() string {
	return w.id
}

// Start runs the scheduler and blocks until Stop is called
func (w *Worker) Start() error {
	w.log.Info("Worker starting", "worker_id", w.id, "schedule", w.schedule)
	w.cron.Start()
	w.log.Info("Next story cycle scheduled", "worker_id", w.id, "at", w.Next())

	<-w.ctx.Done()

	w.log.Info("Worker shutting down, waiting for running cycle", "worker_id", w.id)
	<-w.cron.Stop().Done()
	w.log.Info("Worker stopped", "worker_id", w.id)
	return nil
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.log.Info("Worker stop requested", "worker_id", w.id)
	w.cancel()
}

// Next returns when the next cycle is due; zero before Start
func (w *Worker) Next() time.Time {
	return w.cron.Entry(w.entry).Next
}

// RunOnce runs a single cycle bounded by the cycle timeout
func (w *Worker) RunOnce() {
	ctx, cancel := context.WithTimeout(w.ctx, w.timeout)
	defer cancel()

	summary, err := w.runner.RunCycle(ctx)
	switch {
	case errors.Is(err, engine.ErrCycleInProgress):
		w.log.Info("Story cycle skipped", "worker_id", w.id, "reason", err.Error())
	case err != nil:
		w.log.Error("Story cycle failed", "worker_id", w.id, "error", err)
	case summary != nil:
		w.log.Debug("Story cycle finished",
			"worker_id", w.id,
			"processed", summary.Processed,
			"triggered", summary.Triggered)
	}
}

// cronLogger adapts slog to the cron.Logger interface
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
