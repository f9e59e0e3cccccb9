package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eventify-trnc/eventify/internal/domain/job"
	"github.com/eventify-trnc/eventify/internal/observability"
)

// Handler processes one claimed job of a given type.
type Handler func(ctx context.Context, j job.Job) error

type JobsRepository interface {
	ClaimNext(ctx context.Context, workerID string) (job.Job, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, reason string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, reason string) error
	RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error)
}

// Nudger wakes the worker when the producer enqueues a job, so we don't
// have to rely on the poll ticker alone.
type Nudger interface {
	WaitForNudge(ctx context.Context, timeout time.Duration) (string, error)
}

type Config struct {
	WorkerID     string
	PollInterval time.Duration
	LockTTL      time.Duration
}

type Worker struct {
	cfg      Config
	repo     JobsRepository
	nudger   Nudger
	handlers map[string]Handler
	log      *slog.Logger
	prom     *observability.Prom
}

func New(cfg Config, repo JobsRepository, nudger Nudger, log *slog.Logger, prom *observability.Prom) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}

	return &Worker{
		cfg:      cfg,
		repo:     repo,
		nudger:   nudger,
		handlers: make(map[string]Handler),
		log:      log,
		prom:     prom,
	}
}

func (w *Worker) Register(jobType string, h Handler) {
	w.handlers[jobType] = h
}

func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	staleTicker := time.NewTicker(w.cfg.LockTTL)
	defer staleTicker.Stop()

	// Blocking nudge reads run in their own goroutine; the main loop only
	// reacts to wake-ups and ticks.
	nudges := make(chan struct{}, 1)
	if w.nudger != nil {
		go w.listenForNudges(ctx, nudges)
	}

	for {
		select {
		case <-ctx.Done():
			w.log.InfoContext(ctx, "worker received shutdown signal")
			return nil

		case <-staleTicker.C:
			n, err := w.repo.RequeueStaleProcessing(ctx, w.cfg.LockTTL)
			if err != nil {
				w.log.ErrorContext(ctx, "requeue stale jobs failed", "error", err)
			} else if n > 0 {
				w.log.WarnContext(ctx, "requeued stale jobs", "count", n)
			}

		case <-nudges:
			w.drain(ctx)

		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

func (w *Worker) listenForNudges(ctx context.Context, nudges chan<- struct{}) {
	for {
		if ctx.Err() != nil {
			return
		}

		_, err := w.nudger.WaitForNudge(ctx, 30*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.WarnContext(ctx, "nudge wait failed", "error", err)
			time.Sleep(time.Second)
			continue
		}

		select {
		case nudges <- struct{}{}:
		default:
		}
	}
}

// drain processes jobs until the queue is empty.
func (w *Worker) drain(ctx context.Context) {
	for {
		processed, err := w.ProcessOne(ctx)
		if err != nil {
			w.log.ErrorContext(ctx, "process job failed", "error", err)
			return
		}
		if !processed {
			return
		}
	}
}

// ProcessOne claims and runs a single job. It returns false when the
// queue had nothing ready.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	j, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			return false, nil
		}
		return false, err
	}

	w.log.InfoContext(ctx, "claimed job",
		"job_id", j.ID, "type", j.Type, "attempt", j.Attempts, "locked_by", w.cfg.WorkerID)

	err = w.execute(ctx, j)

	if err != nil {
		w.handleFailure(ctx, j, err)
		return true, nil
	}

	if w.prom != nil {
		w.prom.JobResults.WithLabelValues(j.Type, "done").Inc()
	}

	if err := w.repo.MarkDone(ctx, j.ID); err != nil {
		_ = w.repo.MarkFailed(ctx, j.ID, "mark_done_failed: "+err.Error())
		return true, err
	}

	return true, nil
}

func (w *Worker) execute(ctx context.Context, j job.Job) error {
	h, ok := w.handlers[j.Type]
	if !ok {
		return fmt.Errorf("no handler registered for job type %q", j.Type)
	}

	start := time.Now()
	if w.prom != nil {
		w.prom.JobsInFlight.Inc()
		defer w.prom.JobsInFlight.Dec()
	}

	err := h(ctx, j)

	if w.prom != nil {
		w.prom.JobDuration.WithLabelValues(j.Type).Observe(time.Since(start).Seconds())
	}
	return err
}

func (w *Worker) handleFailure(ctx context.Context, j job.Job, cause error) {
	// Attempts counts previous tries; the one that just failed makes it +1.
	if j.Attempts+1 >= j.MaxAttempts {
		w.log.ErrorContext(ctx, "job exhausted retries",
			"job_id", j.ID, "type", j.Type, "attempts", j.Attempts, "error", cause)

		if w.prom != nil {
			w.prom.JobResults.WithLabelValues(j.Type, "failed").Inc()
		}
		if err := w.repo.MarkFailed(ctx, j.ID, cause.Error()); err != nil {
			w.log.ErrorContext(ctx, "mark failed errored", "job_id", j.ID, "error", err)
		}
		return
	}

	delay := ExponentialBackoff(j.Attempts)
	runAt := time.Now().UTC().Add(delay)

	w.log.WarnContext(ctx, "job failed, rescheduling",
		"job_id", j.ID, "type", j.Type, "attempt", j.Attempts, "retry_in", delay.String(), "error", cause)

	if w.prom != nil {
		w.prom.JobResults.WithLabelValues(j.Type, "retried").Inc()
	}
	if err := w.repo.Reschedule(ctx, j.ID, runAt, cause.Error()); err != nil {
		w.log.ErrorContext(ctx, "reschedule errored", "job_id", j.ID, "error", err)
	}
}
