package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/eventify-trnc/eventify/internal/domain/event"
	"github.com/eventify-trnc/eventify/internal/domain/job"
	"github.com/eventify-trnc/eventify/internal/domain/registration"
	"github.com/eventify-trnc/eventify/internal/queue/redisclient"
)

type JobsRepo interface {
	Create(ctx context.Context, req job.CreateRequest) (job.Job, error)
}

// Producer enqueues follow-up work for a successful reservation. Jobs
// live in postgres (source of truth); the redis nudge only wakes the
// worker early, so losing it costs latency, not the job.
type Producer struct {
	repo      JobsRepo
	queue     *redisclient.Client
	log       *slog.Logger
	isDupe    func(error) bool
}

func NewProducer(repo JobsRepo, queue *redisclient.Client, log *slog.Logger, isDupe func(error) bool) *Producer {
	if isDupe == nil {
		isDupe = func(error) bool { return false }
	}
	return &Producer{repo: repo, queue: queue, log: log, isDupe: isDupe}
}

func (p *Producer) EnqueueRegistrationConfirmation(ctx context.Context, reg registration.Registration, ev event.Event) error {
	primary := reg.Participants[0]

	raw, err := RegistrationConfirmationPayload{
		RegistrationID: reg.ID,
		EventID:        ev.ID,
		Email:          primary.Email,
		Name:           primary.Name,
		RequestedAt:    time.Now().UTC(),
	}.JSON()
	if err != nil {
		return err
	}

	key := "registration:confirm:" + reg.ID

	return p.enqueue(ctx, job.CreateRequest{
		Type:           TypeRegistrationConfirmation,
		Payload:        raw,
		RunAt:          time.Now().UTC(),
		MaxAttempts:    10,
		IdempotencyKey: &key,
	})
}

// EnqueueEventReminder schedules a reminder for the day before the
// event starts. Events starting within a day get no reminder.
func (p *Producer) EnqueueEventReminder(ctx context.Context, reg registration.Registration, ev event.Event) error {
	start, err := ev.StartAt()
	if err != nil {
		return err
	}

	runAt := start.Add(-24 * time.Hour)
	if runAt.Before(time.Now()) {
		return nil
	}

	primary := reg.Participants[0]

	raw, err := EventReminderPayload{
		RegistrationID: reg.ID,
		EventID:        ev.ID,
		Email:          primary.Email,
		Name:           primary.Name,
	}.JSON()
	if err != nil {
		return err
	}

	key := "registration:remind:" + reg.ID

	return p.enqueue(ctx, job.CreateRequest{
		Type:           TypeEventReminder,
		Payload:        raw,
		RunAt:          runAt,
		MaxAttempts:    10,
		IdempotencyKey: &key,
	})
}

func (p *Producer) enqueue(ctx context.Context, req job.CreateRequest) error {
	created, err := p.repo.Create(ctx, req)
	if err != nil {
		if p.isDupe(err) {
			return nil // already enqueued for this registration
		}
		return err
	}

	if p.queue != nil {
		if err := p.queue.Nudge(ctx, created.ID); err != nil {
			// worker will pick it up on the next poll anyway
			p.log.Warn("job nudge failed", "job_id", created.ID, "err", err)
		}
	}

	return nil
}
