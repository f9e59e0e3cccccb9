package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/eventify-trnc/eventify/internal/config"
	"github.com/eventify-trnc/eventify/internal/db"
	"github.com/eventify-trnc/eventify/internal/jobs"
	"github.com/eventify-trnc/eventify/internal/notifications"
	"github.com/eventify-trnc/eventify/internal/observability"
	"github.com/eventify-trnc/eventify/internal/queue/redisclient"
	"github.com/eventify-trnc/eventify/internal/queue/worker"
	"github.com/eventify-trnc/eventify/internal/repo/postgres"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(cfg.DBURL)
	if err != nil {
		log.Error("db connect failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	prom := observability.NewProm(prometheus.NewRegistry())

	jobsRepo := postgres.NewJobsRepo(pool, prom)
	eventsRepo := postgres.NewEventsRepo(pool, prom)
	ledgerStore := postgres.NewLedgerStore(pool, prom)

	queue := redisclient.New(redisclient.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer queue.Close()

	var delivery notifications.Notifier
	if cfg.SMTPHost != "" {
		delivery = notifications.NewSMTPNotifier(notifications.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			From:     cfg.SMTPFrom,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
		})
	} else {
		delivery = notifications.NewLogNotifier(log)
	}
	notifier := notifications.NewProtectedNotifier(delivery, notifications.ProtectedNotifierConfig{})

	host, _ := os.Hostname()
	workerID := host + "-" + strconv.Itoa(os.Getpid())

	w := worker.New(worker.Config{
		WorkerID:     workerID,
		PollInterval: cfg.WorkerPollInterval,
		LockTTL:      cfg.WorkerLockTTL,
	}, jobsRepo, queue, log, prom)

	w.Register(jobs.TypeRegistrationConfirmation,
		jobs.NewRegistrationConfirmationHandler(eventsRepo, notifier))
	w.Register(jobs.TypeEventReminder,
		jobs.NewEventReminderHandler(eventsRepo, ledgerStore, notifier))

	log.Info("worker started", "worker_id", workerID)

	if err := w.Run(ctx); err != nil {
		log.Error("worker stopped with error", "error", err)
	}

	log.Info("worker shutdown complete")
}
