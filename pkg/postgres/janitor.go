package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Janitor prunes aged rows on a cron schedule: sent-log entries past their
// retention and intents that were drafted but never sent.
type Janitor struct {
	store *Store
	cron  *cron.Cron
	log   *slog.Logger

	schedule      string
	sentRetention time.Duration
	intentMaxAge  time.Duration
	runTimeout    time.Duration
}

// JanitorOption configures a Janitor.
type JanitorOption func(*Janitor)

// WithSchedule sets the cron schedule. Default: 03:00 daily.
func WithSchedule(spec string) JanitorOption {
	return func(j *Janitor) { j.schedule = spec }
}

// WithSentRetention sets how long sent-log rows are kept. Default: 90 days.
func WithSentRetention(d time.Duration) JanitorOption {
	return func(j *Janitor) { j.sentRetention = d }
}

// WithIntentMaxAge sets how long unsent intents survive. Default: 30 days.
func WithIntentMaxAge(d time.Duration) JanitorOption {
	return func(j *Janitor) { j.intentMaxAge = d }
}

// WithJanitorLogger sets the logger. Defaults to a discard logger.
func WithJanitorLogger(log *slog.Logger) JanitorOption {
	return func(j *Janitor) { j.log = log }
}

// NewJanitor creates a janitor for the store.
func NewJanitor(store *Store, opts ...JanitorOption) *Janitor {
	j := &Janitor{
		store:         store,
		cron:          cron.New(),
		log:           slog.New(slog.DiscardHandler),
		schedule:      "0 3 * * *",
		sentRetention: 90 * 24 * time.Hour,
		intentMaxAge:  30 * 24 * time.Hour,
		runTimeout:    5 * time.Minute,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Start registers the cleanup job and starts the scheduler.
func (j *Janitor) Start() error {
	if _, err := j.cron.AddFunc(j.schedule, j.run); err != nil {
		return err
	}
	j.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running cleanup to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

func (j *Janitor) run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.runTimeout)
	defer cancel()

	now := time.Now()

	sent, err := j.store.PurgeSentBefore(ctx, now.Add(-j.sentRetention))
	if err != nil {
		j.log.ErrorContext(ctx, "failed to purge sent log", slog.String("error", err.Error()))
	}
	intents, err := j.store.PurgeIntentsBefore(ctx, now.Add(-j.intentMaxAge))
	if err != nil {
		j.log.ErrorContext(ctx, "failed to purge abandoned intents", slog.String("error", err.Error()))
	}

	j.log.InfoContext(ctx, "cleanup finished",
		slog.Int64("sent_rows_purged", sent),
		slog.Int64("intents_purged", intents))
}
