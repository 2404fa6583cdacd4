package crontab

import (
	"context"
	"sync"
	"time"

	"github.com/mileusna/crontab"
	"github.com/rs/zerolog"

	"moveon-server/services/messaging-api/internal/config"
	"moveon-server/services/messaging-api/internal/domain/message"
	"moveon-server/services/messaging-api/internal/infrastructure/metrics"
	"moveon-server/services/messaging-api/internal/infrastructure/notifier"
	"moveon-server/services/messaging-api/internal/infrastructure/observability"
	"moveon-server/services/messaging-api/internal/utils/platformerrors"
)

const (
	CronJobTimeout        = 5 * time.Minute
	maxConcurrentNotifies = 8
)

// PresenceChecker reports whether a user currently has a live connection.
type PresenceChecker interface {
	IsOnline(userID string) bool
}

// Crontab schedules the unread reminder job. The job only reads ledger state.
type Crontab struct {
	ctab     *crontab.Crontab
	ledger   message.Service
	presence PresenceChecker
	notifier notifier.Notifier
	jobs     *observability.JobInstrumenter
	cfg      *config.Config
	log      zerolog.Logger
}

func NewCrontab(
	ledger message.Service,
	presence PresenceChecker,
	n notifier.Notifier,
	cfg *config.Config,
	log zerolog.Logger,
) *Crontab {
	return &Crontab{
		ctab:     crontab.New(),
		ledger:   ledger,
		presence: presence,
		notifier: n,
		jobs:     observability.NewJobInstrumenter(cfg.ServiceName),
		cfg:      cfg,
		log:      log.With().Str("component", "unread-reminder").Logger(),
	}
}

// Run schedules the jobs and blocks until ctx is cancelled.
func (c *Crontab) Run(ctx context.Context) error {
	if !c.cfg.UnreadReminderEnabled {
		c.log.Info().Msg("unread reminders disabled")
		<-ctx.Done()
		return nil
	}

	if err := c.ctab.AddJob(c.cfg.UnreadReminderCron, func() {
		jobCtx, cancel := context.WithTimeout(ctx, CronJobTimeout)
		defer cancel()
		err := c.jobs.Track(jobCtx, "unread_reminder", func(ctx context.Context) error {
			_, err := c.RemindUnread(ctx)
			return err
		})
		if err != nil {
			c.log.Error().Err(err).Msg("unread reminder run failed")
		}
	}); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to add unread reminder job")
	}
	c.log.Info().Str("schedule", c.cfg.UnreadReminderCron).Msg("unread reminder scheduled")

	<-ctx.Done()
	c.ctab.Shutdown()
	return nil
}

// RemindUnread notifies offline users whose unread messages are older than the
// configured age and returns how many reminders were delivered.
func (c *Crontab) RemindUnread(ctx context.Context) (int, error) {
	minAge := c.cfg.UnreadReminderMinAge
	recipients, err := c.ledger.UsersWithUnread(ctx, minAge, c.cfg.UnreadReminderBatch)
	if err != nil {
		return 0, err
	}
	if len(recipients) == 0 {
		return 0, nil
	}

	cutoff := time.Now().UTC().Add(-minAge)
	sem := make(chan struct{}, maxConcurrentNotifies)
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		delivered int
	)

	for _, recipient := range recipients {
		if c.presence != nil && c.presence.IsOnline(recipient.UserID) {
			metrics.RecordReminder("skipped_online")
			continue
		}

		wg.Add(1)
		go func(r message.UnreadRecipient) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			err := c.notifier.NotifyUnread(ctx, notifier.Reminder{
				UserID:      r.UserID,
				UnreadCount: r.Count,
				OlderThan:   cutoff,
			})
			if err != nil {
				metrics.RecordReminder("failed")
				c.log.Warn().Err(err).Str("user_id", r.UserID).Msg("unread reminder failed")
				return
			}
			metrics.RecordReminder("sent")
			mu.Lock()
			delivered++
			mu.Unlock()
		}(recipient)
	}
	wg.Wait()

	c.log.Info().Int("candidates", len(recipients)).Int("delivered", delivered).Msg("unread reminder run completed")
	return delivered, nil
}
