package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Reminder tells a user that messages are waiting for them.
type Reminder struct {
	UserID      string    `json:"user_id"`
	UnreadCount int64     `json:"unread_count"`
	OlderThan   time.Time `json:"older_than"`
}

// Notifier delivers unread reminders to an external channel.
type Notifier interface {
	NotifyUnread(ctx context.Context, reminder Reminder) error
}

// New returns a webhook notifier when webhookURL is set and a log notifier otherwise.
func New(webhookURL string, timeout time.Duration, log zerolog.Logger) Notifier {
	if webhookURL == "" {
		return NewLogNotifier(log)
	}
	return NewWebhookNotifier(webhookURL, timeout, log)
}

// WebhookNotifier POSTs reminders as JSON to a notification service.
type WebhookNotifier struct {
	client *resty.Client
	url    string
	log    zerolog.Logger
}

func NewWebhookNotifier(url string, timeout time.Duration, log zerolog.Logger) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "messaging-api")
	return &WebhookNotifier{
		client: client,
		url:    url,
		log:    log.With().Str("component", "webhook-notifier").Logger(),
	}
}

type webhookPayload struct {
	Event string `json:"event"`
	Reminder
}

func (n *WebhookNotifier) NotifyUnread(ctx context.Context, reminder Reminder) error {
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(webhookPayload{Event: "unread_messages", Reminder: reminder}).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("send unread reminder: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("notification webhook returned %d: %s", resp.StatusCode(), resp.String())
	}
	n.log.Debug().Str("user_id", reminder.UserID).Int64("unread", reminder.UnreadCount).Msg("reminder delivered")
	return nil
}

// LogNotifier writes reminders to the log.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With().Str("component", "log-notifier").Logger()}
}

func (n *LogNotifier) NotifyUnread(_ context.Context, reminder Reminder) error {
	n.log.Info().
		Str("user_id", reminder.UserID).
		Int64("unread", reminder.UnreadCount).
		Msg("unread messages waiting")
	return nil
}
