package worker

// notification_worker.go
// Processes notification jobs from QueueNotifications: posts them to the
// notification sidecar through the circuit breaker, and additionally emails
// "general" notices when the recipient looks like an address. Delivery is
// best-effort — a failed job lands in the DLQ for manual inspection, never
// back on the caller.

import (
	"context"
	"encoding/json"
	"strings"

	"fieldops/internal/dto"
	"fieldops/internal/infra"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// NotificationWorker delivers queued notifications to the sidecar.
type NotificationWorker struct {
	notifier *infra.NotifierClient
	mailer   *infra.Mailer
	cb       *infra.CircuitBreaker
	rdb      *redis.Client
}

func NewNotificationWorker(notifier *infra.NotifierClient, mailer *infra.Mailer, cb *infra.CircuitBreaker, rdb *redis.Client) *NotificationWorker {
	return &NotificationWorker{notifier: notifier, mailer: mailer, cb: cb, rdb: rdb}
}

// Process delivers one notification job.
func (w *NotificationWorker) Process(ctx context.Context, raw json.RawMessage) {
	var job dto.NotificationJob
	if err := json.Unmarshal(raw, &job); err != nil {
		log.Error().Err(err).Msg("notification_worker: invalid payload")
		return
	}

	var err error
	switch job.Kind {
	case "general":
		err = w.cb.Execute(func() error {
			return w.notifier.SendGeneralNotification(ctx, job.Recipient, job.Title, job.Description, job.Priority, job.Type)
		})
		// Email-shaped recipients also get the notice directly.
		if strings.Contains(job.Recipient, "@") {
			if mailErr := w.mailer.SendNotice(job.Recipient, job.Title, job.Description); mailErr != nil {
				log.Warn().Err(mailErr).Str("recipient", job.Recipient).Msg("notification_worker: email notice failed")
			}
		}
	default:
		err = w.cb.Execute(func() error {
			return w.notifier.CreateNotification(ctx, infra.CreateNotificationPayload{
				Title:       job.Title,
				Description: job.Description,
				Priority:    job.Priority,
				SourceID:    job.SourceID,
				Time:        job.Time,
			})
		})
	}

	if err != nil {
		SendToDLQ(ctx, w.rdb, QueueNotifications, "notification", raw, err.Error(), 1)
		return
	}
	log.Info().Str("kind", job.Kind).Str("title", job.Title).Msg("notification_worker: delivered")
}
