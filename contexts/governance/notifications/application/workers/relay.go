package workers

import (
	"context"
	"log/slog"

	application "psephos/contexts/governance/notifications/application"
	"psephos/contexts/governance/notifications/ports"
)

// Relay drains the pending queue through the Sender. A message that fails to
// send stays pending and is retried on the next run; successes are marked
// sent immediately so a crash mid-batch never re-sends them.
type Relay struct {
	Messages  ports.MessageQueue
	Sender    ports.Sender
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

func (w Relay) RunOnce(ctx context.Context) (int, error) {
	logger := application.ResolveLogger(w.Logger)
	limit := w.BatchSize
	if limit <= 0 {
		limit = 100
	}
	pending, err := w.Messages.ListPending(ctx, limit)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, message := range pending {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if err := w.Sender.Send(ctx, message); err != nil {
			logger.Warn("notification send failed, will retry",
				"event", "notifications_relay_send_failed",
				"module", "governance/notifications",
				"layer", "worker",
				"message_id", message.ID,
				"template", message.Template,
				"error", err.Error(),
			)
			continue
		}
		if err := w.Messages.MarkSent(ctx, message.ID, w.Clock.Now()); err != nil {
			return sent, err
		}
		sent++
	}
	if sent > 0 {
		logger.Info("notification batch relayed",
			"event", "notifications_relay_batch_sent",
			"module", "governance/notifications",
			"layer", "worker",
			"sent", sent,
			"pending", len(pending)-sent,
		)
	}
	return sent, nil
}
