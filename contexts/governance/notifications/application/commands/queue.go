package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	application "psephos/contexts/governance/notifications/application"
	"psephos/contexts/governance/notifications/domain/entities"
	domainerrors "psephos/contexts/governance/notifications/domain/errors"
	"psephos/contexts/governance/notifications/ports"
)

// QueueUseCase enqueues snapshotted mails and scrubs them at election close.
type QueueUseCase struct {
	Messages ports.MessageQueue
	Clock    ports.Clock
	Logger   *slog.Logger
}

func (uc QueueUseCase) Enqueue(ctx context.Context, message entities.Message) (entities.Message, error) {
	if strings.TrimSpace(message.Recipient) == "" {
		return entities.Message{}, domainerrors.ErrRecipientRequired
	}
	message.Status = entities.StatusPending
	if message.CreatedAt.IsZero() {
		message.CreatedAt = uc.Clock.Now()
	}
	queued, err := uc.Messages.Enqueue(ctx, message)
	if err != nil {
		application.ResolveLogger(uc.Logger).Error("notification enqueue failed",
			"event", "notifications_enqueue_failed",
			"module", "governance/notifications",
			"layer", "application",
			"election_id", message.ElectionID,
			"template", message.Template,
			"error", err.Error(),
		)
		return entities.Message{}, err
	}
	return queued, nil
}

// ReceiptNotice carries the ledger receipt a web layer hands back to the
// voter by mail after a successful ballot submission.
type ReceiptNotice struct {
	ElectionID   int64
	ElectionName string
	Recipient    string
	BallotID     int64
	ContentHash  string
	ChainHash    string
	Nonce        string
}

// EnqueueReceipt snapshots a ballot-receipt mail carrying the hashes the
// voter needs to find their ballot in the published export. Like every queued
// message it is scrubbed when the election closes.
func (uc QueueUseCase) EnqueueReceipt(ctx context.Context, notice ReceiptNotice) (entities.Message, error) {
	contextJSON, err := json.Marshal(map[string]any{
		"election_name": notice.ElectionName,
		"ballot_id":     notice.BallotID,
		"content_hash":  notice.ContentHash,
		"chain_hash":    notice.ChainHash,
		"nonce":         notice.Nonce,
	})
	if err != nil {
		return entities.Message{}, err
	}
	text := fmt.Sprintf(
		"Your ballot for %s was recorded.\n\nContent hash: %s\nChain hash: %s\nNonce: %s\n\nA new submission with your credential replaces this ballot.\n",
		notice.ElectionName, notice.ContentHash, notice.ChainHash, notice.Nonce)
	return uc.Enqueue(ctx, entities.Message{
		ElectionID: notice.ElectionID,
		Template:   entities.TemplateBallotReceipt,
		Recipient:  notice.Recipient,
		Subject:    fmt.Sprintf("Ballot receipt for %s", notice.ElectionName),
		TextBody:   text,
		Context:    contextJSON,
	})
}

// ScrubElection removes every message for the election. It runs inside the
// close transition, right next to credential anonymization.
func (uc QueueUseCase) ScrubElection(ctx context.Context, electionID int64) (int64, error) {
	removed, err := uc.Messages.ScrubElection(ctx, electionID)
	if err != nil {
		return 0, err
	}
	application.ResolveLogger(uc.Logger).Info("notification queue scrubbed",
		"event", "notifications_scrubbed",
		"module", "governance/notifications",
		"layer", "application",
		"election_id", electionID,
		"removed", removed,
	)
	return removed, nil
}
