package ports

import (
	"context"
	"time"

	"psephos/contexts/governance/notifications/domain/entities"
)

type MessageQueue interface {
	Enqueue(ctx context.Context, message entities.Message) (entities.Message, error)
	// ListPending returns pending messages oldest first, capped at limit.
	ListPending(ctx context.Context, limit int) ([]entities.Message, error)
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	// ScrubElection deletes every message for the election, sent or not, and
	// returns the count. Called from the close transition so no
	// identity-to-credential side channel survives anonymization.
	ScrubElection(ctx context.Context, electionID int64) (int64, error)
	ListByElection(ctx context.Context, electionID int64) ([]entities.Message, error)
}

// Sender delivers one snapshotted message. The core decides when and with
// what data to send; rendering and transport details end here.
type Sender interface {
	Send(ctx context.Context, message entities.Message) error
}

type Clock interface {
	Now() time.Time
}
