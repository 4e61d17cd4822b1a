package ports

import (
	"context"
	"time"

	"psephos/contexts/governance/audit-log/domain/entities"
)

// Appender writes audit entries. Append never overwrites; AppendOnce is the
// race-safe variant for singleton events such as quorum_reached, backed by a
// storage-level uniqueness guarantee rather than a read-then-write check.
type Appender interface {
	Append(ctx context.Context, entry entities.Entry) (entities.Entry, error)
	// AppendOnce writes at most one entry per (election, event type) and
	// reports whether this call created it.
	AppendOnce(ctx context.Context, entry entities.Entry) (bool, error)
}

// Reader lists entries ordered by (timestamp, id).
type Reader interface {
	ListPublic(ctx context.Context, electionID int64) ([]entities.Entry, error)
	ListAll(ctx context.Context, electionID int64) ([]entities.Entry, error)
}

type Clock interface {
	Now() time.Time
}
