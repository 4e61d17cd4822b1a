package ports

import (
	"context"
	"time"

	"psephos/contexts/governance/credentials/domain/entities"
)

// CredentialRepository stores voting credentials. Create returns ErrConflict
// on a uniqueness violation so the issue path can retry its read-then-write.
type CredentialRepository interface {
	Create(ctx context.Context, credential entities.Credential) (entities.Credential, error)
	GetByVoter(ctx context.Context, electionID int64, voterRef string) (entities.Credential, bool, error)
	// GetByPublicID locks the row for the duration of the surrounding
	// transaction where the dialect supports it.
	GetByPublicID(ctx context.Context, electionID int64, publicID string) (entities.Credential, bool, error)
	UpdateWeight(ctx context.Context, id int64, weight int64) error
	// AnonymizeElection clears every voter reference for the election in a
	// single batch update and returns the affected count. Irreversible.
	AnonymizeElection(ctx context.Context, electionID int64) (int64, error)
	TotalWeight(ctx context.Context, electionID int64) (int64, error)
	ListByElection(ctx context.Context, electionID int64) ([]entities.Credential, error)
	// Transact runs fn against a repository bound to one transaction; any
	// error rolls the whole batch back.
	Transact(ctx context.Context, fn func(repo CredentialRepository) error) error
}

type Clock interface {
	Now() time.Time
}
