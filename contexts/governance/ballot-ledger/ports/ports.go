package ports

import (
	"context"
	"time"

	"psephos/contexts/governance/ballot-ledger/domain/entities"
)

// AppendResult is the outcome of one chained insert. Superseded is non-nil
// when a prior final row for the credential was linked forward in the same
// transaction.
type AppendResult struct {
	Ballot     entities.Ballot
	Superseded *entities.Ballot
}

// BallotRepository is the only code allowed to write the ballot table. Append
// serializes per credential (row lock or equivalent) so two submissions under
// the same credential never observe the same previous row, while distinct
// credentials do not contend.
type BallotRepository interface {
	// Append inserts the draft, linking it to the credential's chain head
	// (or the election genesis) and superseding the prior final row, all in
	// one transaction.
	Append(ctx context.Context, draft entities.Draft) (AppendResult, error)
	// CountedBallots returns the counted rows for an election, id ascending.
	CountedBallots(ctx context.Context, electionID int64) ([]entities.Ballot, error)
	// ListByElection returns every row for an election, id ascending,
	// superseded rows included.
	ListByElection(ctx context.Context, electionID int64) ([]entities.Ballot, error)
	// CountedWeight sums the weight of counted rows.
	CountedWeight(ctx context.Context, electionID int64) (int64, error)
}

// Credential is the ledger's read-model view of a voting credential.
type Credential struct {
	ElectionID int64
	PublicID   string
	Weight     int64
	Anonymized bool
}

// CredentialResolver is supplied by the credentials module.
type CredentialResolver interface {
	Resolve(ctx context.Context, electionID int64, publicID string) (Credential, bool, error)
	// TotalWeight sums the weight of every credential issued for the
	// election, the quorum denominator.
	TotalWeight(ctx context.Context, electionID int64) (int64, error)
}

// ElectionInfo is the ledger's view of one election, supplied by the
// lifecycle module.
type ElectionInfo struct {
	ID            int64
	Status        string
	Start         time.Time
	End           time.Time
	QuorumPercent int64
	CandidateIDs  []int64
}

// ElectionStatusOpen is the only status that accepts ballots.
const ElectionStatusOpen = "open"

type ElectionGate interface {
	VotingContext(ctx context.Context, electionID int64) (ElectionInfo, error)
	// VerifiableElectionIDs lists elections whose chains the verification
	// sweep should re-walk (any non-deleted election that has ballots).
	VerifiableElectionIDs(ctx context.Context) ([]int64, error)
}

type Clock interface {
	Now() time.Time
}
