package ports

import (
	"context"
	"encoding/json"
	"time"

	"psephos/contexts/governance/lifecycle/domain/entities"
	"psephos/contexts/governance/meek-tally/domain/meek"
)

// ElectionRepository persists elections and their setup. Transition updates
// are conditional on the expected current status, so a lost race surfaces as
// ErrIllegalTransition instead of a silent double-apply.
type ElectionRepository interface {
	Create(ctx context.Context, election entities.Election) (entities.Election, error)
	Get(ctx context.Context, id int64) (entities.Election, error)
	// Transition moves id from 'from' to 'to' and applies the mutation, all
	// conditionally on the row still being in 'from'.
	Transition(ctx context.Context, id int64, from, to entities.Status, mutate func(*entities.Election)) (entities.Election, error)
	SetEnd(ctx context.Context, id int64, end time.Time) error
	// FinalizeTally wins the closed-to-tallied transition and stores the
	// result; losers get ErrIllegalTransition. Artifact refs land separately
	// once publishing succeeds.
	FinalizeTally(ctx context.Context, id int64, result json.RawMessage) (entities.Election, error)
	SetArtifactRefs(ctx context.Context, id int64, ballotsRef, auditLogRef string) (entities.Election, error)
	ListOpenPastEnd(ctx context.Context, now time.Time) ([]entities.Election, error)
	ListClosedPastEnd(ctx context.Context, now time.Time) ([]entities.Election, error)
	// ListActiveIDs returns every non-deleted election id.
	ListActiveIDs(ctx context.Context) ([]int64, error)

	AddCandidate(ctx context.Context, candidate entities.Candidate) (entities.Candidate, error)
	ListCandidates(ctx context.Context, electionID int64) ([]entities.Candidate, error)
	AddExclusionGroup(ctx context.Context, group entities.ExclusionGroup) (entities.ExclusionGroup, error)
	ListExclusionGroups(ctx context.Context, electionID int64) ([]entities.ExclusionGroup, error)
}

// RollEntry is one eligible voter resolved by the membership collaborator.
type RollEntry struct {
	VoterRef string
	Email    string
	Weight   int64
}

// VoterRollProvider resolves the eligible-voter roll, already filtered by
// the election's eligible-group restriction.
type VoterRollProvider interface {
	EligibleRoll(ctx context.Context, electionID int64, eligibleGroup string) ([]RollEntry, error)
}

// TemplateSource supplies the current shared voting-email template; start
// snapshots it into the election.
type TemplateSource interface {
	VotingEmail(ctx context.Context) (entities.EmailSnapshot, error)
}

// IssuedCredential is what the credentials module hands back per voter.
type IssuedCredential struct {
	PublicID string
	VoterRef string
	Weight   int64
}

// CredentialIssuer adapts the credentials module.
type CredentialIssuer interface {
	IssueRoll(ctx context.Context, electionID int64, roll []RollEntry) ([]IssuedCredential, error)
	AnonymizeElection(ctx context.Context, electionID int64) (int64, error)
}

// CredentialNotice is everything a credential mail needs.
type CredentialNotice struct {
	ElectionID   int64
	ElectionName string
	Recipient    string
	PublicID     string
	Weight       int64
	Email        entities.EmailSnapshot
}

// Notifier adapts the notifications module.
type Notifier interface {
	EnqueueCredentialMail(ctx context.Context, notice CredentialNotice) error
	ScrubElection(ctx context.Context, electionID int64) (int64, error)
}

// ChainSummary commits the close record to the ledger state at closing time:
// how many credential chains exist and a digest over their final heads.
type ChainSummary struct {
	Chains      int
	HeadsDigest string
}

// BallotSource adapts the ledger: counted ballots already shaped for the
// tally engine, plus enough for the close summary.
type BallotSource interface {
	CountedBallots(ctx context.Context, electionID int64) ([]meek.Ballot, error)
	CountedWeight(ctx context.Context, electionID int64) (int64, error)
	ChainSummary(ctx context.Context, electionID int64) (ChainSummary, error)
}

// ArtifactPublisher adapts the artifacts module.
type ArtifactPublisher interface {
	Publish(ctx context.Context, electionID int64) (ballotsRef, auditLogRef string, err error)
}

// Atomic runs fn inside one storage transaction spanning every repository
// built on the same handle, so a lifecycle command that fans out across
// modules leaves no partial state behind a mid-sequence failure.
type Atomic interface {
	Atomically(ctx context.Context, fn func(context.Context) error) error
}

type Clock interface {
	Now() time.Time
}
