package errors

import "errors"

// Validation failures. Returned before anything touches the ledger, so they
// never leave partial state behind.
var (
	ErrElectionNotOpen     = errors.New("election is not open for voting")
	ErrOutsideVotingWindow = errors.New("current time is outside the voting window")
	ErrInvalidCredential   = errors.New("credential is unknown, anonymized, or not for this election")
	ErrUnknownCandidate    = errors.New("ranking references a candidate outside this election")
	ErrDuplicateRanking    = errors.New("ranking lists a candidate more than once")
	ErrEmptyRanking        = errors.New("ranking must rank at least one candidate")
)

// Integrity violations. These indicate a bug or a tampering attempt, never
// something to retry.
var (
	ErrAppendOnly          = errors.New("ballot rows are append-only and can never be deleted")
	ErrImmutableColumn     = errors.New("only the supersession pointer and counted flag may change after insert")
	ErrInvalidSupersession = errors.New("supersession pointer must reference a strictly later row of the same election and credential without forming a cycle")
	ErrChainMismatch       = errors.New("stored chain hashes do not match recomputation")
	ErrBallotNotFound      = errors.New("ballot not found")
)
