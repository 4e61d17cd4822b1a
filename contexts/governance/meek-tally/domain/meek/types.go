package meek

import (
	"github.com/shopspring/decimal"
)

// Ballot is one anonymous weighted ranking. The ledger validates rankings at
// submission time; the engine still skips ids it does not know about so a
// stale export can never panic the count.
type Ballot struct {
	Weight  int64
	Ranking []int64
}

// Candidate pairs the internal candidate id with the externally assigned
// tiebreak id. Tie resolution orders by this id, never by map iteration.
type Candidate struct {
	ID         int64
	TiebreakID string
}

// ExclusionGroup caps how many of its members may be elected.
type ExclusionGroup struct {
	Name         string
	MaxElected   int
	CandidateIDs []int64
}

type Input struct {
	Ballots         []Ballot
	Candidates      []Candidate
	Seats           int
	ExclusionGroups []ExclusionGroup

	// Epsilon is the keep-factor convergence tolerance. Zero means the
	// engine default.
	Epsilon decimal.Decimal
	// MaxIterations caps the fixed-point loop per round. Zero means the
	// engine default. Exceeding the cap is fatal, never approximate.
	MaxIterations int
}

type CandidateStatus string

const (
	StatusHopeful    CandidateStatus = "hopeful"
	StatusElected    CandidateStatus = "elected"
	StatusEliminated CandidateStatus = "eliminated"
	StatusExcluded   CandidateStatus = "excluded"
)

type RoundAction string

const (
	// ActionElected: one or more hopefuls reached quota this round.
	ActionElected RoundAction = "elected"
	// ActionEliminated: nobody reached quota; the lowest hopeful left.
	ActionEliminated RoundAction = "eliminated"
	// ActionElectedToFill: remaining hopefuls fit the remaining seats and
	// were elected by rule rather than by quota.
	ActionElectedToFill RoundAction = "elected_to_fill_remaining_seats"
)

// CandidateRound is the per-candidate snapshot inside one round. Votes and
// KeepFactor are decimal strings so the trail is byte-stable across
// platforms and JSON round-trips.
type CandidateRound struct {
	ID         int64           `json:"id"`
	Votes      string          `json:"votes"`
	KeepFactor string          `json:"keep_factor"`
	Status     CandidateStatus `json:"status"`
}

// ForcedExclusion records a rule-driven removal, distinct from a vote-driven
// elimination.
type ForcedExclusion struct {
	CandidateID int64  `json:"candidate_id"`
	Group       string `json:"group"`
	TriggeredBy int64  `json:"triggered_by"`
}

// Round is one audit-trail entry: the converged state plus the action taken.
// Candidates are sorted by id.
type Round struct {
	Number          int               `json:"number"`
	Quota           string            `json:"quota"`
	Iterations      int               `json:"iterations"`
	Action          RoundAction       `json:"action"`
	Elected         []int64           `json:"elected,omitempty"`
	Eliminated      int64             `json:"eliminated,omitempty"`
	ForcedExcluded  []ForcedExclusion `json:"forced_excluded,omitempty"`
	Candidates      []CandidateRound  `json:"candidates"`
	ExhaustedWeight string            `json:"exhausted_weight"`
}

// Result is the complete deterministic outcome of a count.
type Result struct {
	Elected        []int64         `json:"elected"`
	Eliminated     []int64         `json:"eliminated"`
	ForcedExcluded []int64         `json:"forced_excluded"`
	Quota          decimal.Decimal `json:"quota"`
	Seats          int             `json:"seats"`
	Rounds         []Round         `json:"rounds"`
}

// LastEliminated reports the final vote-driven elimination, if any.
func (r Result) LastEliminated() (int64, bool) {
	if len(r.Eliminated) == 0 {
		return 0, false
	}
	return r.Eliminated[len(r.Eliminated)-1], true
}
