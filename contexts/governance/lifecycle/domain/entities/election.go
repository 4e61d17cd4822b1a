package entities

import (
	"encoding/json"
	"time"
)

type Status string

const (
	StatusDraft   Status = "draft"
	StatusOpen    Status = "open"
	StatusClosed  Status = "closed"
	StatusTallied Status = "tallied"
	StatusDeleted Status = "deleted"
)

// CanTransition encodes the forward-only state machine. Deletion is the soft
// terminal state and is unreachable from tallied, because a tallied election
// is part of the published record.
func CanTransition(from, to Status) bool {
	switch {
	case from == StatusDraft && to == StatusOpen:
		return true
	case from == StatusOpen && to == StatusClosed:
		return true
	case from == StatusClosed && to == StatusTallied:
		return true
	case to == StatusDeleted:
		return from == StatusDraft || from == StatusOpen || from == StatusClosed
	default:
		return false
	}
}

// EmailSnapshot is the voting-email content frozen into the election at
// start, so later edits to the shared template never change an already-open
// election's mails.
type EmailSnapshot struct {
	Subject  string
	HTMLBody string
	TextBody string
}

// Election owns candidates, exclusion groups, credentials, ballots and audit
// entries. Because ballots are never deleted, an election that has ballots is
// never hard-deleted either; deletion is a status flag.
type Election struct {
	ID            int64
	Name          string
	Description   string
	URL           string
	Start         time.Time
	End           time.Time
	Seats         int64
	QuorumPercent int64
	EligibleGroup string
	Status        Status
	Email         EmailSnapshot
	TallyResult   json.RawMessage
	BallotsRef    string
	AuditLogRef   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Candidate references the nominee and nominator identities held by the
// membership collaborator. TiebreakID is assigned once at creation and gives
// the tally engine its deterministic tie order.
type Candidate struct {
	ID           int64
	ElectionID   int64
	Name         string
	VoterRef     string
	NominatorRef string
	Description  string
	URL          string
	TiebreakID   string
}

// ExclusionGroup caps how many of its members may be elected.
type ExclusionGroup struct {
	ID           int64
	ElectionID   int64
	Name         string
	MaxElected   int64
	CandidateIDs []int64
}
