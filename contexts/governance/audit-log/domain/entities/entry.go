package entities

import (
	"encoding/json"
	"time"
)

// Event types appended by the ledger, lifecycle and tally paths.
const (
	EventBallotSubmitted     = "ballot_submitted"
	EventQuorumReached       = "quorum_reached"
	EventElectionStarted     = "election_started"
	EventElectionEndExtended = "election_end_extended"
	EventElectionClosed      = "election_closed"
	EventElectionAnonymized  = "election_anonymized"
	EventTallyRound          = "tally_round"
	EventTallyCompleted      = "tally_completed"
	EventChainVerified       = "chain_verified"
)

// Entry is one append-only audit event. Public entries are published
// verbatim in the post-tally export; private ones stay operator-only.
type Entry struct {
	ID         string
	ElectionID int64
	EventType  string
	Public     bool
	Payload    json.RawMessage
	Timestamp  time.Time
}
