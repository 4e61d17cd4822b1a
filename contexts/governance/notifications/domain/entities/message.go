package entities

import (
	"encoding/json"
	"time"
)

type MessageStatus string

const (
	StatusPending MessageStatus = "pending"
	StatusSent    MessageStatus = "sent"
)

// Template names the core enqueues.
const (
	TemplateVotingCredential = "voting_credential"
	TemplateBallotReceipt    = "ballot_receipt"
)

// Message is one queued templated mail. Subject and bodies are snapshotted
// at enqueue time, so later template edits never change an already-open
// election's mails. Because Recipient plus Context can link an identity to a
// credential, every message for an election is purged when the election
// closes.
type Message struct {
	ID         string
	ElectionID int64
	Template   string
	Recipient  string
	Subject    string
	HTMLBody   string
	TextBody   string
	Context    json.RawMessage
	Status     MessageStatus
	CreatedAt  time.Time
	SentAt     *time.Time
}
