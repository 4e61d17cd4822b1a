package entities

import "time"

// Ballot is one ledger row. The monotonic ID doubles as the sequence number.
// Weight is snapshotted from the credential at submission and never re-read.
// A superseded row stays physically present; SupersededByID points forward to
// the row that replaced it and IsCounted drops to false.
type Ballot struct {
	ID                 int64
	ElectionID         int64
	CredentialPublicID string
	Ranking            []int64
	Weight             int64
	Nonce              string
	ContentHash        string
	PreviousChainHash  string
	ChainHash          string
	SupersededByID     *int64
	IsCounted          bool
	CreatedAt          time.Time
}

// Draft carries the validated, hashed input the submission path hands to the
// repository. The repository fills in the chain linkage under the
// per-credential lock.
type Draft struct {
	ElectionID         int64
	CredentialPublicID string
	Ranking            []int64
	Weight             int64
	Nonce              string
	ContentHash        string
}

// Receipt is what the voter gets back for personal verification. Ranking
// content is never echoed beyond what was submitted.
type Receipt struct {
	BallotID          int64
	ContentHash       string
	PreviousChainHash string
	ChainHash         string
	Nonce             string
}
