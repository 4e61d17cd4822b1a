package entities

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Credential is an opaque per-voter token. VoterRef is the only link between
// a credential and a person; close clears it for the whole election and
// nothing can restore it.
type Credential struct {
	ID         int64
	ElectionID int64
	PublicID   string
	VoterRef   *string
	Weight     int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Anonymized reports whether the identity link has been cleared.
func (c Credential) Anonymized() bool {
	return c.VoterRef == nil
}

// NewPublicID returns a 16-byte cryptographically random hex token. It is
// never derived from the voter identity.
func NewPublicID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate credential public id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
