package entities

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// GenesisChainHash is the fixed chain head every credential in an election
// starts from. It is derived from the election id only, so an auditor can
// recompute it without any ledger state.
func GenesisChainHash(electionID int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("psephos-chain-genesis|election:%d", electionID)))
	return hex.EncodeToString(sum[:])
}

// ContentHash binds the ballot content to its election, credential, weight
// and a random nonce. The nonce keeps identical rankings from producing
// identical hashes, so the published export leaks nothing about duplicates.
func ContentHash(electionID int64, credentialPublicID string, ranking []int64, weight int64, nonce string) string {
	ranked := make([]string, 0, len(ranking))
	for _, id := range ranking {
		ranked = append(ranked, strconv.FormatInt(id, 10))
	}
	payload := fmt.Sprintf("election:%d|credential:%s|ranking:%s|weight:%d|nonce:%s",
		electionID, credentialPublicID, strings.Join(ranked, ","), weight, nonce)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// ChainNextHash links a ballot into its credential's chain.
func ChainNextHash(previousChainHash, contentHash string) string {
	sum := sha256.Sum256([]byte(previousChainHash + "|" + contentHash))
	return hex.EncodeToString(sum[:])
}

// ChainHeadsDigest commits to a set of chain heads independent of insertion
// order. The close record carries it so anyone holding the ballots export can
// check the ledger was not extended or rewritten after closing.
func ChainHeadsDigest(heads []string) string {
	sorted := append([]string(nil), heads...)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "|")))
	return hex.EncodeToString(sum[:])
}

// NewNonce returns a 16-byte cryptographically random hex token.
func NewNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate ballot nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
