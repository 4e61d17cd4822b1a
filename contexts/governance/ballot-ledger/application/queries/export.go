package queries

import (
	"context"
	"sort"

	"psephos/contexts/governance/ballot-ledger/domain/entities"
	"psephos/contexts/governance/ballot-ledger/ports"
)

// BallotsExport is the anonymized flat list of final counted ballots
// published after tally. It carries no identity, only credential public ids
// and hashes; with the genesis value an auditor can re-verify every chain.
type BallotsExport struct {
	ElectionID int64             `json:"election_id"`
	Genesis    string            `json:"genesis_chain_hash"`
	Ballots    []BallotExportRow `json:"ballots"`
}

type BallotExportRow struct {
	CredentialPublicID string  `json:"credential_public_id"`
	Ranking            []int64 `json:"ranking"`
	Weight             int64   `json:"weight"`
	ContentHash        string  `json:"content_hash"`
	ChainHash          string  `json:"chain_hash"`
}

type ExportUseCase struct {
	Ballots ports.BallotRepository
}

// ChainSummary pins the ledger state at a point in time: one final head per
// credential chain, collapsed to an order-independent digest.
type ChainSummary struct {
	ElectionID  int64  `json:"election_id"`
	Chains      int    `json:"chains"`
	HeadsDigest string `json:"heads_digest"`
}

// BuildChainSummary digests the final chain head of every credential. The
// close record carries the result, so the published ballots export can be
// checked against the ledger as it stood when voting ended.
func (uc ExportUseCase) BuildChainSummary(ctx context.Context, electionID int64) (ChainSummary, error) {
	rows, err := uc.Ballots.ListByElection(ctx, electionID)
	if err != nil {
		return ChainSummary{}, err
	}
	heads := make([]string, 0, len(rows))
	for _, ballot := range rows {
		if ballot.SupersededByID == nil {
			heads = append(heads, ballot.ChainHash)
		}
	}
	return ChainSummary{
		ElectionID:  electionID,
		Chains:      len(heads),
		HeadsDigest: entities.ChainHeadsDigest(heads),
	}, nil
}

// BuildBallotsExport returns counted final ballots sorted by credential
// public id so regeneration is byte-stable.
func (uc ExportUseCase) BuildBallotsExport(ctx context.Context, electionID int64) (BallotsExport, error) {
	counted, err := uc.Ballots.CountedBallots(ctx, electionID)
	if err != nil {
		return BallotsExport{}, err
	}
	rows := make([]BallotExportRow, 0, len(counted))
	for _, ballot := range counted {
		rows = append(rows, BallotExportRow{
			CredentialPublicID: ballot.CredentialPublicID,
			Ranking:            append([]int64(nil), ballot.Ranking...),
			Weight:             ballot.Weight,
			ContentHash:        ballot.ContentHash,
			ChainHash:          ballot.ChainHash,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].CredentialPublicID < rows[j].CredentialPublicID
	})
	return BallotsExport{
		ElectionID: electionID,
		Genesis:    entities.GenesisChainHash(electionID),
		Ballots:    rows,
	}, nil
}
