package workers

import (
	"context"
	"errors"
	"log/slog"

	application "psephos/contexts/governance/ballot-ledger/application"
	"psephos/contexts/governance/ballot-ledger/application/queries"
	domainerrors "psephos/contexts/governance/ballot-ledger/domain/errors"
	"psephos/contexts/governance/ballot-ledger/ports"
)

// ChainVerifier is the scheduled tamper-detection sweep. One RunOnce walks
// every verifiable election; a mismatch is reported, never repaired.
type ChainVerifier struct {
	Elections ports.ElectionGate
	Verify    queries.VerifyChainsUseCase
	Logger    *slog.Logger
}

// RunOnce returns the number of elections whose chains verified clean and an
// error if any election had inconsistencies.
func (w ChainVerifier) RunOnce(ctx context.Context) (int, error) {
	logger := application.ResolveLogger(w.Logger)
	ids, err := w.Elections.VerifiableElectionIDs(ctx)
	if err != nil {
		return 0, err
	}
	clean := 0
	var failed error
	for _, id := range ids {
		report, err := w.Verify.Verify(ctx, id)
		if errors.Is(err, domainerrors.ErrChainMismatch) {
			failed = err
			continue
		}
		if err != nil {
			return clean, err
		}
		clean++
		logger.Info("chains verified",
			"event", "ledger_chain_verify_clean",
			"module", "governance/ballot-ledger",
			"layer", "worker",
			"election_id", id,
			"ballots_walked", report.BallotsWalked,
			"chains", report.Chains,
		)
	}
	return clean, failed
}
