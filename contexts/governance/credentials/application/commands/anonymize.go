package commands

import (
	"context"
	"log/slog"

	application "psephos/contexts/governance/credentials/application"
	"psephos/contexts/governance/credentials/ports"
)

// AnonymizeUseCase clears every voter identity for an election. This is the
// privacy boundary of the whole system: after it runs, nothing can map a
// ballot back to a person. Reachable only from the close transition.
type AnonymizeUseCase struct {
	Credentials ports.CredentialRepository
	Logger      *slog.Logger
}

func (uc AnonymizeUseCase) AnonymizeElection(ctx context.Context, electionID int64) (int64, error) {
	affected, err := uc.Credentials.AnonymizeElection(ctx, electionID)
	if err != nil {
		application.ResolveLogger(uc.Logger).Error("credential anonymization failed",
			"event", "credentials_anonymize_failed",
			"module", "governance/credentials",
			"layer", "application",
			"election_id", electionID,
			"error", err.Error(),
		)
		return 0, err
	}
	application.ResolveLogger(uc.Logger).Info("credentials anonymized",
		"event", "credentials_anonymized",
		"module", "governance/credentials",
		"layer", "application",
		"election_id", electionID,
		"count", affected,
	)
	return affected, nil
}
