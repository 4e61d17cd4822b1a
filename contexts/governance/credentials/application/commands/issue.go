package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	application "psephos/contexts/governance/credentials/application"
	"psephos/contexts/governance/credentials/domain/entities"
	domainerrors "psephos/contexts/governance/credentials/domain/errors"
	"psephos/contexts/governance/credentials/ports"
)

// issueRetries bounds the create/update race loop. Two concurrent issues for
// the same voter resolve on the second pass at the latest.
const issueRetries = 3

// RollEntry is one line of the eligible-voter roll supplied by the
// membership collaborator.
type RollEntry struct {
	VoterRef string
	Weight   int64
}

// IssueUseCase issues credentials idempotently per (election, voter):
// re-issuing updates the weight instead of duplicating.
type IssueUseCase struct {
	Credentials ports.CredentialRepository
	Clock       ports.Clock
	Logger      *slog.Logger
}

func (uc IssueUseCase) Issue(ctx context.Context, electionID int64, voterRef string, weight int64) (entities.Credential, error) {
	return uc.issue(ctx, uc.Credentials, electionID, voterRef, weight)
}

// IssueRoll issues the whole roll in one transaction; a failure anywhere
// leaves no partial issuance behind.
func (uc IssueUseCase) IssueRoll(ctx context.Context, electionID int64, roll []RollEntry) ([]entities.Credential, error) {
	issued := make([]entities.Credential, 0, len(roll))
	err := uc.Credentials.Transact(ctx, func(repo ports.CredentialRepository) error {
		for _, entry := range roll {
			credential, err := uc.issue(ctx, repo, electionID, entry.VoterRef, entry.Weight)
			if err != nil {
				return err
			}
			issued = append(issued, credential)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	application.ResolveLogger(uc.Logger).Info("credential roll issued",
		"event", "credentials_roll_issued",
		"module", "governance/credentials",
		"layer", "application",
		"election_id", electionID,
		"count", len(issued),
	)
	return issued, nil
}

func (uc IssueUseCase) issue(ctx context.Context, repo ports.CredentialRepository, electionID int64, voterRef string, weight int64) (entities.Credential, error) {
	voterRef = strings.TrimSpace(voterRef)
	if voterRef == "" {
		return entities.Credential{}, domainerrors.ErrVoterRefRequired
	}
	if weight <= 0 {
		return entities.Credential{}, domainerrors.ErrInvalidWeight
	}

	for attempt := 0; attempt < issueRetries; attempt++ {
		existing, found, err := repo.GetByVoter(ctx, electionID, voterRef)
		if err != nil {
			return entities.Credential{}, err
		}
		if found {
			if existing.Weight != weight {
				if err := repo.UpdateWeight(ctx, existing.ID, weight); err != nil {
					return entities.Credential{}, err
				}
				existing.Weight = weight
			}
			return existing, nil
		}

		publicID, err := entities.NewPublicID()
		if err != nil {
			return entities.Credential{}, err
		}
		now := uc.Clock.Now()
		created, err := repo.Create(ctx, entities.Credential{
			ElectionID: electionID,
			PublicID:   publicID,
			VoterRef:   &voterRef,
			Weight:     weight,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		if errors.Is(err, domainerrors.ErrConflict) {
			// Lost the race to a concurrent issue; re-read and update.
			continue
		}
		if err != nil {
			return entities.Credential{}, err
		}
		return created, nil
	}
	return entities.Credential{}, domainerrors.ErrConflict
}
