package commands

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	auditentities "psephos/contexts/governance/audit-log/domain/entities"
	auditports "psephos/contexts/governance/audit-log/ports"
	application "psephos/contexts/governance/lifecycle/application"
	"psephos/contexts/governance/lifecycle/domain/entities"
	domainerrors "psephos/contexts/governance/lifecycle/domain/errors"
	"psephos/contexts/governance/lifecycle/ports"
)

// ExtendEndUseCase moves an open election's end later. The end can only move
// forward; shortening the window would be a disguised early close that skips
// the close path's side effects.
type ExtendEndUseCase struct {
	Elections ports.ElectionRepository
	Audit     auditports.Appender
	Clock     ports.Clock
	Logger    *slog.Logger
}

func (uc ExtendEndUseCase) ExtendEnd(ctx context.Context, electionID int64, newEnd time.Time) (entities.Election, error) {
	election, err := uc.Elections.Get(ctx, electionID)
	if err != nil {
		return entities.Election{}, err
	}
	if election.Status != entities.StatusOpen {
		return entities.Election{}, domainerrors.ErrIllegalTransition
	}
	if !newEnd.After(election.End) {
		return entities.Election{}, domainerrors.ErrEndNotLater
	}
	previousEnd := election.End
	if err := uc.Elections.SetEnd(ctx, electionID, newEnd); err != nil {
		return entities.Election{}, err
	}
	election.End = newEnd

	payload, _ := json.Marshal(map[string]any{
		"previous_end":   previousEnd,
		"new_end":        newEnd,
		"quorum_percent": election.QuorumPercent,
	})
	if _, err := uc.Audit.Append(ctx, auditentities.Entry{
		ElectionID: electionID,
		EventType:  auditentities.EventElectionEndExtended,
		Public:     true,
		Payload:    payload,
		Timestamp:  uc.Clock.Now(),
	}); err != nil {
		application.ResolveLogger(uc.Logger).Error("extend audit append failed",
			"event", "lifecycle_extend_audit_failed",
			"module", "governance/lifecycle",
			"layer", "application",
			"election_id", electionID,
			"error", err.Error(),
		)
	}
	return election, nil
}
