package application

import (
	"context"
	"fmt"
	"log/slog"

	"psephos/contexts/governance/artifacts/ports"
)

// Refs points at the two published artifacts of a tallied election.
type Refs struct {
	BallotsRef  string `json:"ballots_ref"`
	AuditLogRef string `json:"audit_log_ref"`
}

// Publisher writes the anonymized ballots export and the public audit log to
// stable per-election locations. Publishing again regenerates both in place.
type Publisher struct {
	Blobs         ports.BlobStore
	BallotsExport ports.ExportBuilder
	AuditExport   ports.ExportBuilder
	Logger        *slog.Logger
}

func (p Publisher) Publish(ctx context.Context, electionID int64) (Refs, error) {
	ballots, err := p.BallotsExport(ctx, electionID)
	if err != nil {
		return Refs{}, fmt.Errorf("build ballots export: %w", err)
	}
	audit, err := p.AuditExport(ctx, electionID)
	if err != nil {
		return Refs{}, fmt.Errorf("build audit export: %w", err)
	}

	ballotsRef, err := p.Blobs.Put(ctx, BallotsKey(electionID), ballots)
	if err != nil {
		return Refs{}, fmt.Errorf("store ballots export: %w", err)
	}
	auditRef, err := p.Blobs.Put(ctx, AuditLogKey(electionID), audit)
	if err != nil {
		return Refs{}, fmt.Errorf("store audit export: %w", err)
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("election artifacts published",
		"event", "artifacts_published",
		"module", "governance/artifacts",
		"layer", "application",
		"election_id", electionID,
		"ballots_ref", ballotsRef,
		"audit_log_ref", auditRef,
	)
	return Refs{BallotsRef: ballotsRef, AuditLogRef: auditRef}, nil
}

func BallotsKey(electionID int64) string {
	return fmt.Sprintf("elections/%d/public_ballots.json", electionID)
}

func AuditLogKey(electionID int64) string {
	return fmt.Sprintf("elections/%d/public_audit_log.json", electionID)
}
