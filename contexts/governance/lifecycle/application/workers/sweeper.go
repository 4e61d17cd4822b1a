package workers

import (
	"context"
	"log/slog"

	application "psephos/contexts/governance/lifecycle/application"
	"psephos/contexts/governance/lifecycle/application/commands"
	"psephos/contexts/governance/lifecycle/ports"
)

// SweepReport summarizes one scheduled sweep.
type SweepReport struct {
	ClosedDue  int
	Closed     int
	TalliedDue int
	Tallied    int
}

// Sweeper is the scheduled batch job advancing elections: pass one closes
// open elections past their end, pass two re-queries and tallies closed
// elections past their end. Two passes because closing can make more
// elections eligible for tally within the same run.
type Sweeper struct {
	Elections ports.ElectionRepository
	Close     commands.CloseElectionUseCase
	Tally     commands.TallyElectionUseCase
	Clock     ports.Clock
	Logger    *slog.Logger
}

// RunOnce advances everything that is due. With dryRun it only reports what
// would happen. One failing election does not stop the sweep; the last error
// is returned after every due election was attempted.
func (w Sweeper) RunOnce(ctx context.Context, dryRun bool) (SweepReport, error) {
	logger := application.ResolveLogger(w.Logger)
	now := w.Clock.Now()
	report := SweepReport{}
	var lastErr error

	dueClose, err := w.Elections.ListOpenPastEnd(ctx, now)
	if err != nil {
		return report, err
	}
	report.ClosedDue = len(dueClose)
	for _, election := range dueClose {
		if dryRun {
			continue
		}
		if _, err := w.Close.CloseElection(ctx, election.ID); err != nil {
			lastErr = err
			logger.Error("sweep close failed",
				"event", "lifecycle_sweep_close_failed",
				"module", "governance/lifecycle",
				"layer", "worker",
				"election_id", election.ID,
				"error", err.Error(),
			)
			continue
		}
		report.Closed++
	}

	// Re-query: pass one may have made more elections eligible.
	dueTally, err := w.Elections.ListClosedPastEnd(ctx, now)
	if err != nil {
		return report, err
	}
	report.TalliedDue = len(dueTally)
	for _, election := range dueTally {
		if dryRun {
			continue
		}
		if _, err := w.Tally.TallyElection(ctx, election.ID); err != nil {
			lastErr = err
			logger.Error("sweep tally failed",
				"event", "lifecycle_sweep_tally_failed",
				"module", "governance/lifecycle",
				"layer", "worker",
				"election_id", election.ID,
				"error", err.Error(),
			)
			continue
		}
		report.Tallied++
	}

	logger.Info("election sweep finished",
		"event", "lifecycle_sweep_finished",
		"module", "governance/lifecycle",
		"layer", "worker",
		"dry_run", dryRun,
		"closed_due", report.ClosedDue,
		"closed", report.Closed,
		"tallied_due", report.TalliedDue,
		"tallied", report.Tallied,
	)
	return report, lastErr
}
