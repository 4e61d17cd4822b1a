package lifecycle

import (
	"log/slog"

	auditports "psephos/contexts/governance/audit-log/ports"
	"psephos/contexts/governance/lifecycle/application/commands"
	"psephos/contexts/governance/lifecycle/application/workers"
	"psephos/contexts/governance/lifecycle/ports"
)

// Module bundles the election lifecycle use cases behind one constructor.
type Module struct {
	Setup   commands.SetupUseCase
	Start   commands.StartElectionUseCase
	Extend  commands.ExtendEndUseCase
	Close   commands.CloseElectionUseCase
	Tally   commands.TallyElectionUseCase
	Delete  commands.DeleteElectionUseCase
	Sweeper workers.Sweeper
}

type Dependencies struct {
	Elections   ports.ElectionRepository
	Roll        ports.VoterRollProvider
	Templates   ports.TemplateSource
	Credentials ports.CredentialIssuer
	Notifier    ports.Notifier
	Ballots     ports.BallotSource
	Publisher   ports.ArtifactPublisher
	Audit       auditports.Appender
	Atomic      ports.Atomic
	Clock       ports.Clock
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	closeUC := commands.CloseElectionUseCase{
		Elections:   deps.Elections,
		Credentials: deps.Credentials,
		Notifier:    deps.Notifier,
		Ballots:     deps.Ballots,
		Audit:       deps.Audit,
		Atomic:      deps.Atomic,
		Clock:       deps.Clock,
		Logger:      deps.Logger,
	}
	tallyUC := commands.TallyElectionUseCase{
		Elections: deps.Elections,
		Ballots:   deps.Ballots,
		Publisher: deps.Publisher,
		Audit:     deps.Audit,
		Clock:     deps.Clock,
		Logger:    deps.Logger,
	}
	return Module{
		Setup: commands.SetupUseCase{
			Elections: deps.Elections,
			Clock:     deps.Clock,
			Logger:    deps.Logger,
		},
		Start: commands.StartElectionUseCase{
			Elections:   deps.Elections,
			Roll:        deps.Roll,
			Templates:   deps.Templates,
			Credentials: deps.Credentials,
			Notifier:    deps.Notifier,
			Audit:       deps.Audit,
			Atomic:      deps.Atomic,
			Clock:       deps.Clock,
			Logger:      deps.Logger,
		},
		Extend: commands.ExtendEndUseCase{
			Elections: deps.Elections,
			Audit:     deps.Audit,
			Clock:     deps.Clock,
			Logger:    deps.Logger,
		},
		Close:  closeUC,
		Tally:  tallyUC,
		Delete: commands.DeleteElectionUseCase{Elections: deps.Elections, Logger: deps.Logger},
		Sweeper: workers.Sweeper{
			Elections: deps.Elections,
			Close:     closeUC,
			Tally:     tallyUC,
			Clock:     deps.Clock,
			Logger:    deps.Logger,
		},
	}
}
