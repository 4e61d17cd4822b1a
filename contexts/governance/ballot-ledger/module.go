package ballotledger

import (
	"log/slog"

	auditports "psephos/contexts/governance/audit-log/ports"
	"psephos/contexts/governance/ballot-ledger/application/commands"
	"psephos/contexts/governance/ballot-ledger/application/queries"
	"psephos/contexts/governance/ballot-ledger/application/workers"
	"psephos/contexts/governance/ballot-ledger/ports"
)

type Module struct {
	Submit   commands.SubmitBallotUseCase
	Turnout  queries.TurnoutUseCase
	Export   queries.ExportUseCase
	Verify   queries.VerifyChainsUseCase
	Verifier workers.ChainVerifier
}

type Dependencies struct {
	Ballots     ports.BallotRepository
	Credentials ports.CredentialResolver
	Elections   ports.ElectionGate
	Audit       auditports.Appender
	Clock       ports.Clock
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	verify := queries.VerifyChainsUseCase{
		Ballots: deps.Ballots,
		Audit:   deps.Audit,
		Logger:  deps.Logger,
	}
	return Module{
		Submit: commands.SubmitBallotUseCase{
			Ballots:     deps.Ballots,
			Credentials: deps.Credentials,
			Elections:   deps.Elections,
			Audit:       deps.Audit,
			Clock:       deps.Clock,
			Logger:      deps.Logger,
		},
		Turnout: queries.TurnoutUseCase{
			Ballots:     deps.Ballots,
			Credentials: deps.Credentials,
		},
		Export: queries.ExportUseCase{
			Ballots: deps.Ballots,
		},
		Verify: verify,
		Verifier: workers.ChainVerifier{
			Elections: deps.Elections,
			Verify:    verify,
			Logger:    deps.Logger,
		},
	}
}
