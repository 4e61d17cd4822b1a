package credentials

import (
	"log/slog"

	"psephos/contexts/governance/credentials/application/commands"
	"psephos/contexts/governance/credentials/ports"
)

type Module struct {
	Issue     commands.IssueUseCase
	Anonymize commands.AnonymizeUseCase
}

type Dependencies struct {
	Credentials ports.CredentialRepository
	Clock       ports.Clock
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	return Module{
		Issue: commands.IssueUseCase{
			Credentials: deps.Credentials,
			Clock:       deps.Clock,
			Logger:      deps.Logger,
		},
		Anonymize: commands.AnonymizeUseCase{
			Credentials: deps.Credentials,
			Logger:      deps.Logger,
		},
	}
}
