package notifications

import (
	"log/slog"

	"psephos/contexts/governance/notifications/application/commands"
	"psephos/contexts/governance/notifications/application/workers"
	"psephos/contexts/governance/notifications/ports"
)

type Module struct {
	Queue commands.QueueUseCase
	Relay workers.Relay
}

type Dependencies struct {
	Messages  ports.MessageQueue
	Sender    ports.Sender
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

func NewModule(deps Dependencies) Module {
	return Module{
		Queue: commands.QueueUseCase{
			Messages: deps.Messages,
			Clock:    deps.Clock,
			Logger:   deps.Logger,
		},
		Relay: workers.Relay{
			Messages:  deps.Messages,
			Sender:    deps.Sender,
			Clock:     deps.Clock,
			BatchSize: deps.BatchSize,
			Logger:    deps.Logger,
		},
	}
}
