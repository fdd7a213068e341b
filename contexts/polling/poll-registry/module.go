package pollregistry

import (
	"log/slog"
	"time"

	httpadapter "agora/contexts/polling/poll-registry/adapters/http"
	"agora/contexts/polling/poll-registry/adapters/memory"
	"agora/contexts/polling/poll-registry/application/commands"
	"agora/contexts/polling/poll-registry/application/queries"
	"agora/contexts/polling/poll-registry/domain/entities"
	"agora/contexts/polling/poll-registry/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Polls          ports.PollRepository
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	createPoll := commands.CreatePollUseCase{
		Polls:          deps.Polls,
		Idempotency:    deps.Idempotency,
		Outbox:         deps.Outbox,
		Clock:          deps.Clock,
		IDGenerator:    deps.IDGenerator,
		IdempotencyTTL: deps.IdempotencyTTL,
		Logger:         deps.Logger,
	}
	closePoll := commands.ClosePollUseCase{
		Polls:       deps.Polls,
		Outbox:      deps.Outbox,
		Clock:       deps.Clock,
		IDGenerator: deps.IDGenerator,
		Logger:      deps.Logger,
	}
	getPoll := queries.GetPollUseCase{
		Polls:  deps.Polls,
		Logger: deps.Logger,
	}
	listPolls := queries.ListPollsUseCase{
		Polls:  deps.Polls,
		Logger: deps.Logger,
	}

	return Module{
		Handler: httpadapter.Handler{
			CreatePoll: createPoll,
			ClosePoll:  closePoll,
			GetPoll:    getPoll,
			ListPolls:  listPolls,
			Logger:     deps.Logger,
		},
	}
}

func NewInMemoryModule(seed []entities.Poll, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Polls:          store,
		Idempotency:    store,
		Outbox:         store,
		Clock:          store,
		IDGenerator:    store,
		IdempotencyTTL: 7 * 24 * time.Hour,
		Logger:         logger,
	})
	module.Store = store
	return module
}
