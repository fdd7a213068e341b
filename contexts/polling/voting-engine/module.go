package votingengine

import (
	"log/slog"

	httpadapter "agora/contexts/polling/voting-engine/adapters/http"
	"agora/contexts/polling/voting-engine/adapters/memory"
	"agora/contexts/polling/voting-engine/application/commands"
	"agora/contexts/polling/voting-engine/application/queries"
	"agora/contexts/polling/voting-engine/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Catalog     ports.PollCatalog
	Claims      ports.VoterRegistry
	Ledger      ports.VoteLedger
	Tallies     ports.TallyStore
	Notifier    ports.ResultsNotifier
	Outbox      ports.OutboxWriter
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	castVote := commands.CastVoteUseCase{
		Catalog:  deps.Catalog,
		Claims:   deps.Claims,
		Ledger:   deps.Ledger,
		Tallies:  deps.Tallies,
		Notifier: deps.Notifier,
		Outbox:   deps.Outbox,
		Clock:    deps.Clock,
		IDGen:    deps.IDGenerator,
		Logger:   deps.Logger,
	}
	rebuildTally := commands.RebuildTallyUseCase{
		Catalog: deps.Catalog,
		Ledger:  deps.Ledger,
		Tallies: deps.Tallies,
		Logger:  deps.Logger,
	}
	currentTally := queries.CurrentTallyUseCase{
		Catalog: deps.Catalog,
		Ledger:  deps.Ledger,
		Tallies: deps.Tallies,
		Logger:  deps.Logger,
	}
	listVotes := queries.ListVotesUseCase{
		Catalog: deps.Catalog,
		Ledger:  deps.Ledger,
		Logger:  deps.Logger,
	}

	return Module{
		Handler: httpadapter.Handler{
			CastVote:     castVote,
			RebuildTally: rebuildTally,
			CurrentTally: currentTally,
			ListVotes:    listVotes,
			Logger:       deps.Logger,
		},
	}
}

func NewInMemoryModule(seed []ports.PollState, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Catalog:     store,
		Claims:      store,
		Ledger:      store,
		Tallies:     store,
		Outbox:      store,
		Clock:       store,
		IDGenerator: store,
		Logger:      logger,
	})
	module.Store = store
	return module
}
