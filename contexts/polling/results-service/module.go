package resultsservice

import (
	"log/slog"

	"golang.org/x/sync/singleflight"

	cacheadapter "agora/contexts/polling/results-service/adapters/cache"
	httpadapter "agora/contexts/polling/results-service/adapters/http"
	"agora/contexts/polling/results-service/adapters/memory"
	"agora/contexts/polling/results-service/application/commands"
	"agora/contexts/polling/results-service/application/queries"
	"agora/contexts/polling/results-service/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
	Cache   *cacheadapter.SnapshotCache
}

type Dependencies struct {
	Directory ports.PollDirectory
	Tallies   ports.TallyProvider
	Cache     ports.SnapshotCache
	Snapshots ports.SnapshotStore
	Clock     ports.Clock
	Logger    *slog.Logger
}

func NewModule(deps Dependencies) Module {
	flight := &singleflight.Group{}
	getResults := queries.GetResultsUseCase{
		Directory: deps.Directory,
		Tallies:   deps.Tallies,
		Cache:     deps.Cache,
		Snapshots: deps.Snapshots,
		Flight:    flight,
		Clock:     deps.Clock,
		Logger:    deps.Logger,
	}
	refresh := commands.RefreshResultsUseCase{
		Directory: deps.Directory,
		Tallies:   deps.Tallies,
		Cache:     deps.Cache,
		Snapshots: deps.Snapshots,
		Clock:     deps.Clock,
		Logger:    deps.Logger,
	}
	invalidate := commands.InvalidateResultsUseCase{
		Cache:  deps.Cache,
		Logger: deps.Logger,
	}

	return Module{
		Handler: httpadapter.Handler{
			GetResults: getResults,
			Refresh:    refresh,
			Invalidate: invalidate,
			Logger:     deps.Logger,
		},
	}
}

func NewInMemoryModule(seed []ports.PollSummary, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	cache := cacheadapter.NewSnapshotCache(0, 0, 0)
	module := NewModule(Dependencies{
		Directory: store,
		Tallies:   store,
		Cache:     cache,
		Snapshots: store,
		Clock:     store,
		Logger:    logger,
	})
	module.Store = store
	module.Cache = cache
	return module
}
