package commands

import (
	"context"
	"log/slog"
	"strings"

	application "agora/contexts/polling/results-service/application"
	domainerrors "agora/contexts/polling/results-service/domain/errors"
	"agora/contexts/polling/results-service/ports"
)

// InvalidateResultsCommand drops one poll's cached snapshot so the next read
// recomputes.
type InvalidateResultsCommand struct {
	PollID string
}

type InvalidateResultsUseCase struct {
	Cache  ports.SnapshotCache
	Logger *slog.Logger
}

func (uc InvalidateResultsUseCase) Execute(_ context.Context, cmd InvalidateResultsCommand) error {
	logger := application.ResolveLogger(uc.Logger)
	pollID := strings.TrimSpace(cmd.PollID)
	if pollID == "" {
		return domainerrors.ErrInvalidResultsInput
	}

	uc.Cache.Invalidate(pollID)
	logger.Info("results cache invalidated",
		"event", "results_cache_invalidated",
		"module", "polling/results-service",
		"layer", "application",
		"poll_id", pollID,
	)
	return nil
}
