package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "agora/contexts/polling/results-service/application"
	domainerrors "agora/contexts/polling/results-service/domain/errors"
	"agora/contexts/polling/results-service/ports"
)

// ApplyVoteCommand patches one accepted vote into the cached snapshot.
type ApplyVoteCommand struct {
	PollID   string
	OptionID string
	VoteID   string
}

// ApplyVoteUseCase is the cheap write-through path for accepted votes. It
// only touches polls that are already cached and never touches final
// snapshots; anything it cannot patch is left for the next recompute.
type ApplyVoteUseCase struct {
	Cache     ports.SnapshotCache
	Snapshots ports.SnapshotStore
	Clock     ports.Clock
	Logger    *slog.Logger
}

func (uc ApplyVoteUseCase) Execute(ctx context.Context, cmd ApplyVoteCommand) error {
	logger := application.ResolveLogger(uc.Logger)
	pollID := strings.TrimSpace(cmd.PollID)
	optionID := strings.TrimSpace(cmd.OptionID)
	if pollID == "" || optionID == "" {
		return domainerrors.ErrInvalidResultsInput
	}

	snapshot, ok := uc.Cache.Get(pollID)
	if !ok {
		return nil
	}
	if snapshot.Final {
		logger.Debug("vote arrived for finalized snapshot, ignoring",
			"event", "results_apply_vote_after_final",
			"module", "polling/results-service",
			"layer", "application",
			"poll_id", pollID,
			"vote_id", strings.TrimSpace(cmd.VoteID),
		)
		return nil
	}

	updated, ok := snapshot.WithVote(optionID, uc.now())
	if !ok {
		// The cached snapshot predates this option set; drop it and let the
		// next read recompute.
		uc.Cache.Invalidate(pollID)
		logger.Warn("cached snapshot missing voted option, invalidated",
			"event", "results_apply_vote_option_missing",
			"module", "polling/results-service",
			"layer", "application",
			"poll_id", pollID,
			"option_id", optionID,
		)
		return nil
	}

	uc.Cache.Set(updated)
	if err := uc.Snapshots.PutSnapshot(ctx, updated); err != nil {
		logger.Error("snapshot persist failed after vote apply",
			"event", "results_apply_vote_persist_failed",
			"module", "polling/results-service",
			"layer", "application",
			"poll_id", pollID,
			"error", err.Error(),
		)
	}
	return nil
}

func (uc ApplyVoteUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
