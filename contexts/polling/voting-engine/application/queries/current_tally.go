package queries

import (
	"context"
	"log/slog"
	"strings"

	application "agora/contexts/polling/voting-engine/application"
	"agora/contexts/polling/voting-engine/domain/entities"
	domainerrors "agora/contexts/polling/voting-engine/domain/errors"
	"agora/contexts/polling/voting-engine/ports"
)

// CurrentTallyQuery reads the live counters for one poll.
type CurrentTallyQuery struct {
	PollID string
}

// CurrentTallyUseCase serves counters from the tally store and falls back to
// a ledger replay on a cold store, so counts survive process restarts.
type CurrentTallyUseCase struct {
	Catalog ports.PollCatalog
	Ledger  ports.VoteLedger
	Tallies ports.TallyStore
	Logger  *slog.Logger
}

func (uc CurrentTallyUseCase) Execute(ctx context.Context, query CurrentTallyQuery) (entities.Tally, error) {
	logger := application.ResolveLogger(uc.Logger)
	pollID := strings.TrimSpace(query.PollID)
	if pollID == "" {
		return entities.Tally{}, domainerrors.ErrInvalidVoteInput
	}

	tally, found, err := uc.Tallies.GetTally(ctx, pollID)
	if err != nil {
		return entities.Tally{}, err
	}
	if found {
		return tally, nil
	}

	_, exists, err := uc.Catalog.GetPollState(ctx, pollID)
	if err != nil {
		return entities.Tally{}, err
	}
	if !exists {
		return entities.Tally{}, domainerrors.ErrPollNotFound
	}

	votes, err := uc.Ledger.ReadAllVotes(ctx, pollID)
	if err != nil {
		logger.Error("cold tally replay failed",
			"event", "voting_cold_replay_failed",
			"module", "polling/voting-engine",
			"layer", "application",
			"poll_id", pollID,
			"error", err.Error(),
		)
		return entities.Tally{}, err
	}
	rebuilt := entities.TallyFromVotes(pollID, votes)
	if err := uc.Tallies.ReplaceTally(ctx, rebuilt); err != nil {
		logger.Error("cold tally store seed failed",
			"event", "voting_cold_seed_failed",
			"module", "polling/voting-engine",
			"layer", "application",
			"poll_id", pollID,
			"error", err.Error(),
		)
	} else {
		logger.Info("tally rebuilt on cold read",
			"event", "voting_cold_replay_completed",
			"module", "polling/voting-engine",
			"layer", "application",
			"poll_id", pollID,
			"total", rebuilt.Total,
		)
	}
	return rebuilt, nil
}
