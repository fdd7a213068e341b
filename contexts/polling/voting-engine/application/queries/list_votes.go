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

// ListVotesQuery replays the accepted votes of one poll in ledger order.
type ListVotesQuery struct {
	PollID string
}

// ListVotesUseCase exposes the raw ledger, mainly for audits and for
// downstream rebuilds.
type ListVotesUseCase struct {
	Catalog ports.PollCatalog
	Ledger  ports.VoteLedger
	Logger  *slog.Logger
}

func (uc ListVotesUseCase) Execute(ctx context.Context, query ListVotesQuery) ([]entities.Vote, error) {
	logger := application.ResolveLogger(uc.Logger)
	pollID := strings.TrimSpace(query.PollID)
	if pollID == "" {
		return nil, domainerrors.ErrInvalidVoteInput
	}

	_, exists, err := uc.Catalog.GetPollState(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domainerrors.ErrPollNotFound
	}

	votes, err := uc.Ledger.ReadAllVotes(ctx, pollID)
	if err != nil {
		return nil, err
	}
	logger.Info("votes listed",
		"event", "voting_votes_listed",
		"module", "polling/voting-engine",
		"layer", "application",
		"poll_id", pollID,
		"count", len(votes),
	)
	return votes, nil
}
