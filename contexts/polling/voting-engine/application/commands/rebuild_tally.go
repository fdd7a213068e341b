package commands

import (
	"context"
	"log/slog"
	"strings"

	application "agora/contexts/polling/voting-engine/application"
	"agora/contexts/polling/voting-engine/domain/entities"
	domainerrors "agora/contexts/polling/voting-engine/domain/errors"
	"agora/contexts/polling/voting-engine/ports"
)

// RebuildTallyCommand asks for one poll's counters to be recomputed from the
// ledger.
type RebuildTallyCommand struct {
	PollID string
}

// RebuildTallyResult reports what the rebuild found. Corrected is true when
// the stored counters disagreed with the ledger and were replaced.
type RebuildTallyResult struct {
	PollID    string
	Total     int64
	Corrected bool
}

// RebuildTallyUseCase replays the vote ledger for a poll and reconciles the
// tally store against it. The ledger is authoritative; counter drift is
// repaired in place, while a ledger carrying two votes from one voter is
// unrepairable and reported as drift.
type RebuildTallyUseCase struct {
	Catalog ports.PollCatalog
	Ledger  ports.VoteLedger
	Tallies ports.TallyStore
	Logger  *slog.Logger
}

func (uc RebuildTallyUseCase) Execute(ctx context.Context, cmd RebuildTallyCommand) (RebuildTallyResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	pollID := strings.TrimSpace(cmd.PollID)
	if pollID == "" {
		return RebuildTallyResult{}, domainerrors.ErrInvalidVoteInput
	}

	_, found, err := uc.Catalog.GetPollState(ctx, pollID)
	if err != nil {
		return RebuildTallyResult{}, err
	}
	if !found {
		return RebuildTallyResult{}, domainerrors.ErrPollNotFound
	}

	votes, err := uc.Ledger.ReadAllVotes(ctx, pollID)
	if err != nil {
		logger.Error("tally rebuild ledger read failed",
			"event", "voting_rebuild_ledger_read_failed",
			"module", "polling/voting-engine",
			"layer", "application",
			"poll_id", pollID,
			"error", err.Error(),
		)
		return RebuildTallyResult{}, err
	}
	seen := make(map[string]struct{}, len(votes))
	for _, vote := range votes {
		if _, dup := seen[vote.VoterID]; dup {
			logger.Error("tally rebuild found duplicate voter in ledger",
				"event", "voting_rebuild_drift_detected",
				"module", "polling/voting-engine",
				"layer", "application",
				"poll_id", pollID,
				"voter_id", vote.VoterID,
				"vote_id", vote.VoteID,
			)
			return RebuildTallyResult{}, domainerrors.ErrTallyDrift
		}
		seen[vote.VoterID] = struct{}{}
	}

	rebuilt := entities.TallyFromVotes(pollID, votes)
	stored, cached, err := uc.Tallies.GetTally(ctx, pollID)
	if err != nil {
		return RebuildTallyResult{}, err
	}
	if cached && stored.Equal(rebuilt) {
		logger.Info("tally rebuild found counters consistent",
			"event", "voting_rebuild_consistent",
			"module", "polling/voting-engine",
			"layer", "application",
			"poll_id", pollID,
			"total", rebuilt.Total,
		)
		return RebuildTallyResult{PollID: pollID, Total: rebuilt.Total}, nil
	}

	if err := uc.Tallies.ReplaceTally(ctx, rebuilt); err != nil {
		logger.Error("tally rebuild replace failed",
			"event", "voting_rebuild_replace_failed",
			"module", "polling/voting-engine",
			"layer", "application",
			"poll_id", pollID,
			"error", err.Error(),
		)
		return RebuildTallyResult{}, err
	}
	logger.Warn("tally rebuilt from ledger",
		"event", "voting_rebuild_corrected",
		"module", "polling/voting-engine",
		"layer", "application",
		"poll_id", pollID,
		"total", rebuilt.Total,
		"had_counters", cached,
	)
	return RebuildTallyResult{PollID: pollID, Total: rebuilt.Total, Corrected: true}, nil
}
