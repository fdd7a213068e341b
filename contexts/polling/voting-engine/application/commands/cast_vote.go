package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "agora/contexts/polling/voting-engine/application"
	"agora/contexts/polling/voting-engine/domain/entities"
	domainerrors "agora/contexts/polling/voting-engine/domain/errors"
	"agora/contexts/polling/voting-engine/ports"
	eventsv1 "agora/contracts/gen/events/v1"
)

// CastVoteCommand is the write-model input for ballot admission.
type CastVoteCommand struct {
	PollID   string
	OptionID string
	VoterID  string
}

// CastVoteResult returns the accepted vote with its assigned ledger position.
type CastVoteResult struct {
	Vote entities.Vote
}

// CastVoteUseCase runs the admission pipeline: eligibility, claim, ledger
// append, tally increment, event emission. The voter claim is the only step
// rolled back on failure; once the append succeeds the vote stays accepted
// and later steps degrade to logged errors.
type CastVoteUseCase struct {
	Catalog  ports.PollCatalog
	Claims   ports.VoterRegistry
	Ledger   ports.VoteLedger
	Tallies  ports.TallyStore
	Notifier ports.ResultsNotifier
	Outbox   ports.OutboxWriter
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Logger   *slog.Logger
}

func (uc CastVoteUseCase) Execute(ctx context.Context, cmd CastVoteCommand) (CastVoteResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	pollID := strings.TrimSpace(cmd.PollID)
	optionID := strings.TrimSpace(cmd.OptionID)
	voterID := strings.TrimSpace(cmd.VoterID)

	logger.Info("vote admission started",
		"event", "voting_admission_started",
		"module", "polling/voting-engine",
		"layer", "application",
		"poll_id", pollID,
		"option_id", optionID,
		"voter_id", voterID,
	)
	if pollID == "" || optionID == "" || voterID == "" {
		logger.Warn("vote admission validation failed",
			"event", "voting_admission_validation_failed",
			"module", "polling/voting-engine",
			"layer", "application",
			"poll_id", pollID,
			"option_id", optionID,
		)
		return CastVoteResult{}, domainerrors.ErrInvalidVoteInput
	}

	now := uc.now()
	state, found, err := uc.Catalog.GetPollState(ctx, pollID)
	if err != nil {
		logger.Error("vote admission poll lookup failed",
			"event", "voting_admission_poll_lookup_failed",
			"module", "polling/voting-engine",
			"layer", "application",
			"poll_id", pollID,
			"error", err.Error(),
		)
		return CastVoteResult{}, err
	}
	if !found {
		return CastVoteResult{}, domainerrors.ErrPollNotFound
	}
	if !state.AcceptingVotes(now) {
		logger.Info("vote rejected for closed poll",
			"event", "voting_admission_poll_closed",
			"module", "polling/voting-engine",
			"layer", "application",
			"poll_id", pollID,
			"voter_id", voterID,
		)
		return CastVoteResult{}, domainerrors.ErrPollClosed
	}
	if !state.HasOption(optionID) {
		logger.Warn("vote rejected for foreign option",
			"event", "voting_admission_option_mismatch",
			"module", "polling/voting-engine",
			"layer", "application",
			"poll_id", pollID,
			"option_id", optionID,
		)
		return CastVoteResult{}, domainerrors.ErrOptionNotInPoll
	}

	claimed, err := uc.Claims.TryClaim(ctx, pollID, voterID)
	if err != nil {
		logger.Error("vote admission claim failed",
			"event", "voting_admission_claim_failed",
			"module", "polling/voting-engine",
			"layer", "application",
			"poll_id", pollID,
			"voter_id", voterID,
			"error", err.Error(),
		)
		return CastVoteResult{}, err
	}
	if !claimed {
		logger.Info("vote rejected as duplicate",
			"event", "voting_admission_duplicate",
			"module", "polling/voting-engine",
			"layer", "application",
			"poll_id", pollID,
			"voter_id", voterID,
		)
		return CastVoteResult{}, domainerrors.ErrDuplicateVote
	}

	voteID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		uc.releaseClaim(ctx, pollID, voterID)
		return CastVoteResult{}, err
	}
	vote := entities.Vote{
		VoteID:   voteID,
		PollID:   pollID,
		OptionID: optionID,
		VoterID:  voterID,
		CastAt:   now,
	}
	position, err := uc.Ledger.AppendVote(ctx, vote)
	if err != nil {
		// The claim must not outlive a failed append, otherwise the voter is
		// locked out without a recorded vote.
		uc.releaseClaim(ctx, pollID, voterID)
		logger.Error("vote ledger append failed",
			"event", "voting_admission_append_failed",
			"module", "polling/voting-engine",
			"layer", "application",
			"poll_id", pollID,
			"voter_id", voterID,
			"error", err.Error(),
		)
		return CastVoteResult{}, err
	}
	vote.Position = position

	// The vote is durable from here on. Tally, notifier and outbox failures
	// are logged and left to rebuild/refresh machinery.
	if err := uc.Tallies.IncrementOption(ctx, pollID, optionID); err != nil {
		logger.Error("tally increment failed after accepted vote",
			"event", "voting_tally_increment_failed",
			"module", "polling/voting-engine",
			"layer", "application",
			"poll_id", pollID,
			"option_id", optionID,
			"vote_id", vote.VoteID,
			"error", err.Error(),
		)
	}
	if uc.Notifier != nil {
		if err := uc.Notifier.VoteAccepted(ctx, vote); err != nil {
			logger.Error("results notification failed after accepted vote",
				"event", "voting_results_notify_failed",
				"module", "polling/voting-engine",
				"layer", "application",
				"poll_id", pollID,
				"vote_id", vote.VoteID,
				"error", err.Error(),
			)
		}
	}
	if err := uc.appendVoteAcceptedEvent(ctx, vote, now); err != nil {
		logger.Error("vote event append failed after accepted vote",
			"event", "voting_event_append_failed",
			"module", "polling/voting-engine",
			"layer", "application",
			"poll_id", pollID,
			"vote_id", vote.VoteID,
			"error", err.Error(),
		)
	}

	logger.Info("vote accepted",
		"event", "voting_vote_accepted",
		"module", "polling/voting-engine",
		"layer", "application",
		"poll_id", pollID,
		"option_id", optionID,
		"voter_id", voterID,
		"vote_id", vote.VoteID,
		"position", vote.Position,
	)
	return CastVoteResult{Vote: vote}, nil
}

// releaseClaim rolls back a voter claim after a failed admission. It runs on
// a context detached from the request so a caller timeout cannot leave the
// voter permanently claimed without a vote.
func (uc CastVoteUseCase) releaseClaim(ctx context.Context, pollID string, voterID string) {
	logger := application.ResolveLogger(uc.Logger)
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := uc.Claims.ReleaseClaim(releaseCtx, pollID, voterID); err != nil {
		logger.Error("voter claim release failed; voter may be locked out until restart",
			"event", "voting_claim_release_failed",
			"module", "polling/voting-engine",
			"layer", "application",
			"poll_id", pollID,
			"voter_id", voterID,
			"error", err.Error(),
		)
	}
}

func (uc CastVoteUseCase) appendVoteAcceptedEvent(ctx context.Context, vote entities.Vote, occurredAt time.Time) error {
	// Outbox is optional for pure read/test wiring, so nil is treated as no-op.
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := newVotingEnvelope(
		eventID,
		eventsv1.EventTypeVoteAccepted,
		vote.PollID,
		occurredAt,
		eventsv1.VoteAcceptedData{
			VoteID:   vote.VoteID,
			PollID:   vote.PollID,
			OptionID: vote.OptionID,
			VoterID:  vote.VoterID,
			Position: vote.Position,
			CastAt:   vote.CastAt,
		},
	)
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, envelope)
}

func (uc CastVoteUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
