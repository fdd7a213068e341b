package bootstrap

import (
	"context"
	"errors"

	registryentities "agora/contexts/polling/poll-registry/domain/entities"
	registryerrors "agora/contexts/polling/poll-registry/domain/errors"
	registryports "agora/contexts/polling/poll-registry/ports"
	resultscommands "agora/contexts/polling/results-service/application/commands"
	resultsports "agora/contexts/polling/results-service/ports"
	votingqueries "agora/contexts/polling/voting-engine/application/queries"
	votingentities "agora/contexts/polling/voting-engine/domain/entities"
	votingports "agora/contexts/polling/voting-engine/ports"
)

// The composition root owns the seams between contexts. Each module sees
// only its own ports; these adapters translate at the boundary.

// pollStateCatalog serves voting admission checks straight from the
// registry store when every context shares one process.
type pollStateCatalog struct {
	polls registryports.PollRepository
}

func (c pollStateCatalog) GetPollState(ctx context.Context, pollID string) (votingports.PollState, bool, error) {
	poll, err := c.polls.GetPoll(ctx, pollID)
	if errors.Is(err, registryerrors.ErrPollNotFound) {
		return votingports.PollState{}, false, nil
	}
	if err != nil {
		return votingports.PollState{}, false, err
	}

	optionIDs := make([]string, 0, len(poll.Options))
	for _, option := range poll.Options {
		optionIDs = append(optionIDs, option.OptionID)
	}
	return votingports.PollState{
		PollID:    poll.PollID,
		Status:    string(poll.Status),
		ClosesAt:  poll.ClosesAt,
		OptionIDs: optionIDs,
	}, true, nil
}

// pollSummaryDirectory is the same seam for the results side.
type pollSummaryDirectory struct {
	polls registryports.PollRepository
}

func (d pollSummaryDirectory) GetPollSummary(ctx context.Context, pollID string) (resultsports.PollSummary, bool, error) {
	poll, err := d.polls.GetPoll(ctx, pollID)
	if errors.Is(err, registryerrors.ErrPollNotFound) {
		return resultsports.PollSummary{}, false, nil
	}
	if err != nil {
		return resultsports.PollSummary{}, false, err
	}
	return summaryFromPoll(poll), true, nil
}

func (d pollSummaryDirectory) OpenPollIDs(ctx context.Context, limit int) ([]string, error) {
	polls, err := d.polls.ListPolls(ctx, registryports.PollFilter{Status: registryentities.PollStatusOpen})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(polls))
	for _, poll := range polls {
		if limit > 0 && len(ids) >= limit {
			break
		}
		ids = append(ids, poll.PollID)
	}
	return ids, nil
}

func summaryFromPoll(poll registryentities.Poll) resultsports.PollSummary {
	options := make([]resultsports.PollOptionSummary, 0, len(poll.Options))
	for _, option := range poll.Options {
		options = append(options, resultsports.PollOptionSummary{
			OptionID: option.OptionID,
			Label:    option.Label,
			Position: option.Position,
		})
	}
	return resultsports.PollSummary{
		PollID:  poll.PollID,
		Title:   poll.Title,
		Status:  string(poll.Status),
		Options: options,
	}
}

// liveTallyProvider feeds results from the voting counters through the
// regular tally query, so cold counter stores still rebuild from the ledger.
type liveTallyProvider struct {
	query votingqueries.CurrentTallyUseCase
}

func (p liveTallyProvider) CurrentTally(ctx context.Context, pollID string) (resultsports.TallySummary, error) {
	tally, err := p.query.Execute(ctx, votingqueries.CurrentTallyQuery{PollID: pollID})
	if err != nil {
		return resultsports.TallySummary{}, err
	}
	return resultsports.TallySummary{
		PollID: tally.PollID,
		Counts: tally.Counts,
		Total:  tally.Total,
	}, nil
}

// snapshotNotifier pushes accepted votes into the results cache without a
// broker round trip. The outbox still carries the durable event.
type snapshotNotifier struct {
	apply resultscommands.ApplyVoteUseCase
}

func (n snapshotNotifier) VoteAccepted(ctx context.Context, vote votingentities.Vote) error {
	return n.apply.Execute(ctx, resultscommands.ApplyVoteCommand{
		PollID:   vote.PollID,
		OptionID: vote.OptionID,
		VoteID:   vote.VoteID,
	})
}
