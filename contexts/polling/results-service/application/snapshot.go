package application

import (
	"time"

	"agora/contexts/polling/results-service/domain/entities"
	"agora/contexts/polling/results-service/ports"
)

// BuildSnapshot derives a full snapshot from the catalog projection and the
// live counters. Every catalog option appears, zero-vote ones included, in
// catalog position order.
func BuildSnapshot(
	poll ports.PollSummary,
	tally ports.TallySummary,
	computedAt time.Time,
	final bool,
) entities.ResultSnapshot {
	options := make([]entities.OptionResult, 0, len(poll.Options))
	for _, option := range poll.Options {
		count := tally.Counts[option.OptionID]
		options = append(options, entities.OptionResult{
			OptionID:   option.OptionID,
			Label:      option.Label,
			Position:   option.Position,
			VoteCount:  count,
			Percentage: entities.Percentage(count, tally.Total),
		})
	}
	return entities.ResultSnapshot{
		PollID:     poll.PollID,
		PollTitle:  poll.Title,
		TotalVotes: tally.Total,
		Options:    options,
		ComputedAt: computedAt.UTC(),
		Final:      final,
	}
}
