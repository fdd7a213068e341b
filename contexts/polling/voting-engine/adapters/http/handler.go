package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"agora/contexts/polling/voting-engine/application/commands"
	"agora/contexts/polling/voting-engine/application/queries"
	"agora/contexts/polling/voting-engine/domain/entities"
	httptransport "agora/contexts/polling/voting-engine/transport/http"
)

type Handler struct {
	CastVote     commands.CastVoteUseCase
	RebuildTally commands.RebuildTallyUseCase
	CurrentTally queries.CurrentTallyUseCase
	ListVotes    queries.ListVotesUseCase
	Logger       *slog.Logger
}

func (h Handler) CastVoteHandler(
	ctx context.Context,
	voterID string,
	pollID string,
	req httptransport.CastVoteRequest,
) (httptransport.CastVoteResponse, error) {
	result, err := h.CastVote.Execute(ctx, commands.CastVoteCommand{
		PollID:   pollID,
		OptionID: req.OptionID,
		VoterID:  voterID,
	})
	if err != nil {
		return httptransport.CastVoteResponse{}, err
	}
	return httptransport.CastVoteResponse{Vote: mapVote(result.Vote)}, nil
}

func (h Handler) GetTallyHandler(ctx context.Context, pollID string) (httptransport.GetTallyResponse, error) {
	tally, err := h.CurrentTally.Execute(ctx, queries.CurrentTallyQuery{PollID: pollID})
	if err != nil {
		return httptransport.GetTallyResponse{}, err
	}
	return httptransport.GetTallyResponse{Tally: mapTally(tally)}, nil
}

func (h Handler) ListVotesHandler(ctx context.Context, pollID string) (httptransport.ListVotesResponse, error) {
	votes, err := h.ListVotes.Execute(ctx, queries.ListVotesQuery{PollID: pollID})
	if err != nil {
		return httptransport.ListVotesResponse{}, err
	}
	items := make([]httptransport.VoteDTO, 0, len(votes))
	for _, vote := range votes {
		items = append(items, mapVote(vote))
	}
	return httptransport.ListVotesResponse{Items: items}, nil
}

func (h Handler) RebuildTallyHandler(ctx context.Context, pollID string) (httptransport.RebuildTallyResponse, error) {
	result, err := h.RebuildTally.Execute(ctx, commands.RebuildTallyCommand{PollID: pollID})
	if err != nil {
		return httptransport.RebuildTallyResponse{}, err
	}
	return httptransport.RebuildTallyResponse{
		PollID:    result.PollID,
		Total:     result.Total,
		Corrected: result.Corrected,
	}, nil
}

func mapVote(vote entities.Vote) httptransport.VoteDTO {
	return httptransport.VoteDTO{
		VoteID:   vote.VoteID,
		PollID:   vote.PollID,
		OptionID: vote.OptionID,
		VoterID:  vote.VoterID,
		Position: vote.Position,
		CastAt:   vote.CastAt.UTC().Format(time.RFC3339),
	}
}

func mapTally(tally entities.Tally) httptransport.TallyDTO {
	counts := make(map[string]int64, len(tally.Counts))
	for optionID, count := range tally.Counts {
		counts[optionID] = count
	}
	return httptransport.TallyDTO{
		PollID: tally.PollID,
		Counts: counts,
		Total:  tally.Total,
	}
}
