package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"agora/contexts/polling/results-service/application/commands"
	"agora/contexts/polling/results-service/application/queries"
	"agora/contexts/polling/results-service/domain/entities"
	httptransport "agora/contexts/polling/results-service/transport/http"
)

type Handler struct {
	GetResults queries.GetResultsUseCase
	Refresh    commands.RefreshResultsUseCase
	Invalidate commands.InvalidateResultsUseCase
	Logger     *slog.Logger
}

func (h Handler) GetResultsHandler(ctx context.Context, pollID string) (httptransport.GetResultsResponse, error) {
	snapshot, err := h.GetResults.Execute(ctx, queries.GetResultsQuery{PollID: pollID})
	if err != nil {
		return httptransport.GetResultsResponse{}, err
	}
	return httptransport.GetResultsResponse{Results: mapSnapshot(snapshot)}, nil
}

func (h Handler) RefreshResultsHandler(ctx context.Context, pollID string, force bool) (httptransport.RefreshResultsResponse, error) {
	result, err := h.Refresh.Execute(ctx, commands.RefreshResultsCommand{PollID: pollID, Force: force})
	if err != nil {
		return httptransport.RefreshResultsResponse{}, err
	}
	return httptransport.RefreshResultsResponse{
		Results:   mapSnapshot(result.Snapshot),
		Refreshed: result.Refreshed,
	}, nil
}

func (h Handler) InvalidateResultsHandler(ctx context.Context, pollID string) (httptransport.InvalidateResultsResponse, error) {
	if err := h.Invalidate.Execute(ctx, commands.InvalidateResultsCommand{PollID: pollID}); err != nil {
		return httptransport.InvalidateResultsResponse{}, err
	}
	return httptransport.InvalidateResultsResponse{
		PollID:      pollID,
		Invalidated: true,
	}, nil
}

func mapSnapshot(snapshot entities.ResultSnapshot) httptransport.ResultSnapshotDTO {
	options := make([]httptransport.OptionResultDTO, 0, len(snapshot.Options))
	for _, option := range snapshot.Options {
		options = append(options, httptransport.OptionResultDTO{
			OptionID:   option.OptionID,
			Label:      option.Label,
			Position:   option.Position,
			VoteCount:  option.VoteCount,
			Percentage: option.Percentage,
		})
	}
	return httptransport.ResultSnapshotDTO{
		PollID:     snapshot.PollID,
		PollTitle:  snapshot.PollTitle,
		TotalVotes: snapshot.TotalVotes,
		Options:    options,
		ComputedAt: snapshot.ComputedAt.UTC().Format(time.RFC3339),
		Stale:      snapshot.Stale,
		Final:      snapshot.Final,
	}
}
