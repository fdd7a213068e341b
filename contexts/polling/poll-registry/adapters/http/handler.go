package httpadapter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"agora/contexts/polling/poll-registry/application/commands"
	"agora/contexts/polling/poll-registry/application/queries"
	"agora/contexts/polling/poll-registry/domain/entities"
	domainerrors "agora/contexts/polling/poll-registry/domain/errors"
	httptransport "agora/contexts/polling/poll-registry/transport/http"
)

type Handler struct {
	CreatePoll commands.CreatePollUseCase
	ClosePoll  commands.ClosePollUseCase
	GetPoll    queries.GetPollUseCase
	ListPolls  queries.ListPollsUseCase
	Logger     *slog.Logger
}

func (h Handler) CreatePollHandler(
	ctx context.Context,
	userID string,
	idempotencyKey string,
	req httptransport.CreatePollRequest,
) (httptransport.CreatePollResponse, error) {
	closesAt, err := parseClosesAt(req.ClosesAt)
	if err != nil {
		return httptransport.CreatePollResponse{}, domainerrors.ErrInvalidPollInput
	}
	result, err := h.CreatePoll.Execute(ctx, commands.CreatePollCommand{
		CreatedBy:      userID,
		IdempotencyKey: idempotencyKey,
		Title:          req.Title,
		Description:    req.Description,
		OptionLabels:   append([]string(nil), req.Options...),
		ClosesAt:       closesAt,
	})
	if err != nil {
		return httptransport.CreatePollResponse{}, err
	}
	return httptransport.CreatePollResponse{
		Poll:     mapPoll(result.Poll),
		Replayed: result.Replayed,
	}, nil
}

func (h Handler) ClosePollHandler(ctx context.Context, userID string, pollID string) (httptransport.ClosePollResponse, error) {
	poll, err := h.ClosePoll.Execute(ctx, commands.ClosePollCommand{
		PollID:  pollID,
		ActorID: userID,
	})
	if err != nil {
		return httptransport.ClosePollResponse{}, err
	}
	return httptransport.ClosePollResponse{Poll: mapPoll(poll)}, nil
}

func (h Handler) GetPollHandler(ctx context.Context, pollID string) (httptransport.GetPollResponse, error) {
	poll, err := h.GetPoll.Execute(ctx, pollID)
	if err != nil {
		return httptransport.GetPollResponse{}, err
	}
	return httptransport.GetPollResponse{Poll: mapPoll(poll)}, nil
}

func (h Handler) ListPollsHandler(ctx context.Context, createdBy string, status string) (httptransport.ListPollsResponse, error) {
	items, err := h.ListPolls.Execute(ctx, queries.ListPollsQuery{
		CreatedBy: createdBy,
		Status:    status,
	})
	if err != nil {
		return httptransport.ListPollsResponse{}, err
	}
	result := make([]httptransport.PollDTO, 0, len(items))
	for _, item := range items {
		result = append(result, mapPoll(item))
	}
	return httptransport.ListPollsResponse{Items: result}, nil
}

func mapPoll(item entities.Poll) httptransport.PollDTO {
	options := make([]httptransport.PollOptionDTO, 0, len(item.Options))
	for _, option := range item.Options {
		options = append(options, httptransport.PollOptionDTO{
			OptionID: option.OptionID,
			Label:    option.Label,
			Position: option.Position,
		})
	}
	result := httptransport.PollDTO{
		PollID:      item.PollID,
		Title:       item.Title,
		Description: item.Description,
		CreatedBy:   item.CreatedBy,
		Options:     options,
		Status:      string(item.Status),
		CreatedAt:   item.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   item.UpdatedAt.Format(time.RFC3339),
	}
	if item.ClosesAt != nil {
		result.ClosesAt = item.ClosesAt.UTC().Format(time.RFC3339)
	}
	if item.ClosedAt != nil {
		result.ClosedAt = item.ClosedAt.UTC().Format(time.RFC3339)
	}
	return result
}

func parseClosesAt(raw string) (*time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("parse closes_at: %w", err)
	}
	utc := parsed.UTC()
	return &utc, nil
}
