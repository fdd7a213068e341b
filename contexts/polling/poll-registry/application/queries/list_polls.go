package queries

import (
	"context"
	"log/slog"
	"strings"

	application "agora/contexts/polling/poll-registry/application"
	"agora/contexts/polling/poll-registry/domain/entities"
	"agora/contexts/polling/poll-registry/ports"
)

type ListPollsQuery struct {
	CreatedBy string
	Status    string
}

type ListPollsUseCase struct {
	Polls  ports.PollRepository
	Logger *slog.Logger
}

func (uc ListPollsUseCase) Execute(ctx context.Context, query ListPollsQuery) ([]entities.Poll, error) {
	logger := application.ResolveLogger(uc.Logger)
	filter := ports.PollFilter{
		CreatedBy: strings.TrimSpace(query.CreatedBy),
	}
	if strings.TrimSpace(query.Status) != "" {
		filter.Status = entities.PollStatus(strings.TrimSpace(query.Status))
	}
	items, err := uc.Polls.ListPolls(ctx, filter)
	if err != nil {
		return nil, err
	}
	logger.Info("polls listed",
		"event", "polls_listed",
		"module", "polling/poll-registry",
		"layer", "application",
		"count", len(items),
	)
	return items, nil
}
