package queries

import (
	"context"
	"log/slog"
	"strings"

	"agora/contexts/polling/poll-registry/domain/entities"
	"agora/contexts/polling/poll-registry/ports"
)

type GetPollUseCase struct {
	Polls  ports.PollRepository
	Logger *slog.Logger
}

func (uc GetPollUseCase) Execute(ctx context.Context, pollID string) (entities.Poll, error) {
	poll, err := uc.Polls.GetPoll(ctx, strings.TrimSpace(pollID))
	if err != nil {
		return entities.Poll{}, err
	}
	return poll, nil
}
