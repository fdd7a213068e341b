package commands

import (
	"context"
	"log/slog"
	"strings"

	application "agora/contexts/polling/poll-registry/application"
	"agora/contexts/polling/poll-registry/domain/entities"
	domainerrors "agora/contexts/polling/poll-registry/domain/errors"
	"agora/contexts/polling/poll-registry/ports"
	eventsv1 "agora/contracts/gen/events/v1"
)

type ClosePollCommand struct {
	PollID  string
	ActorID string
}

type ClosePollUseCase struct {
	Polls       ports.PollRepository
	Outbox      ports.OutboxWriter
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func (uc ClosePollUseCase) Execute(ctx context.Context, cmd ClosePollCommand) (entities.Poll, error) {
	logger := application.ResolveLogger(uc.Logger)
	poll, err := uc.Polls.GetPoll(ctx, strings.TrimSpace(cmd.PollID))
	if err != nil {
		return entities.Poll{}, err
	}
	actorID := strings.TrimSpace(cmd.ActorID)
	if actorID == "" || poll.CreatedBy != actorID {
		return entities.Poll{}, domainerrors.ErrInvalidPollInput
	}
	if poll.Status == entities.PollStatusClosed {
		return entities.Poll{}, domainerrors.ErrPollAlreadyClosed
	}

	now := uc.Clock.Now().UTC()
	poll.Status = entities.PollStatusClosed
	poll.ClosedAt = &now
	poll.UpdatedAt = now
	if err := uc.Polls.UpdatePoll(ctx, poll); err != nil {
		return entities.Poll{}, err
	}

	if uc.Outbox != nil {
		eventID, err := uc.IDGenerator.NewID(ctx)
		if err != nil {
			return entities.Poll{}, err
		}
		envelope, err := newRegistryEnvelope(
			eventID,
			eventsv1.EventTypePollClosed,
			poll.PollID,
			now,
			eventsv1.PollClosedData{
				PollID:   poll.PollID,
				ClosedBy: actorID,
				ClosedAt: now,
			},
		)
		if err != nil {
			return entities.Poll{}, err
		}
		if err := uc.Outbox.AppendOutbox(ctx, envelope); err != nil {
			return entities.Poll{}, err
		}
	}

	logger.Info("poll closed",
		"event", "poll_closed",
		"module", "polling/poll-registry",
		"layer", "application",
		"poll_id", poll.PollID,
		"closed_by", actorID,
	)
	return poll, nil
}
