package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	application "agora/contexts/polling/poll-registry/application"
	"agora/contexts/polling/poll-registry/domain/entities"
	domainerrors "agora/contexts/polling/poll-registry/domain/errors"
	"agora/contexts/polling/poll-registry/ports"
	eventsv1 "agora/contracts/gen/events/v1"
)

type CreatePollCommand struct {
	CreatedBy      string
	IdempotencyKey string
	Title          string
	Description    string
	OptionLabels   []string
	ClosesAt       *time.Time
}

type CreatePollUseCase struct {
	Polls          ports.PollRepository
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	Clock          ports.Clock
	IDGenerator    ports.IDGenerator
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

type CreatePollResult struct {
	Poll     entities.Poll
	Replayed bool
}

type createPollReplayPayload struct {
	PollID      string              `json:"poll_id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	CreatedBy   string              `json:"created_by"`
	Options     []replayPollOption  `json:"options"`
	Status      entities.PollStatus `json:"status"`
	ClosesAt    *time.Time          `json:"closes_at"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

type replayPollOption struct {
	OptionID string `json:"option_id"`
	Label    string `json:"label"`
	Position int    `json:"position"`
}

func (uc CreatePollUseCase) Execute(ctx context.Context, cmd CreatePollCommand) (CreatePollResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.IdempotencyKey) == "" {
		return CreatePollResult{}, domainerrors.ErrIdempotencyKeyRequired
	}

	now := uc.Clock.Now().UTC()
	requestHash := hashCreatePollCommand(cmd)
	if record, found, err := uc.Idempotency.GetRecord(ctx, cmd.IdempotencyKey, now); err != nil {
		return CreatePollResult{}, err
	} else if found {
		if record.RequestHash != requestHash {
			return CreatePollResult{}, domainerrors.ErrIdempotencyKeyConflict
		}
		var payload createPollReplayPayload
		if err := json.Unmarshal(record.ResponsePayload, &payload); err != nil {
			return CreatePollResult{}, err
		}
		options := make([]entities.Option, 0, len(payload.Options))
		for _, option := range payload.Options {
			options = append(options, entities.Option{
				OptionID: option.OptionID,
				PollID:   payload.PollID,
				Label:    option.Label,
				Position: option.Position,
			})
		}
		return CreatePollResult{
			Poll: entities.Poll{
				PollID:      payload.PollID,
				Title:       payload.Title,
				Description: payload.Description,
				CreatedBy:   payload.CreatedBy,
				Options:     options,
				Status:      payload.Status,
				ClosesAt:    payload.ClosesAt,
				CreatedAt:   payload.CreatedAt,
				UpdatedAt:   payload.UpdatedAt,
			},
			Replayed: true,
		}, nil
	}

	pollID, err := uc.IDGenerator.NewID(ctx)
	if err != nil {
		return CreatePollResult{}, err
	}

	options := make([]entities.Option, 0, len(cmd.OptionLabels))
	for index, label := range cmd.OptionLabels {
		optionID, err := uc.IDGenerator.NewID(ctx)
		if err != nil {
			return CreatePollResult{}, err
		}
		options = append(options, entities.Option{
			OptionID: optionID,
			PollID:   pollID,
			Label:    strings.TrimSpace(label),
			Position: index,
		})
	}

	poll := entities.Poll{
		PollID:      pollID,
		Title:       strings.TrimSpace(cmd.Title),
		Description: strings.TrimSpace(cmd.Description),
		CreatedBy:   strings.TrimSpace(cmd.CreatedBy),
		Options:     options,
		Status:      entities.PollStatusOpen,
		ClosesAt:    cmd.ClosesAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if !poll.ValidateBasics(now) || poll.CreatedBy == "" {
		return CreatePollResult{}, domainerrors.ErrInvalidPollInput
	}

	if err := uc.Polls.CreatePoll(ctx, poll); err != nil {
		return CreatePollResult{}, err
	}

	replayOptions := make([]replayPollOption, 0, len(poll.Options))
	for _, option := range poll.Options {
		replayOptions = append(replayOptions, replayPollOption{
			OptionID: option.OptionID,
			Label:    option.Label,
			Position: option.Position,
		})
	}
	payload := createPollReplayPayload{
		PollID:      poll.PollID,
		Title:       poll.Title,
		Description: poll.Description,
		CreatedBy:   poll.CreatedBy,
		Options:     replayOptions,
		Status:      poll.Status,
		ClosesAt:    poll.ClosesAt,
		CreatedAt:   poll.CreatedAt,
		UpdatedAt:   poll.UpdatedAt,
	}
	serialized, err := json.Marshal(payload)
	if err != nil {
		return CreatePollResult{}, err
	}
	if err := uc.Idempotency.PutRecord(ctx, ports.IdempotencyRecord{
		Key:             cmd.IdempotencyKey,
		RequestHash:     requestHash,
		ResponsePayload: serialized,
		ExpiresAt:       now.Add(uc.IdempotencyTTL),
	}); err != nil {
		return CreatePollResult{}, err
	}
	if uc.Outbox != nil {
		eventID, err := uc.IDGenerator.NewID(ctx)
		if err != nil {
			return CreatePollResult{}, err
		}
		envelope, err := newRegistryEnvelope(
			eventID,
			eventsv1.EventTypePollCreated,
			poll.PollID,
			now,
			eventsv1.PollCreatedData{
				PollID:      poll.PollID,
				Title:       poll.Title,
				CreatedBy:   poll.CreatedBy,
				OptionCount: len(poll.Options),
				ClosesAt:    poll.ClosesAt,
				CreatedAt:   poll.CreatedAt,
			},
		)
		if err != nil {
			return CreatePollResult{}, err
		}
		if err := uc.Outbox.AppendOutbox(ctx, envelope); err != nil {
			return CreatePollResult{}, err
		}
	}

	logger.Info("poll created",
		"event", "poll_created",
		"module", "polling/poll-registry",
		"layer", "application",
		"poll_id", poll.PollID,
		"created_by", poll.CreatedBy,
		"option_count", len(poll.Options),
	)
	return CreatePollResult{Poll: poll}, nil
}

func hashCreatePollCommand(cmd CreatePollCommand) string {
	labels := make([]string, 0, len(cmd.OptionLabels))
	for _, label := range cmd.OptionLabels {
		labels = append(labels, strings.TrimSpace(label))
	}
	payload := map[string]any{
		"created_by":  strings.TrimSpace(cmd.CreatedBy),
		"title":       strings.TrimSpace(cmd.Title),
		"description": strings.TrimSpace(cmd.Description),
		"options":     labels,
	}
	if cmd.ClosesAt != nil {
		payload["closes_at"] = cmd.ClosesAt.UTC().Format(time.RFC3339Nano)
	}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
