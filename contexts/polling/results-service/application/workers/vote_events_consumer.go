package workers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	application "agora/contexts/polling/results-service/application"
	"agora/contexts/polling/results-service/application/commands"
	domainerrors "agora/contexts/polling/results-service/domain/errors"
	"agora/contexts/polling/results-service/ports"
	eventsv1 "agora/contracts/gen/events/v1"
)

const defaultResultsConsumerGroup = "results-service-polling-events-cg"

// PollEventsConsumer keeps snapshots in step with the polling event stream:
// vote.accepted patches cached entries, poll.closed freezes the final
// snapshot, poll.created primes a zero-count one.
type PollEventsConsumer struct {
	Subscriber    ports.EventSubscriber
	Dedup         ports.EventDedupStore
	Apply         commands.ApplyVoteUseCase
	Refresh       commands.RefreshResultsUseCase
	Clock         ports.Clock
	ConsumerGroup string
	DedupTTL      time.Duration
	Disabled      bool
	Logger        *slog.Logger
}

func (c PollEventsConsumer) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	if c.Disabled {
		logger.Info("polling events consumer disabled by feature flag",
			"event", "results_events_consumer_disabled",
			"module", "polling/results-service",
			"layer", "worker",
		)
		return nil
	}
	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = defaultResultsConsumerGroup
	}

	if err := c.Subscriber.Subscribe(ctx, eventsv1.EventTypeVoteAccepted, group, c.handleVoteAccepted); err != nil {
		return err
	}
	if err := c.Subscriber.Subscribe(ctx, eventsv1.EventTypePollClosed, group, c.handlePollClosed); err != nil {
		return err
	}
	return c.Subscriber.Subscribe(ctx, eventsv1.EventTypePollCreated, group, c.handlePollCreated)
}

func (c PollEventsConsumer) handleVoteAccepted(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(c.Logger)

	alreadyProcessed, err := c.reserve(ctx, event)
	if err != nil || alreadyProcessed {
		return err
	}

	var payload eventsv1.VoteAcceptedData
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return fmt.Errorf("decode vote.accepted payload: %w", err)
	}
	if strings.TrimSpace(payload.PollID) == "" || strings.TrimSpace(payload.OptionID) == "" {
		return fmt.Errorf("vote.accepted payload missing poll_id or option_id")
	}

	if err := c.Apply.Execute(ctx, commands.ApplyVoteCommand{
		PollID:   payload.PollID,
		OptionID: payload.OptionID,
		VoteID:   payload.VoteID,
	}); err != nil {
		logger.Error("vote.accepted apply failed",
			"event", "results_vote_accepted_apply_failed",
			"module", "polling/results-service",
			"layer", "worker",
			"event_id", event.EventID,
			"poll_id", payload.PollID,
			"error", err.Error(),
		)
		return err
	}

	logger.Debug("vote.accepted applied to snapshot",
		"event", "results_vote_accepted_applied",
		"module", "polling/results-service",
		"layer", "worker",
		"event_id", event.EventID,
		"poll_id", payload.PollID,
		"vote_id", payload.VoteID,
	)
	return nil
}

func (c PollEventsConsumer) handlePollClosed(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(c.Logger)

	alreadyProcessed, err := c.reserve(ctx, event)
	if err != nil || alreadyProcessed {
		return err
	}

	var payload eventsv1.PollClosedData
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return fmt.Errorf("decode poll.closed payload: %w", err)
	}
	if strings.TrimSpace(payload.PollID) == "" {
		return fmt.Errorf("poll.closed payload missing poll_id")
	}

	result, err := c.Refresh.Execute(ctx, commands.RefreshResultsCommand{PollID: payload.PollID, Force: true})
	if err != nil {
		if errors.Is(err, domainerrors.ErrPollNotFound) {
			return nil
		}
		logger.Error("poll.closed finalize failed",
			"event", "results_poll_closed_finalize_failed",
			"module", "polling/results-service",
			"layer", "worker",
			"event_id", event.EventID,
			"poll_id", payload.PollID,
			"error", err.Error(),
		)
		return err
	}

	logger.Info("poll results finalized",
		"event", "results_poll_finalized",
		"module", "polling/results-service",
		"layer", "worker",
		"event_id", event.EventID,
		"poll_id", payload.PollID,
		"total_votes", result.Snapshot.TotalVotes,
	)
	return nil
}

func (c PollEventsConsumer) handlePollCreated(ctx context.Context, event ports.EventEnvelope) error {
	alreadyProcessed, err := c.reserve(ctx, event)
	if err != nil || alreadyProcessed {
		return err
	}

	var payload eventsv1.PollCreatedData
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return fmt.Errorf("decode poll.created payload: %w", err)
	}
	if strings.TrimSpace(payload.PollID) == "" {
		return fmt.Errorf("poll.created payload missing poll_id")
	}

	if _, err := c.Refresh.Execute(ctx, commands.RefreshResultsCommand{PollID: payload.PollID}); err != nil {
		if errors.Is(err, domainerrors.ErrPollNotFound) {
			return nil
		}
		return err
	}
	return nil
}

func (c PollEventsConsumer) reserve(ctx context.Context, event ports.EventEnvelope) (bool, error) {
	logger := application.ResolveLogger(c.Logger)
	now := time.Now().UTC()
	if c.Clock != nil {
		now = c.Clock.Now().UTC()
	}

	alreadyProcessed, err := c.Dedup.ReserveEvent(ctx, event.EventID, hashPayload(event.Data), now.Add(c.dedupTTL()))
	if err != nil {
		logger.Error("polling event dedupe failed",
			"event", "results_event_dedupe_failed",
			"module", "polling/results-service",
			"layer", "worker",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"error", err.Error(),
		)
		return false, err
	}
	if alreadyProcessed {
		logger.Debug("polling event already processed",
			"event", "results_event_replayed",
			"module", "polling/results-service",
			"layer", "worker",
			"event_id", event.EventID,
			"event_type", event.EventType,
		)
		return true, nil
	}
	return false, nil
}

func (c PollEventsConsumer) dedupTTL() time.Duration {
	if c.DedupTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return c.DedupTTL
}

func hashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
