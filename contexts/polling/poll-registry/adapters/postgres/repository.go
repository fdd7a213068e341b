package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"agora/contexts/polling/poll-registry/domain/entities"
	domainerrors "agora/contexts/polling/poll-registry/domain/errors"
	"agora/contexts/polling/poll-registry/ports"
	eventsv1 "agora/contracts/gen/events/v1"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) CreatePoll(ctx context.Context, poll entities.Poll) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := pollModelFromEntity(poll)
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrInvalidPollInput
			}
			return err
		}
		for _, option := range poll.Options {
			optionRow := optionModelFromEntity(option)
			if err := tx.Create(&optionRow).Error; err != nil {
				if isUniqueViolation(err) {
					return domainerrors.ErrInvalidPollInput
				}
				return err
			}
		}
		return nil
	})
}

func (r *Repository) UpdatePoll(ctx context.Context, poll entities.Poll) error {
	result := r.db.WithContext(ctx).
		Model(&pollModel{}).
		Where("poll_id = ?", strings.TrimSpace(poll.PollID)).
		Updates(pollUpdatesFromEntity(poll))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrPollNotFound
	}
	return nil
}

func (r *Repository) GetPoll(ctx context.Context, pollID string) (entities.Poll, error) {
	var row pollModel
	err := r.db.WithContext(ctx).
		Where("poll_id = ?", strings.TrimSpace(pollID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Poll{}, domainerrors.ErrPollNotFound
		}
		return entities.Poll{}, err
	}

	options, err := r.listOptions(ctx, []string{row.PollID})
	if err != nil {
		return entities.Poll{}, err
	}
	return row.toEntity(options[row.PollID]), nil
}

func (r *Repository) ListPolls(ctx context.Context, filter ports.PollFilter) ([]entities.Poll, error) {
	tx := r.db.WithContext(ctx).Model(&pollModel{})
	if strings.TrimSpace(filter.CreatedBy) != "" {
		tx = tx.Where("created_by = ?", strings.TrimSpace(filter.CreatedBy))
	}
	if filter.Status != "" {
		tx = tx.Where("status = ?", string(filter.Status))
	}

	var rows []pollModel
	if err := tx.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}

	pollIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		pollIDs = append(pollIDs, row.PollID)
	}
	options, err := r.listOptions(ctx, pollIDs)
	if err != nil {
		return nil, err
	}

	items := make([]entities.Poll, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity(options[row.PollID]))
	}
	return items, nil
}

func (r *Repository) listOptions(ctx context.Context, pollIDs []string) (map[string][]entities.Option, error) {
	grouped := make(map[string][]entities.Option, len(pollIDs))
	if len(pollIDs) == 0 {
		return grouped, nil
	}

	var rows []optionModel
	if err := r.db.WithContext(ctx).
		Where("poll_id IN ?", pollIDs).
		Order("position ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		grouped[row.PollID] = append(grouped[row.PollID], row.toEntity())
	}
	return grouped, nil
}

func (r *Repository) CloseExpiredPolls(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]ports.ExpiredPollResult, error) {
	if limit <= 0 {
		limit = 100
	}
	timestamp := now.UTC()
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	results := make([]ports.ExpiredPollResult, 0)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []pollModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("status = ? AND closes_at IS NOT NULL AND closes_at <= ?", string(entities.PollStatusOpen), timestamp).
			Order("closes_at ASC").
			Limit(limit).
			Find(&rows).
			Error; err != nil {
			return err
		}

		for _, row := range rows {
			if err := tx.Model(&pollModel{}).
				Where("poll_id = ?", row.PollID).
				Updates(map[string]any{
					"status":     string(entities.PollStatusClosed),
					"closed_at":  timestamp,
					"updated_at": timestamp,
				}).
				Error; err != nil {
				return err
			}

			envelope, err := registryEnvelope(
				uuid.NewString(),
				eventsv1.EventTypePollClosed,
				row.PollID,
				timestamp,
				eventsv1.PollClosedData{
					PollID:   row.PollID,
					ClosedBy: "system",
					ClosedAt: timestamp,
				},
			)
			if err != nil {
				return err
			}
			if err := insertOutboxEnvelopeTx(tx, envelope); err != nil {
				return err
			}

			results = append(results, ports.ExpiredPollResult{PollID: row.PollID})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Repository) GetRecord(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var row idempotencyModel
	err := r.db.WithContext(ctx).
		Where("key = ?", strings.TrimSpace(key)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, err
	}

	if !row.ExpiresAt.IsZero() && now.UTC().After(row.ExpiresAt.UTC()) {
		if err := r.db.WithContext(ctx).
			Where("key = ?", strings.TrimSpace(key)).
			Delete(&idempotencyModel{}).
			Error; err != nil {
			return ports.IdempotencyRecord{}, false, err
		}
		return ports.IdempotencyRecord{}, false, nil
	}

	return ports.IdempotencyRecord{
		Key:             row.Key,
		RequestHash:     row.RequestHash,
		ResponsePayload: append([]byte(nil), row.ResponsePayload...),
		ExpiresAt:       row.ExpiresAt.UTC(),
	}, true, nil
}

func (r *Repository) PutRecord(ctx context.Context, record ports.IdempotencyRecord) error {
	row := idempotencyModel{
		Key:             strings.TrimSpace(record.Key),
		RequestHash:     record.RequestHash,
		ResponsePayload: append([]byte(nil), record.ResponsePayload...),
		ExpiresAt:       record.ExpiresAt.UTC(),
	}
	createResult := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).
		Create(&row)
	if createResult.Error != nil {
		return createResult.Error
	}
	if createResult.RowsAffected > 0 {
		return nil
	}

	var existing idempotencyModel
	if err := r.db.WithContext(ctx).
		Where("key = ?", row.Key).
		First(&existing).
		Error; err != nil {
		return err
	}
	if existing.RequestHash != row.RequestHash || !bytes.Equal(existing.ResponsePayload, row.ResponsePayload) {
		return domainerrors.ErrIdempotencyKeyConflict
	}
	return nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	createResult := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "outbox_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if createResult.Error != nil {
		return createResult.Error
	}
	if createResult.RowsAffected > 0 {
		return nil
	}

	var existing outboxModel
	if err := r.db.WithContext(ctx).
		Select("payload").
		Where("outbox_id = ?", row.OutboxID).
		First(&existing).
		Error; err != nil {
		return err
	}
	if !bytes.Equal(existing.Payload, row.Payload) {
		return domainerrors.ErrIdempotencyKeyConflict
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrInvalidPollInput
	}
	return nil
}

func insertOutboxEnvelopeTx(tx *gorm.DB, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	createResult := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if createResult.Error != nil {
		return createResult.Error
	}
	if createResult.RowsAffected == 0 {
		var existing outboxModel
		if err := tx.Select("payload").Where("outbox_id = ?", row.OutboxID).First(&existing).Error; err != nil {
			return err
		}
		if !bytes.Equal(existing.Payload, row.Payload) {
			return domainerrors.ErrIdempotencyKeyConflict
		}
	}
	return nil
}

func registryEnvelope(
	eventID string,
	eventType string,
	pollID string,
	occurredAt time.Time,
	data any,
) (ports.EventEnvelope, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "poll-registry",
		SchemaVersion:    1,
		PartitionKeyPath: "poll_id",
		PartitionKey:     pollID,
		Data:             payload,
	}, nil
}

type pollModel struct {
	PollID      string     `gorm:"column:poll_id;primaryKey"`
	Title       string     `gorm:"column:title"`
	Description string     `gorm:"column:description"`
	CreatedBy   string     `gorm:"column:created_by"`
	Status      string     `gorm:"column:status"`
	ClosesAt    *time.Time `gorm:"column:closes_at"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at"`
	ClosedAt    *time.Time `gorm:"column:closed_at"`
}

func (pollModel) TableName() string {
	return "polls"
}

func pollModelFromEntity(item entities.Poll) pollModel {
	return pollModel{
		PollID:      strings.TrimSpace(item.PollID),
		Title:       strings.TrimSpace(item.Title),
		Description: strings.TrimSpace(item.Description),
		CreatedBy:   strings.TrimSpace(item.CreatedBy),
		Status:      string(item.Status),
		ClosesAt:    normalizeOptionalTime(item.ClosesAt),
		CreatedAt:   item.CreatedAt.UTC(),
		UpdatedAt:   item.UpdatedAt.UTC(),
		ClosedAt:    normalizeOptionalTime(item.ClosedAt),
	}
}

func pollUpdatesFromEntity(item entities.Poll) map[string]any {
	row := pollModelFromEntity(item)
	return map[string]any{
		"title":       row.Title,
		"description": row.Description,
		"status":      row.Status,
		"closes_at":   row.ClosesAt,
		"updated_at":  row.UpdatedAt,
		"closed_at":   row.ClosedAt,
	}
}

func (m pollModel) toEntity(options []entities.Option) entities.Poll {
	return entities.Poll{
		PollID:      m.PollID,
		Title:       m.Title,
		Description: m.Description,
		CreatedBy:   m.CreatedBy,
		Options:     options,
		Status:      entities.PollStatus(m.Status),
		ClosesAt:    normalizeOptionalTime(m.ClosesAt),
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
		ClosedAt:    normalizeOptionalTime(m.ClosedAt),
	}
}

type optionModel struct {
	OptionID string `gorm:"column:option_id;primaryKey"`
	PollID   string `gorm:"column:poll_id"`
	Label    string `gorm:"column:label"`
	Position int    `gorm:"column:position"`
}

func (optionModel) TableName() string {
	return "poll_options"
}

func optionModelFromEntity(item entities.Option) optionModel {
	return optionModel{
		OptionID: strings.TrimSpace(item.OptionID),
		PollID:   strings.TrimSpace(item.PollID),
		Label:    strings.TrimSpace(item.Label),
		Position: item.Position,
	}
}

func (m optionModel) toEntity() entities.Option {
	return entities.Option{
		OptionID: m.OptionID,
		PollID:   m.PollID,
		Label:    m.Label,
		Position: m.Position,
	}
}

type idempotencyModel struct {
	Key             string    `gorm:"column:key;primaryKey"`
	RequestHash     string    `gorm:"column:request_hash"`
	ResponsePayload []byte    `gorm:"column:response_payload"`
	ExpiresAt       time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string {
	return "poll_registry_idempotency"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "poll_registry_outbox"
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	timestamp := value.UTC()
	return &timestamp
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
