package sqliteadapter

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"agora/contexts/polling/poll-registry/domain/entities"
	domainerrors "agora/contexts/polling/poll-registry/domain/errors"
	"agora/contexts/polling/poll-registry/ports"
	eventsv1 "agora/contracts/gen/events/v1"

	"github.com/google/uuid"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewRepository(db *sql.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema creates the registry tables. Safe to call multiple times.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create poll registry schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS polls (
    poll_id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    created_by TEXT NOT NULL,
    status TEXT NOT NULL CHECK (status IN ('open', 'closed')),
    closes_at TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    closed_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_polls_status ON polls(status);
CREATE INDEX IF NOT EXISTS idx_polls_closes_at ON polls(closes_at);

CREATE TABLE IF NOT EXISTS poll_options (
    option_id TEXT PRIMARY KEY,
    poll_id TEXT NOT NULL REFERENCES polls(poll_id) ON DELETE CASCADE,
    label TEXT NOT NULL,
    position INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_poll_options_poll_id ON poll_options(poll_id);

CREATE TABLE IF NOT EXISTS poll_registry_idempotency (
    key TEXT PRIMARY KEY,
    request_hash TEXT NOT NULL,
    response_payload BLOB NOT NULL,
    expires_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS poll_registry_outbox (
    outbox_id TEXT PRIMARY KEY,
    event_type TEXT NOT NULL,
    partition_key TEXT NOT NULL,
    payload BLOB NOT NULL,
    status TEXT NOT NULL,
    created_at TEXT NOT NULL,
    published_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_poll_registry_outbox_status ON poll_registry_outbox(status);
`

func (r *Repository) CreatePoll(ctx context.Context, poll entities.Poll) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO polls (poll_id, title, description, created_by, status, closes_at, created_at, updated_at, closed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(poll.PollID),
		strings.TrimSpace(poll.Title),
		strings.TrimSpace(poll.Description),
		strings.TrimSpace(poll.CreatedBy),
		string(poll.Status),
		formatOptionalTime(poll.ClosesAt),
		formatTime(poll.CreatedAt),
		formatTime(poll.UpdatedAt),
		formatOptionalTime(poll.ClosedAt),
	)
	if err != nil {
		return err
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if inserted == 0 {
		return domainerrors.ErrInvalidPollInput
	}

	for _, option := range poll.Options {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO poll_options (option_id, poll_id, label, position) VALUES (?, ?, ?, ?)`,
			strings.TrimSpace(option.OptionID),
			strings.TrimSpace(option.PollID),
			strings.TrimSpace(option.Label),
			option.Position,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Repository) UpdatePoll(ctx context.Context, poll entities.Poll) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE polls SET title = ?, description = ?, status = ?, closes_at = ?, updated_at = ?, closed_at = ? WHERE poll_id = ?`,
		strings.TrimSpace(poll.Title),
		strings.TrimSpace(poll.Description),
		string(poll.Status),
		formatOptionalTime(poll.ClosesAt),
		formatTime(poll.UpdatedAt),
		formatOptionalTime(poll.ClosedAt),
		strings.TrimSpace(poll.PollID),
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domainerrors.ErrPollNotFound
	}
	return nil
}

func (r *Repository) GetPoll(ctx context.Context, pollID string) (entities.Poll, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT poll_id, title, description, created_by, status, closes_at, created_at, updated_at, closed_at
		 FROM polls WHERE poll_id = ?`,
		strings.TrimSpace(pollID),
	)
	poll, err := scanPoll(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return entities.Poll{}, domainerrors.ErrPollNotFound
		}
		return entities.Poll{}, err
	}

	options, err := r.listOptions(ctx, poll.PollID)
	if err != nil {
		return entities.Poll{}, err
	}
	poll.Options = options
	return poll, nil
}

func (r *Repository) ListPolls(ctx context.Context, filter ports.PollFilter) ([]entities.Poll, error) {
	query := `SELECT poll_id, title, description, created_by, status, closes_at, created_at, updated_at, closed_at FROM polls`
	clauses := make([]string, 0, 2)
	args := make([]any, 0, 2)
	if strings.TrimSpace(filter.CreatedBy) != "" {
		clauses = append(clauses, "created_by = ?")
		args = append(args, strings.TrimSpace(filter.CreatedBy))
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]entities.Poll, 0)
	for rows.Next() {
		poll, err := scanPoll(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, poll)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for index := range items {
		options, err := r.listOptions(ctx, items[index].PollID)
		if err != nil {
			return nil, err
		}
		items[index].Options = options
	}
	return items, nil
}

func (r *Repository) listOptions(ctx context.Context, pollID string) ([]entities.Option, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT option_id, poll_id, label, position FROM poll_options WHERE poll_id = ? ORDER BY position ASC`,
		pollID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	options := make([]entities.Option, 0)
	for rows.Next() {
		var option entities.Option
		if err := rows.Scan(&option.OptionID, &option.PollID, &option.Label, &option.Position); err != nil {
			return nil, err
		}
		options = append(options, option)
	}
	return options, rows.Err()
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

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT poll_id FROM polls
		 WHERE status = ? AND closes_at IS NOT NULL AND closes_at <= ?
		 ORDER BY closes_at ASC LIMIT ?`,
		string(entities.PollStatusOpen),
		formatTime(timestamp),
		limit,
	)
	if err != nil {
		return nil, err
	}
	pollIDs := make([]string, 0)
	for rows.Next() {
		var pollID string
		if err := rows.Scan(&pollID); err != nil {
			rows.Close()
			return nil, err
		}
		pollIDs = append(pollIDs, pollID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	results := make([]ports.ExpiredPollResult, 0, len(pollIDs))
	for _, pollID := range pollIDs {
		if _, err := tx.ExecContext(ctx,
			`UPDATE polls SET status = ?, closed_at = ?, updated_at = ? WHERE poll_id = ?`,
			string(entities.PollStatusClosed),
			formatTime(timestamp),
			formatTime(timestamp),
			pollID,
		); err != nil {
			return nil, err
		}

		envelope, err := registryEnvelope(
			uuid.NewString(),
			eventsv1.EventTypePollClosed,
			pollID,
			timestamp,
			eventsv1.PollClosedData{
				PollID:   pollID,
				ClosedBy: "system",
				ClosedAt: timestamp,
			},
		)
		if err != nil {
			return nil, err
		}
		if err := insertOutboxEnvelopeTx(ctx, tx, envelope); err != nil {
			return nil, err
		}
		results = append(results, ports.ExpiredPollResult{PollID: pollID})
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Repository) GetRecord(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT key, request_hash, response_payload, expires_at FROM poll_registry_idempotency WHERE key = ?`,
		strings.TrimSpace(key),
	)
	var record ports.IdempotencyRecord
	var expiresAt string
	if err := row.Scan(&record.Key, &record.RequestHash, &record.ResponsePayload, &expiresAt); err != nil {
		if err == sql.ErrNoRows {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, err
	}
	parsed, err := parseTime(expiresAt)
	if err != nil {
		return ports.IdempotencyRecord{}, false, err
	}
	record.ExpiresAt = parsed

	if !record.ExpiresAt.IsZero() && now.UTC().After(record.ExpiresAt) {
		if _, err := r.db.ExecContext(ctx,
			`DELETE FROM poll_registry_idempotency WHERE key = ?`,
			strings.TrimSpace(key),
		); err != nil {
			return ports.IdempotencyRecord{}, false, err
		}
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (r *Repository) PutRecord(ctx context.Context, record ports.IdempotencyRecord) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO poll_registry_idempotency (key, request_hash, response_payload, expires_at)
		 VALUES (?, ?, ?, ?)`,
		strings.TrimSpace(record.Key),
		record.RequestHash,
		record.ResponsePayload,
		formatTime(record.ExpiresAt),
	)
	if err != nil {
		return err
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if inserted > 0 {
		return nil
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT request_hash, response_payload FROM poll_registry_idempotency WHERE key = ?`,
		strings.TrimSpace(record.Key),
	)
	var existingHash string
	var existingPayload []byte
	if err := row.Scan(&existingHash, &existingPayload); err != nil {
		return err
	}
	if existingHash != record.RequestHash || !bytes.Equal(existingPayload, record.ResponsePayload) {
		return domainerrors.ErrIdempotencyKeyConflict
	}
	return nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := insertOutboxEnvelopeTx(ctx, tx, envelope); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT outbox_id, event_type, partition_key, payload, created_at
		 FROM poll_registry_outbox WHERE status = ? ORDER BY created_at ASC LIMIT ?`,
		outboxStatusPending,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]ports.OutboxMessage, 0)
	for rows.Next() {
		var item ports.OutboxMessage
		var createdAt string
		if err := rows.Scan(&item.OutboxID, &item.EventType, &item.PartitionKey, &item.Payload, &createdAt); err != nil {
			return nil, err
		}
		parsed, err := parseTime(createdAt)
		if err != nil {
			return nil, err
		}
		item.CreatedAt = parsed
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE poll_registry_outbox SET status = ?, published_at = ? WHERE outbox_id = ?`,
		outboxStatusPublished,
		formatTime(publishedAt),
		strings.TrimSpace(outboxID),
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domainerrors.ErrInvalidPollInput
	}
	return nil
}

func insertOutboxEnvelopeTx(ctx context.Context, tx *sql.Tx, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	result, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO poll_registry_outbox (outbox_id, event_type, partition_key, payload, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		outboxID,
		strings.TrimSpace(envelope.EventType),
		strings.TrimSpace(envelope.PartitionKey),
		payload,
		outboxStatusPending,
		formatTime(createdAt),
	)
	if err != nil {
		return err
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if inserted > 0 {
		return nil
	}

	row := tx.QueryRowContext(ctx, `SELECT payload FROM poll_registry_outbox WHERE outbox_id = ?`, outboxID)
	var existing []byte
	if err := row.Scan(&existing); err != nil {
		return err
	}
	if !bytes.Equal(existing, payload) {
		return domainerrors.ErrIdempotencyKeyConflict
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPoll(row rowScanner) (entities.Poll, error) {
	var poll entities.Poll
	var status string
	var closesAt, closedAt sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(
		&poll.PollID,
		&poll.Title,
		&poll.Description,
		&poll.CreatedBy,
		&status,
		&closesAt,
		&createdAt,
		&updatedAt,
		&closedAt,
	); err != nil {
		return entities.Poll{}, err
	}
	poll.Status = entities.PollStatus(status)

	var err error
	if poll.CreatedAt, err = parseTime(createdAt); err != nil {
		return entities.Poll{}, err
	}
	if poll.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return entities.Poll{}, err
	}
	if poll.ClosesAt, err = parseOptionalTime(closesAt); err != nil {
		return entities.Poll{}, err
	}
	if poll.ClosedAt, err = parseOptionalTime(closedAt); err != nil {
		return entities.Poll{}, err
	}
	return poll, nil
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func formatOptionalTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func parseTime(value string) (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored timestamp: %w", err)
	}
	return parsed.UTC(), nil
}

func parseOptionalTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid || strings.TrimSpace(value.String) == "" {
		return nil, nil
	}
	parsed, err := parseTime(value.String)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
