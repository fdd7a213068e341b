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

	"agora/contexts/polling/voting-engine/domain/entities"
	domainerrors "agora/contexts/polling/voting-engine/domain/errors"
	"agora/contexts/polling/voting-engine/ports"

	"github.com/google/uuid"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

// Repository backs every voting port with SQLite. The ledger position rides
// on the table's rowid, so appends get a monotonic position without a
// separate sequence.
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

// EnsureSchema creates the voting tables. Safe to call multiple times.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create voting schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS vote_ledger (
    position INTEGER PRIMARY KEY AUTOINCREMENT,
    vote_id TEXT NOT NULL UNIQUE,
    poll_id TEXT NOT NULL,
    option_id TEXT NOT NULL,
    voter_id TEXT NOT NULL,
    cast_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_vote_ledger_poll_id ON vote_ledger(poll_id);

CREATE TABLE IF NOT EXISTS poll_voter_claims (
    poll_id TEXT NOT NULL,
    voter_id TEXT NOT NULL,
    claimed_at TEXT NOT NULL,
    PRIMARY KEY (poll_id, voter_id)
);

CREATE TABLE IF NOT EXISTS poll_tallies (
    poll_id TEXT NOT NULL,
    option_id TEXT NOT NULL,
    vote_count INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (poll_id, option_id)
);

CREATE TABLE IF NOT EXISTS voting_outbox (
    outbox_id TEXT PRIMARY KEY,
    event_type TEXT NOT NULL,
    partition_key TEXT NOT NULL,
    payload BLOB NOT NULL,
    status TEXT NOT NULL,
    created_at TEXT NOT NULL,
    published_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_voting_outbox_status ON voting_outbox(status);
`

func (r *Repository) GetPollState(ctx context.Context, pollID string) (ports.PollState, bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT poll_id, status, closes_at FROM polls WHERE poll_id = ?`,
		strings.TrimSpace(pollID),
	)
	var state ports.PollState
	var closesAt sql.NullString
	if err := row.Scan(&state.PollID, &state.Status, &closesAt); err != nil {
		if err == sql.ErrNoRows {
			return ports.PollState{}, false, nil
		}
		return ports.PollState{}, false, r.storageError("voting_sqlite_poll_state_failed", err,
			"poll_id", strings.TrimSpace(pollID),
		)
	}
	parsed, err := parseOptionalTime(closesAt)
	if err != nil {
		return ports.PollState{}, false, err
	}
	state.ClosesAt = parsed

	rows, err := r.db.QueryContext(ctx,
		`SELECT option_id FROM poll_options WHERE poll_id = ? ORDER BY position ASC`,
		state.PollID,
	)
	if err != nil {
		return ports.PollState{}, false, r.storageError("voting_sqlite_poll_options_failed", err,
			"poll_id", state.PollID,
		)
	}
	defer rows.Close()

	for rows.Next() {
		var optionID string
		if err := rows.Scan(&optionID); err != nil {
			return ports.PollState{}, false, err
		}
		state.OptionIDs = append(state.OptionIDs, optionID)
	}
	if err := rows.Err(); err != nil {
		return ports.PollState{}, false, err
	}
	return state, true, nil
}

func (r *Repository) TryClaim(ctx context.Context, pollID string, voterID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO poll_voter_claims (poll_id, voter_id, claimed_at) VALUES (?, ?, ?)`,
		strings.TrimSpace(pollID),
		strings.TrimSpace(voterID),
		formatTime(time.Now()),
	)
	if err != nil {
		return false, r.storageError("voting_sqlite_claim_failed", err,
			"poll_id", strings.TrimSpace(pollID),
			"voter_id", strings.TrimSpace(voterID),
		)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return inserted > 0, nil
}

func (r *Repository) ReleaseClaim(ctx context.Context, pollID string, voterID string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM poll_voter_claims WHERE poll_id = ? AND voter_id = ?`,
		strings.TrimSpace(pollID),
		strings.TrimSpace(voterID),
	); err != nil {
		return r.storageError("voting_sqlite_claim_release_failed", err,
			"poll_id", strings.TrimSpace(pollID),
			"voter_id", strings.TrimSpace(voterID),
		)
	}
	return nil
}

func (r *Repository) AppendVote(ctx context.Context, vote entities.Vote) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO vote_ledger (vote_id, poll_id, option_id, voter_id, cast_at)
		 VALUES (?, ?, ?, ?, ?)`,
		strings.TrimSpace(vote.VoteID),
		strings.TrimSpace(vote.PollID),
		strings.TrimSpace(vote.OptionID),
		strings.TrimSpace(vote.VoterID),
		formatTime(vote.CastAt),
	)
	if err != nil {
		return 0, r.storageError("voting_sqlite_append_failed", err,
			"poll_id", strings.TrimSpace(vote.PollID),
			"vote_id", strings.TrimSpace(vote.VoteID),
		)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if inserted > 0 {
		position, err := result.LastInsertId()
		if err != nil {
			return 0, err
		}
		return position, nil
	}

	// Replayed append of the same vote id returns the position it already
	// holds.
	row := r.db.QueryRowContext(ctx,
		`SELECT position FROM vote_ledger WHERE vote_id = ?`,
		strings.TrimSpace(vote.VoteID),
	)
	var position int64
	if err := row.Scan(&position); err != nil {
		return 0, r.storageError("voting_sqlite_append_replay_failed", err,
			"vote_id", strings.TrimSpace(vote.VoteID),
		)
	}
	return position, nil
}

func (r *Repository) ReadAllVotes(ctx context.Context, pollID string) ([]entities.Vote, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT position, vote_id, poll_id, option_id, voter_id, cast_at
		 FROM vote_ledger WHERE poll_id = ? ORDER BY position ASC`,
		strings.TrimSpace(pollID),
	)
	if err != nil {
		return nil, r.storageError("voting_sqlite_read_ledger_failed", err,
			"poll_id", strings.TrimSpace(pollID),
		)
	}
	defer rows.Close()

	votes := make([]entities.Vote, 0)
	for rows.Next() {
		var vote entities.Vote
		var castAt string
		if err := rows.Scan(&vote.Position, &vote.VoteID, &vote.PollID, &vote.OptionID, &vote.VoterID, &castAt); err != nil {
			return nil, err
		}
		parsed, err := parseTime(castAt)
		if err != nil {
			return nil, err
		}
		vote.CastAt = parsed
		votes = append(votes, vote)
	}
	return votes, rows.Err()
}

func (r *Repository) PollIDs(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT poll_id FROM vote_ledger ORDER BY poll_id ASC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, r.storageError("voting_sqlite_poll_ids_failed", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var pollID string
		if err := rows.Scan(&pollID); err != nil {
			return nil, err
		}
		ids = append(ids, pollID)
	}
	return ids, rows.Err()
}

func (r *Repository) IncrementOption(ctx context.Context, pollID string, optionID string) error {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO poll_tallies (poll_id, option_id, vote_count) VALUES (?, ?, 1)
		 ON CONFLICT(poll_id, option_id) DO UPDATE SET vote_count = vote_count + 1`,
		strings.TrimSpace(pollID),
		strings.TrimSpace(optionID),
	); err != nil {
		return r.storageError("voting_sqlite_tally_increment_failed", err,
			"poll_id", strings.TrimSpace(pollID),
			"option_id", strings.TrimSpace(optionID),
		)
	}
	return nil
}

func (r *Repository) GetTally(ctx context.Context, pollID string) (entities.Tally, bool, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT option_id, vote_count FROM poll_tallies WHERE poll_id = ?`,
		strings.TrimSpace(pollID),
	)
	if err != nil {
		return entities.Tally{}, false, r.storageError("voting_sqlite_tally_read_failed", err,
			"poll_id", strings.TrimSpace(pollID),
		)
	}
	defer rows.Close()

	tally := entities.NewTally(strings.TrimSpace(pollID))
	found := false
	for rows.Next() {
		var optionID string
		var count int64
		if err := rows.Scan(&optionID, &count); err != nil {
			return entities.Tally{}, false, err
		}
		tally.Counts[optionID] = count
		tally.Total += count
		found = true
	}
	if err := rows.Err(); err != nil {
		return entities.Tally{}, false, err
	}
	if !found {
		return entities.Tally{}, false, nil
	}
	return tally, true, nil
}

func (r *Repository) ReplaceTally(ctx context.Context, tally entities.Tally) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return r.storageError("voting_sqlite_tally_replace_failed", err,
			"poll_id", strings.TrimSpace(tally.PollID),
		)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM poll_tallies WHERE poll_id = ?`,
		strings.TrimSpace(tally.PollID),
	); err != nil {
		return r.storageError("voting_sqlite_tally_replace_failed", err,
			"poll_id", strings.TrimSpace(tally.PollID),
		)
	}
	for optionID, count := range tally.Counts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO poll_tallies (poll_id, option_id, vote_count) VALUES (?, ?, ?)`,
			strings.TrimSpace(tally.PollID),
			optionID,
			count,
		); err != nil {
			return r.storageError("voting_sqlite_tally_replace_failed", err,
				"poll_id", strings.TrimSpace(tally.PollID),
			)
		}
	}
	return tx.Commit()
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
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

	result, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO voting_outbox (outbox_id, event_type, partition_key, payload, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		outboxID,
		strings.TrimSpace(envelope.EventType),
		strings.TrimSpace(envelope.PartitionKey),
		payload,
		outboxStatusPending,
		formatTime(createdAt),
	)
	if err != nil {
		return r.storageError("voting_sqlite_outbox_append_failed", err,
			"outbox_id", outboxID,
		)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if inserted > 0 {
		return nil
	}

	row := r.db.QueryRowContext(ctx, `SELECT payload FROM voting_outbox WHERE outbox_id = ?`, outboxID)
	var existing []byte
	if err := row.Scan(&existing); err != nil {
		return err
	}
	if !bytes.Equal(existing, payload) {
		return domainerrors.ErrInvalidVoteInput
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT outbox_id, event_type, partition_key, payload, created_at
		 FROM voting_outbox WHERE status = ? ORDER BY created_at ASC LIMIT ?`,
		outboxStatusPending,
		limit,
	)
	if err != nil {
		return nil, r.storageError("voting_sqlite_outbox_list_failed", err)
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
		`UPDATE voting_outbox SET status = ?, published_at = ? WHERE outbox_id = ?`,
		outboxStatusPublished,
		formatTime(publishedAt),
		strings.TrimSpace(outboxID),
	)
	if err != nil {
		return r.storageError("voting_sqlite_outbox_mark_failed", err,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domainerrors.ErrVoteNotFound
	}
	return nil
}

// storageError logs the underlying cause and hands callers the transient
// storage sentinel.
func (r *Repository) storageError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "polling/voting-engine",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("voting repository operation failed", fields...)
	return domainerrors.ErrStorageUnavailable
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
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
