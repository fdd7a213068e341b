package sqliteadapter

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"agora/contexts/polling/results-service/domain/entities"
	domainerrors "agora/contexts/polling/results-service/domain/errors"
	"agora/contexts/polling/results-service/ports"
)

// Repository backs the results directory, snapshot store and consumer dedup
// with SQLite.
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

// EnsureSchema creates the results tables. Safe to call multiple times.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create results schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS result_snapshots (
    poll_id TEXT PRIMARY KEY,
    payload BLOB NOT NULL,
    total_votes INTEGER NOT NULL DEFAULT 0,
    final INTEGER NOT NULL DEFAULT 0,
    computed_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS results_consumed_events (
    event_id TEXT PRIMARY KEY,
    payload_hash TEXT NOT NULL,
    expires_at TEXT NOT NULL,
    processed_at TEXT NOT NULL
);
`

func (r *Repository) GetPollSummary(ctx context.Context, pollID string) (ports.PollSummary, bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT poll_id, title, status FROM polls WHERE poll_id = ?`,
		strings.TrimSpace(pollID),
	)
	var summary ports.PollSummary
	if err := row.Scan(&summary.PollID, &summary.Title, &summary.Status); err != nil {
		if err == sql.ErrNoRows {
			return ports.PollSummary{}, false, nil
		}
		return ports.PollSummary{}, false, r.logError("results_sqlite_poll_summary_failed", err,
			"poll_id", strings.TrimSpace(pollID),
		)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT option_id, label, position FROM poll_options WHERE poll_id = ? ORDER BY position ASC`,
		summary.PollID,
	)
	if err != nil {
		return ports.PollSummary{}, false, r.logError("results_sqlite_poll_options_failed", err,
			"poll_id", summary.PollID,
		)
	}
	defer rows.Close()

	for rows.Next() {
		var option ports.PollOptionSummary
		if err := rows.Scan(&option.OptionID, &option.Label, &option.Position); err != nil {
			return ports.PollSummary{}, false, err
		}
		summary.Options = append(summary.Options, option)
	}
	if err := rows.Err(); err != nil {
		return ports.PollSummary{}, false, err
	}
	return summary, true, nil
}

func (r *Repository) OpenPollIDs(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT poll_id FROM polls WHERE status = 'open' ORDER BY created_at ASC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, r.logError("results_sqlite_open_polls_failed", err)
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

func (r *Repository) GetSnapshot(ctx context.Context, pollID string) (entities.ResultSnapshot, bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT payload FROM result_snapshots WHERE poll_id = ?`,
		strings.TrimSpace(pollID),
	)
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return entities.ResultSnapshot{}, false, nil
		}
		return entities.ResultSnapshot{}, false, r.logError("results_sqlite_snapshot_read_failed", err,
			"poll_id", strings.TrimSpace(pollID),
		)
	}

	var snapshot entities.ResultSnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return entities.ResultSnapshot{}, false, r.logError("results_sqlite_snapshot_decode_failed", err,
			"poll_id", strings.TrimSpace(pollID),
		)
	}
	return snapshot, true, nil
}

func (r *Repository) PutSnapshot(ctx context.Context, snapshot entities.ResultSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	final := 0
	if snapshot.Final {
		final = 1
	}
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO result_snapshots (poll_id, payload, total_votes, final, computed_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(poll_id) DO UPDATE SET payload = excluded.payload, total_votes = excluded.total_votes,
		 final = excluded.final, computed_at = excluded.computed_at`,
		strings.TrimSpace(snapshot.PollID),
		payload,
		snapshot.TotalVotes,
		final,
		formatTime(snapshot.ComputedAt),
	); err != nil {
		return r.logError("results_sqlite_snapshot_write_failed", err,
			"poll_id", strings.TrimSpace(snapshot.PollID),
		)
	}
	return nil
}

func (r *Repository) ReserveEvent(
	ctx context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO results_consumed_events (event_id, payload_hash, expires_at, processed_at)
		 VALUES (?, ?, ?, ?)`,
		strings.TrimSpace(eventID),
		strings.TrimSpace(payloadHash),
		formatTime(expiresAt),
		formatTime(time.Now()),
	)
	if err != nil {
		return false, r.logError("results_sqlite_reserve_event_failed", err,
			"event_id", strings.TrimSpace(eventID),
		)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if inserted > 0 {
		return false, nil
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT payload_hash FROM results_consumed_events WHERE event_id = ?`,
		strings.TrimSpace(eventID),
	)
	var existingHash string
	if err := row.Scan(&existingHash); err != nil {
		return false, r.logError("results_sqlite_reserve_event_load_existing_failed", err,
			"event_id", strings.TrimSpace(eventID),
		)
	}
	if existingHash != strings.TrimSpace(payloadHash) {
		return false, domainerrors.ErrEventConflict
	}
	return true, nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "polling/results-service",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("results repository operation failed", fields...)
	return err
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}
