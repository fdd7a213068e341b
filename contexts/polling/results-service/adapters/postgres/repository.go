package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"agora/contexts/polling/results-service/domain/entities"
	domainerrors "agora/contexts/polling/results-service/domain/errors"
	"agora/contexts/polling/results-service/ports"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository backs the results directory, snapshot store and consumer dedup
// with Postgres. Snapshots are stored whole as JSON payloads with a few
// typed columns for sweeps.
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

func (r *Repository) GetPollSummary(ctx context.Context, pollID string) (ports.PollSummary, bool, error) {
	var row pollSummaryRow
	err := r.db.WithContext(ctx).
		Table("polls").
		Select("poll_id, title, status").
		Where("poll_id = ?", strings.TrimSpace(pollID)).
		Take(&row).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ports.PollSummary{}, false, nil
	}
	if err != nil {
		return ports.PollSummary{}, false, r.logError("results_repo_poll_summary_failed", err,
			"poll_id", strings.TrimSpace(pollID),
		)
	}

	var optionRows []optionSummaryRow
	if err := r.db.WithContext(ctx).
		Table("poll_options").
		Select("option_id, label, position").
		Where("poll_id = ?", row.PollID).
		Order("position ASC").
		Find(&optionRows).
		Error; err != nil {
		return ports.PollSummary{}, false, r.logError("results_repo_poll_options_failed", err,
			"poll_id", row.PollID,
		)
	}

	options := make([]ports.PollOptionSummary, 0, len(optionRows))
	for _, option := range optionRows {
		options = append(options, ports.PollOptionSummary{
			OptionID: option.OptionID,
			Label:    option.Label,
			Position: option.Position,
		})
	}
	return ports.PollSummary{
		PollID:  row.PollID,
		Title:   row.Title,
		Status:  row.Status,
		Options: options,
	}, true, nil
}

func (r *Repository) OpenPollIDs(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	var ids []string
	if err := r.db.WithContext(ctx).
		Table("polls").
		Where("status = ?", "open").
		Order("created_at ASC").
		Limit(limit).
		Pluck("poll_id", &ids).
		Error; err != nil {
		return nil, r.logError("results_repo_open_polls_failed", err)
	}
	return ids, nil
}

func (r *Repository) GetSnapshot(ctx context.Context, pollID string) (entities.ResultSnapshot, bool, error) {
	var row snapshotModel
	err := r.db.WithContext(ctx).
		Where("poll_id = ?", strings.TrimSpace(pollID)).
		Take(&row).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.ResultSnapshot{}, false, nil
	}
	if err != nil {
		return entities.ResultSnapshot{}, false, r.logError("results_repo_snapshot_read_failed", err,
			"poll_id", strings.TrimSpace(pollID),
		)
	}

	var snapshot entities.ResultSnapshot
	if err := json.Unmarshal(row.Payload, &snapshot); err != nil {
		return entities.ResultSnapshot{}, false, r.logError("results_repo_snapshot_decode_failed", err,
			"poll_id", row.PollID,
		)
	}
	return snapshot, true, nil
}

func (r *Repository) PutSnapshot(ctx context.Context, snapshot entities.ResultSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	row := snapshotModel{
		PollID:     strings.TrimSpace(snapshot.PollID),
		Payload:    payload,
		TotalVotes: snapshot.TotalVotes,
		Final:      snapshot.Final,
		ComputedAt: snapshot.ComputedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "poll_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"payload":     row.Payload,
				"total_votes": row.TotalVotes,
				"final":       row.Final,
				"computed_at": row.ComputedAt,
			}),
		}).
		Create(&row).
		Error; err != nil {
		return r.logError("results_repo_snapshot_write_failed", err,
			"poll_id", row.PollID,
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
	row := eventDedupModel{
		EventID:     strings.TrimSpace(eventID),
		PayloadHash: strings.TrimSpace(payloadHash),
		ExpiresAt:   expiresAt.UTC(),
		ProcessedAt: time.Now().UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return false, r.logError("results_repo_reserve_event_failed", create.Error,
			"event_id", strings.TrimSpace(eventID),
		)
	}
	if create.RowsAffected > 0 {
		return false, nil
	}

	var existing eventDedupModel
	if err := r.db.WithContext(ctx).
		Select("payload_hash").
		Where("event_id = ?", row.EventID).
		First(&existing).Error; err != nil {
		return false, r.logError("results_repo_reserve_event_load_existing_failed", err,
			"event_id", strings.TrimSpace(eventID),
		)
	}
	if existing.PayloadHash != row.PayloadHash {
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

type pollSummaryRow struct {
	PollID string `gorm:"column:poll_id"`
	Title  string `gorm:"column:title"`
	Status string `gorm:"column:status"`
}

type optionSummaryRow struct {
	OptionID string `gorm:"column:option_id"`
	Label    string `gorm:"column:label"`
	Position int    `gorm:"column:position"`
}

type snapshotModel struct {
	PollID     string    `gorm:"column:poll_id;primaryKey"`
	Payload    []byte    `gorm:"column:payload"`
	TotalVotes int64     `gorm:"column:total_votes"`
	Final      bool      `gorm:"column:final"`
	ComputedAt time.Time `gorm:"column:computed_at"`
}

func (snapshotModel) TableName() string {
	return "result_snapshots"
}

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	PayloadHash string    `gorm:"column:payload_hash"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
}

func (eventDedupModel) TableName() string {
	return "results_consumed_events"
}
