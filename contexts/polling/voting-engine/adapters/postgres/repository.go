package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"agora/contexts/polling/voting-engine/domain/entities"
	domainerrors "agora/contexts/polling/voting-engine/domain/errors"
	"agora/contexts/polling/voting-engine/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

// Repository backs every voting port with Postgres. Claims and counters are
// single-row upserts, so contention stays scoped to one (poll, voter) or
// (poll, option) row and polls never serialize against each other.
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

func (r *Repository) GetPollState(ctx context.Context, pollID string) (ports.PollState, bool, error) {
	var row pollStateRow
	err := r.db.WithContext(ctx).
		Table("polls").
		Select("poll_id, status, closes_at").
		Where("poll_id = ?", strings.TrimSpace(pollID)).
		Take(&row).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ports.PollState{}, false, nil
	}
	if err != nil {
		return ports.PollState{}, false, r.storageError("voting_repo_poll_state_failed", err,
			"poll_id", strings.TrimSpace(pollID),
		)
	}

	var optionIDs []string
	if err := r.db.WithContext(ctx).
		Table("poll_options").
		Where("poll_id = ?", row.PollID).
		Order("position ASC").
		Pluck("option_id", &optionIDs).
		Error; err != nil {
		return ports.PollState{}, false, r.storageError("voting_repo_poll_options_failed", err,
			"poll_id", row.PollID,
		)
	}
	return ports.PollState{
		PollID:    row.PollID,
		Status:    row.Status,
		ClosesAt:  normalizeOptionalTime(row.ClosesAt),
		OptionIDs: optionIDs,
	}, true, nil
}

func (r *Repository) TryClaim(ctx context.Context, pollID string, voterID string) (bool, error) {
	row := claimModel{
		PollID:    strings.TrimSpace(pollID),
		VoterID:   strings.TrimSpace(voterID),
		ClaimedAt: time.Now().UTC(),
	}
	create := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "poll_id"}, {Name: "voter_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return false, nil
		}
		return false, r.storageError("voting_repo_claim_failed", create.Error,
			"poll_id", row.PollID,
			"voter_id", row.VoterID,
		)
	}
	return create.RowsAffected > 0, nil
}

func (r *Repository) ReleaseClaim(ctx context.Context, pollID string, voterID string) error {
	result := r.db.WithContext(ctx).
		Where("poll_id = ? AND voter_id = ?", strings.TrimSpace(pollID), strings.TrimSpace(voterID)).
		Delete(&claimModel{})
	if result.Error != nil {
		return r.storageError("voting_repo_claim_release_failed", result.Error,
			"poll_id", strings.TrimSpace(pollID),
			"voter_id", strings.TrimSpace(voterID),
		)
	}
	return nil
}

func (r *Repository) AppendVote(ctx context.Context, vote entities.Vote) (int64, error) {
	row := voteModel{
		VoteID:   strings.TrimSpace(vote.VoteID),
		PollID:   strings.TrimSpace(vote.PollID),
		OptionID: strings.TrimSpace(vote.OptionID),
		VoterID:  strings.TrimSpace(vote.VoterID),
		CastAt:   vote.CastAt.UTC(),
	}
	create := r.db.WithContext(ctx).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			// Replayed append of the same vote id returns the position it
			// already holds.
			var existing voteModel
			if err := r.db.WithContext(ctx).
				Select("position").
				Where("vote_id = ?", row.VoteID).
				First(&existing).
				Error; err != nil {
				return 0, r.storageError("voting_repo_append_replay_failed", err,
					"vote_id", row.VoteID,
				)
			}
			return existing.Position, nil
		}
		return 0, r.storageError("voting_repo_append_failed", create.Error,
			"poll_id", row.PollID,
			"vote_id", row.VoteID,
		)
	}
	return row.Position, nil
}

func (r *Repository) ReadAllVotes(ctx context.Context, pollID string) ([]entities.Vote, error) {
	var rows []voteModel
	if err := r.db.WithContext(ctx).
		Where("poll_id = ?", strings.TrimSpace(pollID)).
		Order("position ASC").
		Find(&rows).
		Error; err != nil {
		return nil, r.storageError("voting_repo_read_ledger_failed", err,
			"poll_id", strings.TrimSpace(pollID),
		)
	}

	votes := make([]entities.Vote, 0, len(rows))
	for _, row := range rows {
		votes = append(votes, voteEntityFromModel(row))
	}
	return votes, nil
}

func (r *Repository) PollIDs(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	var ids []string
	if err := r.db.WithContext(ctx).
		Model(&voteModel{}).
		Distinct("poll_id").
		Order("poll_id ASC").
		Limit(limit).
		Pluck("poll_id", &ids).
		Error; err != nil {
		return nil, r.storageError("voting_repo_poll_ids_failed", err)
	}
	return ids, nil
}

func (r *Repository) IncrementOption(ctx context.Context, pollID string, optionID string) error {
	row := tallyModel{
		PollID:    strings.TrimSpace(pollID),
		OptionID:  strings.TrimSpace(optionID),
		VoteCount: 1,
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "poll_id"}, {Name: "option_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"vote_count": gorm.Expr("poll_tallies.vote_count + 1"),
			}),
		}).
		Create(&row)
	if result.Error != nil {
		return r.storageError("voting_repo_tally_increment_failed", result.Error,
			"poll_id", row.PollID,
			"option_id", row.OptionID,
		)
	}
	return nil
}

func (r *Repository) GetTally(ctx context.Context, pollID string) (entities.Tally, bool, error) {
	var rows []tallyModel
	if err := r.db.WithContext(ctx).
		Where("poll_id = ?", strings.TrimSpace(pollID)).
		Find(&rows).
		Error; err != nil {
		return entities.Tally{}, false, r.storageError("voting_repo_tally_read_failed", err,
			"poll_id", strings.TrimSpace(pollID),
		)
	}
	if len(rows) == 0 {
		return entities.Tally{}, false, nil
	}

	tally := entities.NewTally(strings.TrimSpace(pollID))
	for _, row := range rows {
		tally.Counts[row.OptionID] = row.VoteCount
		tally.Total += row.VoteCount
	}
	return tally, true, nil
}

func (r *Repository) ReplaceTally(ctx context.Context, tally entities.Tally) error {
	rows := make([]tallyModel, 0, len(tally.Counts))
	for optionID, count := range tally.Counts {
		rows = append(rows, tallyModel{
			PollID:    strings.TrimSpace(tally.PollID),
			OptionID:  optionID,
			VoteCount: count,
		})
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("poll_id = ?", strings.TrimSpace(tally.PollID)).
			Delete(&tallyModel{}).
			Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return r.storageError("voting_repo_tally_replace_failed", err,
			"poll_id", strings.TrimSpace(tally.PollID),
		)
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
		return r.storageError("voting_repo_outbox_append_failed", createResult.Error,
			"outbox_id", row.OutboxID,
		)
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
		return r.storageError("voting_repo_outbox_load_existing_failed", err,
			"outbox_id", row.OutboxID,
		)
	}
	if !bytes.Equal(existing.Payload, row.Payload) {
		return domainerrors.ErrInvalidVoteInput
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
		return nil, r.storageError("voting_repo_outbox_list_failed", err)
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
		return r.storageError("voting_repo_outbox_mark_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrVoteNotFound
	}
	return nil
}

// storageError logs the underlying cause and hands callers the transient
// storage sentinel, so transport can answer with a retryable status without
// leaking driver details.
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

type pollStateRow struct {
	PollID   string     `gorm:"column:poll_id"`
	Status   string     `gorm:"column:status"`
	ClosesAt *time.Time `gorm:"column:closes_at"`
}

type voteModel struct {
	Position int64     `gorm:"column:position;primaryKey;autoIncrement"`
	VoteID   string    `gorm:"column:vote_id"`
	PollID   string    `gorm:"column:poll_id"`
	OptionID string    `gorm:"column:option_id"`
	VoterID  string    `gorm:"column:voter_id"`
	CastAt   time.Time `gorm:"column:cast_at"`
}

func (voteModel) TableName() string {
	return "vote_ledger"
}

func voteEntityFromModel(row voteModel) entities.Vote {
	return entities.Vote{
		VoteID:   row.VoteID,
		PollID:   row.PollID,
		OptionID: row.OptionID,
		VoterID:  row.VoterID,
		Position: row.Position,
		CastAt:   row.CastAt.UTC(),
	}
}

type claimModel struct {
	PollID    string    `gorm:"column:poll_id;primaryKey"`
	VoterID   string    `gorm:"column:voter_id;primaryKey"`
	ClaimedAt time.Time `gorm:"column:claimed_at"`
}

func (claimModel) TableName() string {
	return "poll_voter_claims"
}

type tallyModel struct {
	PollID    string `gorm:"column:poll_id;primaryKey"`
	OptionID  string `gorm:"column:option_id;primaryKey"`
	VoteCount int64  `gorm:"column:vote_count"`
}

func (tallyModel) TableName() string {
	return "poll_tallies"
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
	return "voting_outbox"
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	utc := value.UTC()
	return &utc
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ ports.PollCatalog = (*Repository)(nil)
var _ ports.VoterRegistry = (*Repository)(nil)
var _ ports.VoteLedger = (*Repository)(nil)
var _ ports.TallyStore = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
