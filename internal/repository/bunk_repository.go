package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/canibunk/canibunk-api/internal/models"
)

// BunkRepository handles the append-only bunk event log.
type BunkRepository struct {
	db *sqlx.DB
}

// NewBunkRepository creates a new repository instance.
func NewBunkRepository(db *sqlx.DB) *BunkRepository {
	return &BunkRepository{db: db}
}

// RecordEvent commits one counter transition and its event row in a single
// transaction: the subject counters are rewritten only while they still match
// the expected snapshot, and the event insert rides the same transaction so a
// failed insert rolls the counters back. Returns false without error when
// another writer got to the counters first. Events are never updated
// afterwards.
func (r *BunkRepository) RecordEvent(ctx context.Context, subject *models.Subject, expectedTotal, expectedAttended, expectedBunks int, event *models.BunkEvent) (bool, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if event.OccurredAt.IsZero() {
		event.OccurredAt = now
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	subject.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin record event: %w", err)
	}

	const updateQuery = `UPDATE subjects
		SET total_classes = $1, attended_classes = $2, total_bunks = $3, attendance_percentage = $4, max_bunkable = $5, updated_at = $6
		WHERE id = $7 AND owner_id = $8 AND total_classes = $9 AND attended_classes = $10 AND total_bunks = $11`
	res, err := tx.ExecContext(ctx, updateQuery,
		subject.TotalClasses,
		subject.AttendedClasses,
		subject.TotalBunks,
		subject.AttendancePercentage,
		subject.MaxBunkable,
		subject.UpdatedAt,
		subject.ID,
		subject.OwnerID,
		expectedTotal,
		expectedAttended,
		expectedBunks,
	)
	if err != nil {
		_ = tx.Rollback()
		return false, fmt.Errorf("conditional update subject counters: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return false, fmt.Errorf("conditional update rows: %w", err)
	}
	if affected == 0 {
		_ = tx.Rollback()
		return false, nil
	}

	const insertQuery = `INSERT INTO bunk_events (id, owner_id, subject_id, subject_name, occurred_at, kind, created_at)
		VALUES (:id, :owner_id, :subject_id, :subject_name, :occurred_at, :kind, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertQuery, event); err != nil {
		_ = tx.Rollback()
		return false, fmt.Errorf("append bunk event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit record event: %w", err)
	}
	return true, nil
}

// ListByOwner returns the owner's history, newest first.
func (r *BunkRepository) ListByOwner(ctx context.Context, ownerID string, filter models.BunkFilter) ([]models.BunkEvent, int, error) {
	base := "FROM bunk_events WHERE owner_id = $1"
	args := []interface{}{ownerID}

	if filter.SubjectID != "" {
		base += fmt.Sprintf(" AND subject_id = $%d", len(args)+1)
		args = append(args, filter.SubjectID)
	}
	if filter.Kind != "" {
		base += fmt.Sprintf(" AND kind = $%d", len(args)+1)
		args = append(args, filter.Kind)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 100
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT id, owner_id, subject_id, subject_name, occurred_at, kind, created_at %s ORDER BY occurred_at DESC LIMIT %d OFFSET %d", base, size, offset)
	var events []models.BunkEvent
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list bunk events: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count bunk events: %w", err)
	}

	return events, total, nil
}

// TopBunkersBySubjectName aggregates the heaviest bunkers for one subject name
// across all users, capped at limit.
func (r *BunkRepository) TopBunkersBySubjectName(ctx context.Context, subjectName string, limit int) ([]models.TopBunker, error) {
	if limit <= 0 {
		limit = 5
	}
	const query = `SELECT b.owner_id, COALESCE(u.full_name, '') AS full_name, COUNT(*) AS total_bunks, MAX(b.occurred_at) AS last_bunk
		FROM bunk_events b
		LEFT JOIN users u ON u.id = b.owner_id
		WHERE b.kind = $1 AND LOWER(b.subject_name) = LOWER($2)
		GROUP BY b.owner_id, u.full_name
		ORDER BY total_bunks DESC, last_bunk DESC
		LIMIT $3`
	var bunkers []models.TopBunker
	if err := r.db.SelectContext(ctx, &bunkers, query, models.BunkKindBunk, subjectName, limit); err != nil {
		return nil, fmt.Errorf("top bunkers by subject: %w", err)
	}
	return bunkers, nil
}

// TopBunkers aggregates the heaviest bunkers across all subjects.
func (r *BunkRepository) TopBunkers(ctx context.Context, limit int) ([]models.TopBunker, error) {
	if limit <= 0 {
		limit = 5
	}
	const query = `SELECT b.owner_id, COALESCE(u.full_name, '') AS full_name, COUNT(*) AS total_bunks, MAX(b.occurred_at) AS last_bunk
		FROM bunk_events b
		LEFT JOIN users u ON u.id = b.owner_id
		WHERE b.kind = $1
		GROUP BY b.owner_id, u.full_name
		ORDER BY total_bunks DESC, last_bunk DESC
		LIMIT $2`
	var bunkers []models.TopBunker
	if err := r.db.SelectContext(ctx, &bunkers, query, models.BunkKindBunk, limit); err != nil {
		return nil, fmt.Errorf("top bunkers: %w", err)
	}
	return bunkers, nil
}
