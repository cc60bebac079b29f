package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/canibunk/canibunk-api/internal/models"
)

const subjectColumns = "id, owner_id, name, credits, total_classes, attended_classes, min_attendance, total_bunks, attendance_percentage, max_bunkable, created_at, updated_at"

// SubjectRepository handles persistence for tracked subjects.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository creates a new repository instance.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// ListByOwner returns the owner's subjects with pagination metadata.
func (r *SubjectRepository) ListByOwner(ctx context.Context, ownerID string, filter models.SubjectFilter) ([]models.Subject, int, error) {
	base := "FROM subjects WHERE owner_id = $1"
	args := []interface{}{ownerID}

	if filter.Search != "" {
		base += fmt.Sprintf(" AND LOWER(name) LIKE $%d", len(args)+1)
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"name":                  true,
		"credits":               true,
		"attendance_percentage": true,
		"max_bunkable":          true,
		"created_at":            true,
		"updated_at":            true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", subjectColumns, base, sortBy, order, size, offset)
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list subjects: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count subjects: %w", err)
	}

	return subjects, total, nil
}

// FindByIDAndOwner returns a subject only when it belongs to the owner.
func (r *SubjectRepository) FindByIDAndOwner(ctx context.Context, id, ownerID string) (*models.Subject, error) {
	query := fmt.Sprintf("SELECT %s FROM subjects WHERE id = $1 AND owner_id = $2", subjectColumns)
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id, ownerID); err != nil {
		return nil, err
	}
	return &subject, nil
}

// Create persists a new subject.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = now
	}
	subject.UpdatedAt = now

	const query = `INSERT INTO subjects (id, owner_id, name, credits, total_classes, attended_classes, min_attendance, total_bunks, attendance_percentage, max_bunkable, created_at, updated_at)
		VALUES (:id, :owner_id, :name, :credits, :total_classes, :attended_classes, :min_attendance, :total_bunks, :attendance_percentage, :max_bunkable, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

// Update rewrites the editable fields and derived caches of a subject.
func (r *SubjectRepository) Update(ctx context.Context, subject *models.Subject) error {
	subject.UpdatedAt = time.Now().UTC()
	const query = `UPDATE subjects SET name = :name, credits = :credits, total_classes = :total_classes, attended_classes = :attended_classes, min_attendance = :min_attendance, total_bunks = :total_bunks, attendance_percentage = :attendance_percentage, max_bunkable = :max_bunkable, updated_at = :updated_at
		WHERE id = :id AND owner_id = :owner_id`
	res, err := r.db.NamedExecContext(ctx, query, subject)
	if err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update subject rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a subject owned by the given user together with its event
// history. Both deletes run in one transaction so a failure leaves neither
// orphaned events nor a half-removed subject behind.
func (r *SubjectRepository) Delete(ctx context.Context, id, ownerID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete subject: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM bunk_events WHERE subject_id = $1 AND owner_id = $2`, id, ownerID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete subject events: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM subjects WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete subject: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete subject rows: %w", err)
	}
	if affected == 0 {
		_ = tx.Rollback()
		return sql.ErrNoRows
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete subject: %w", err)
	}
	return nil
}
