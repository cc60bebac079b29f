package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/canibunk/canibunk-api/internal/models"
)

// CalendarTokenRepository persists per-user Google OAuth credentials.
type CalendarTokenRepository struct {
	db *sqlx.DB
}

// NewCalendarTokenRepository creates a new repository instance.
func NewCalendarTokenRepository(db *sqlx.DB) *CalendarTokenRepository {
	return &CalendarTokenRepository{db: db}
}

// Upsert stores or replaces the user's Google credentials.
func (r *CalendarTokenRepository) Upsert(ctx context.Context, token *models.GoogleToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if token.CreatedAt.IsZero() {
		token.CreatedAt = now
	}
	token.UpdatedAt = now

	const query = `INSERT INTO google_tokens (id, user_id, access_token, refresh_token, scope, token_type, expiry, created_at, updated_at)
		VALUES (:id, :user_id, :access_token, :refresh_token, :scope, :token_type, :expiry, :created_at, :updated_at)
		ON CONFLICT (user_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = CASE WHEN EXCLUDED.refresh_token <> '' THEN EXCLUDED.refresh_token ELSE google_tokens.refresh_token END,
			scope = EXCLUDED.scope,
			token_type = EXCLUDED.token_type,
			expiry = EXCLUDED.expiry,
			updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("upsert google token: %w", err)
	}
	return nil
}

// FindByUser returns the stored credentials for a user.
func (r *CalendarTokenRepository) FindByUser(ctx context.Context, userID string) (*models.GoogleToken, error) {
	const query = `SELECT id, user_id, access_token, refresh_token, scope, token_type, expiry, created_at, updated_at FROM google_tokens WHERE user_id = $1`
	var token models.GoogleToken
	if err := r.db.GetContext(ctx, &token, query, userID); err != nil {
		return nil, err
	}
	return &token, nil
}

// DeleteByUser disconnects the user's calendar.
func (r *CalendarTokenRepository) DeleteByUser(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM google_tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete google token: %w", err)
	}
	return nil
}
