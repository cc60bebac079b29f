package models

import "time"

// GoogleToken stores per-user Google OAuth credentials for calendar sync.
type GoogleToken struct {
	ID           string    `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"user_id"`
	AccessToken  string    `db:"access_token" json:"-"`
	RefreshToken string    `db:"refresh_token" json:"-"`
	Scope        string    `db:"scope" json:"scope"`
	TokenType    string    `db:"token_type" json:"token_type"`
	Expiry       time.Time `db:"expiry" json:"expiry"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// CalendarEventRequest asks for a bunk-day entry in the user's calendar.
type CalendarEventRequest struct {
	Date     string   `json:"date" validate:"required,datetime=2006-01-02"`
	Subjects []string `json:"subjects" validate:"required,min=1,dive,required"`
}
