package models

import "time"

// Subject is one tracked course with its attendance counters. The
// attendance_percentage and max_bunkable columns are derived caches and are
// recomputed on every mutation, never written independently.
type Subject struct {
	ID                   string    `db:"id" json:"id"`
	OwnerID              string    `db:"owner_id" json:"owner_id"`
	Name                 string    `db:"name" json:"name"`
	Credits              int       `db:"credits" json:"credits"`
	TotalClasses         int       `db:"total_classes" json:"total_classes"`
	AttendedClasses      int       `db:"attended_classes" json:"attended_classes"`
	MinAttendance        int       `db:"min_attendance" json:"min_attendance"`
	TotalBunks           int       `db:"total_bunks" json:"total_bunks"`
	AttendancePercentage float64   `db:"attendance_percentage" json:"attendance_percentage"`
	MaxBunkable          int       `db:"max_bunkable" json:"max_bunkable"`
	// BunkPolicy names the allowance policy behind max_bunkable. Not stored;
	// the service layer stamps it on every response.
	BunkPolicy string    `db:"-" json:"bunk_policy"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectFilter captures supported filters for listing subjects.
type SubjectFilter struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
