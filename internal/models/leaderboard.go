package models

import "time"

// TopBunker is one leaderboard row, recomputed from the bunk event log.
type TopBunker struct {
	OwnerID    string    `db:"owner_id" json:"owner_id"`
	FullName   string    `db:"full_name" json:"full_name"`
	TotalBunks int       `db:"total_bunks" json:"total_bunks"`
	LastBunk   time.Time `db:"last_bunk" json:"last_bunk"`
}

// SubjectLeaderboard groups top bunkers under a subject name.
type SubjectLeaderboard struct {
	SubjectName string      `json:"subject_name"`
	Bunkers     []TopBunker `json:"bunkers"`
	GeneratedAt time.Time   `json:"generated_at"`
}
