package models

import "time"

// BunkKind enumerates the event types in the bunk log.
type BunkKind string

const (
	BunkKindBunk     BunkKind = "bunk"
	BunkKindAttended BunkKind = "attended"
)

// Valid reports whether the kind is one of the enumerated values.
func (k BunkKind) Valid() bool {
	return k == BunkKindBunk || k == BunkKindAttended
}

// BunkEvent is one append-only absence or attendance record. SubjectName is a
// denormalized display copy; SubjectID is the authoritative reference.
type BunkEvent struct {
	ID          string    `db:"id" json:"id"`
	OwnerID     string    `db:"owner_id" json:"owner_id"`
	SubjectID   string    `db:"subject_id" json:"subject_id"`
	SubjectName string    `db:"subject_name" json:"subject_name"`
	OccurredAt  time.Time `db:"occurred_at" json:"occurred_at"`
	Kind        BunkKind  `db:"kind" json:"kind"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// BunkFilter captures history listing options.
type BunkFilter struct {
	SubjectID string
	Kind      BunkKind
	Page      int
	PageSize  int
}
