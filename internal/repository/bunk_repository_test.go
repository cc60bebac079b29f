package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/canibunk/canibunk-api/internal/models"
)

func recordEventFixture() (*models.Subject, *models.BunkEvent) {
	subject := &models.Subject{
		ID:                   "sub-1",
		OwnerID:              "user-1",
		TotalClasses:         31,
		AttendedClasses:      26,
		TotalBunks:           5,
		AttendancePercentage: 83.87,
		MaxBunkable:          3,
	}
	event := &models.BunkEvent{
		OwnerID:     "user-1",
		SubjectID:   "sub-1",
		SubjectName: "Physics",
		Kind:        models.BunkKindBunk,
	}
	return subject, event
}

func TestBunkRepositoryRecordEvent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBunkRepository(db)
	subject, event := recordEventFixture()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE subjects")).
		WithArgs(31, 26, 5, 83.87, 3, sqlmock.AnyArg(), "sub-1", "user-1", 30, 26, 4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bunk_events")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ok, err := repo.RecordEvent(context.Background(), subject, 30, 26, 4, event)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, event.ID)
	require.False(t, event.OccurredAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBunkRepositoryRecordEventLostRace(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBunkRepository(db)
	subject, event := recordEventFixture()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE subjects")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	ok, err := repo.RecordEvent(context.Background(), subject, 30, 26, 4, event)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBunkRepositoryRecordEventRollsBackOnInsertFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBunkRepository(db)
	subject, event := recordEventFixture()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE subjects")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bunk_events")).
		WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	// The counter update must not survive a failed event insert.
	ok, err := repo.RecordEvent(context.Background(), subject, 30, 26, 4, event)
	require.Error(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBunkRepositoryListByOwner(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBunkRepository(db)
	rows := sqlmock.NewRows([]string{"id", "owner_id", "subject_id", "subject_name", "occurred_at", "kind", "created_at"}).
		AddRow("ev-2", "user-1", "sub-1", "Physics", time.Now(), "bunk", time.Now()).
		AddRow("ev-1", "user-1", "sub-1", "Physics", time.Now().Add(-time.Hour), "attended", time.Now().Add(-time.Hour))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, owner_id, subject_id, subject_name, occurred_at, kind, created_at FROM bunk_events WHERE owner_id = $1 AND subject_id = $2")).
		WithArgs("user-1", "sub-1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM bunk_events WHERE owner_id = $1 AND subject_id = $2")).
		WithArgs("user-1", "sub-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	events, total, err := repo.ListByOwner(context.Background(), "user-1", models.BunkFilter{SubjectID: "sub-1"})
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, 2, total)
	require.Equal(t, "ev-2", events[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBunkRepositoryTopBunkers(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBunkRepository(db)
	rows := sqlmock.NewRows([]string{"owner_id", "full_name", "total_bunks", "last_bunk"}).
		AddRow("user-2", "Ravi", 12, time.Now()).
		AddRow("user-1", "Asha", 9, time.Now())

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY b.owner_id, u.full_name")).
		WithArgs("bunk", 5).
		WillReturnRows(rows)

	bunkers, err := repo.TopBunkers(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, bunkers, 2)
	require.Equal(t, "Ravi", bunkers[0].FullName)
	require.Equal(t, 12, bunkers[0].TotalBunks)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBunkRepositoryTopBunkersBySubjectName(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBunkRepository(db)
	rows := sqlmock.NewRows([]string{"owner_id", "full_name", "total_bunks", "last_bunk"}).
		AddRow("user-3", "Meera", 7, time.Now())

	mock.ExpectQuery(regexp.QuoteMeta("LOWER(b.subject_name) = LOWER($2)")).
		WithArgs("bunk", "Physics", 5).
		WillReturnRows(rows)

	bunkers, err := repo.TopBunkersBySubjectName(context.Background(), "Physics", 0)
	require.NoError(t, err)
	require.Len(t, bunkers, 1)
	require.Equal(t, "Meera", bunkers[0].FullName)
	require.NoError(t, mock.ExpectationsWereMet())
}
