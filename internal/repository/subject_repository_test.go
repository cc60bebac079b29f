package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/canibunk/canibunk-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func subjectRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "owner_id", "name", "credits", "total_classes", "attended_classes",
		"min_attendance", "total_bunks", "attendance_percentage", "max_bunkable",
		"created_at", "updated_at",
	})
}

func TestSubjectRepositoryCreateAndFind(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubjectRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO subjects")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	subject := &models.Subject{
		OwnerID:              "user-1",
		Name:                 "Physics",
		Credits:              4,
		TotalClasses:         30,
		AttendedClasses:      26,
		MinAttendance:        75,
		AttendancePercentage: 86.67,
		MaxBunkable:          4,
	}
	require.NoError(t, repo.Create(context.Background(), subject))
	require.NotEmpty(t, subject.ID)

	rows := subjectRows().AddRow(subject.ID, "user-1", "Physics", 4, 30, 26, 75, 0, 86.67, 4, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+subjectColumns+" FROM subjects WHERE id = $1 AND owner_id = $2")).
		WithArgs(subject.ID, "user-1").
		WillReturnRows(rows)

	found, err := repo.FindByIDAndOwner(context.Background(), subject.ID, "user-1")
	require.NoError(t, err)
	require.Equal(t, "Physics", found.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectRepositoryFindNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubjectRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + subjectColumns + " FROM subjects")).
		WithArgs("missing", "user-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByIDAndOwner(context.Background(), "missing", "user-1")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSubjectRepositoryListFiltersAndCounts(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubjectRepository(db)
	rows := subjectRows().AddRow("sub-1", "user-1", "Physics", 4, 30, 26, 75, 4, 86.67, 4, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + subjectColumns + " FROM subjects WHERE owner_id = $1 AND LOWER(name) LIKE $2")).
		WithArgs("user-1", "%phy%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM subjects WHERE owner_id = $1")).
		WithArgs("user-1", "%phy%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	subjects, total, err := repo.ListByOwner(context.Background(), "user-1", models.SubjectFilter{Search: "Phy"})
	require.NoError(t, err)
	require.Len(t, subjects, 1)
	require.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectRepositoryDeleteCascadesEvents(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubjectRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM bunk_events WHERE subject_id = $1 AND owner_id = $2")).
		WithArgs("sub-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM subjects WHERE id = $1 AND owner_id = $2")).
		WithArgs("sub-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "sub-1", "user-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubjectRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM bunk_events WHERE subject_id = $1 AND owner_id = $2")).
		WithArgs("missing", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM subjects WHERE id = $1 AND owner_id = $2")).
		WithArgs("missing", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "missing", "user-1")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectRepositoryDeleteRollsBackOnEventFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewSubjectRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM bunk_events WHERE subject_id = $1 AND owner_id = $2")).
		WithArgs("sub-1", "user-1").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	// The subject row must survive when the event cascade fails.
	err := repo.Delete(context.Background(), "sub-1", "user-1")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
