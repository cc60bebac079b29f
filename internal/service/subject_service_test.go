package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canibunk/canibunk-api/internal/models"
	appErrors "github.com/canibunk/canibunk-api/pkg/errors"
)

type subjectRepoStub struct {
	subjects  []models.Subject
	total     int
	found     *models.Subject
	listErr   error
	findErr   error
	createErr error
	updateErr error
	deleteErr error
	created   *models.Subject
	updated   *models.Subject
	deletedID string
}

func (s *subjectRepoStub) ListByOwner(ctx context.Context, ownerID string, filter models.SubjectFilter) ([]models.Subject, int, error) {
	return s.subjects, s.total, s.listErr
}

func (s *subjectRepoStub) FindByIDAndOwner(ctx context.Context, id, ownerID string) (*models.Subject, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	clone := *s.found
	return &clone, nil
}

func (s *subjectRepoStub) Create(ctx context.Context, subject *models.Subject) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = subject
	return nil
}

func (s *subjectRepoStub) Update(ctx context.Context, subject *models.Subject) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updated = subject
	return nil
}

func (s *subjectRepoStub) Delete(ctx context.Context, id, ownerID string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deletedID = id
	return nil
}

func TestSubjectServiceCreateDefaults(t *testing.T) {
	repo := &subjectRepoStub{}
	svc := NewSubjectService(repo, nil, nil, nil)

	subject, err := svc.Create(context.Background(), "user-1", CreateSubjectRequest{Name: "  Physics  "})
	require.NoError(t, err)

	assert.Equal(t, "Physics", subject.Name)
	assert.Equal(t, defaultCredits, subject.Credits)
	assert.Equal(t, defaultMinAttendance, subject.MinAttendance)
	assert.Equal(t, 0, subject.TotalClasses)
	assert.Equal(t, float64(0), subject.AttendancePercentage)
	// No classes held yet: full credit allowance remains.
	assert.Equal(t, defaultCredits*2, subject.MaxBunkable)
	assert.Equal(t, "credit_allowance", subject.BunkPolicy)
	require.NotNil(t, repo.created)
}

func TestSubjectServiceCreateDerivedFields(t *testing.T) {
	repo := &subjectRepoStub{}
	svc := NewSubjectService(repo, nil, nil, nil)

	minAtt := 80
	subject, err := svc.Create(context.Background(), "user-1", CreateSubjectRequest{
		Name:            "Algorithms",
		Credits:         4,
		TotalClasses:    27,
		AttendedClasses: 22,
		MinAttendance:   &minAtt,
	})
	require.NoError(t, err)

	assert.InDelta(t, 81.48, subject.AttendancePercentage, 0.001)
	assert.Equal(t, 3, subject.MaxBunkable)
	assert.Equal(t, 80, subject.MinAttendance)
}

func TestSubjectServiceCreateRejectsAttendedAboveTotal(t *testing.T) {
	svc := NewSubjectService(&subjectRepoStub{}, nil, nil, nil)

	_, err := svc.Create(context.Background(), "user-1", CreateSubjectRequest{
		Name:            "Chemistry",
		TotalClasses:    10,
		AttendedClasses: 12,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSubjectServiceCreateRejectsMissingName(t *testing.T) {
	svc := NewSubjectService(&subjectRepoStub{}, nil, nil, nil)

	_, err := svc.Create(context.Background(), "user-1", CreateSubjectRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSubjectServiceUpdateRecomputesDerived(t *testing.T) {
	existing := testSubject()
	repo := &subjectRepoStub{found: existing}
	svc := NewSubjectService(repo, nil, nil, nil)

	subject, err := svc.Update(context.Background(), "sub-1", "user-1", UpdateSubjectRequest{
		Name:            "Discrete Math II",
		Credits:         3,
		TotalClasses:    40,
		AttendedClasses: 30,
		MinAttendance:   70,
	})
	require.NoError(t, err)

	assert.Equal(t, "Discrete Math II", subject.Name)
	assert.InDelta(t, 75.0, subject.AttendancePercentage, 0.001)
	// 3 credits grant 6 bunks, 10 classes already missed.
	assert.Equal(t, 0, subject.MaxBunkable)
	// Bunk counter carries over from the stored subject.
	assert.Equal(t, existing.TotalBunks, subject.TotalBunks)
	require.NotNil(t, repo.updated)
}

func TestSubjectServiceGetNotFound(t *testing.T) {
	repo := &subjectRepoStub{findErr: sql.ErrNoRows}
	svc := NewSubjectService(repo, nil, nil, nil)

	_, err := svc.Get(context.Background(), "missing", "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSubjectServiceDeleteInvalidatesLeaderboard(t *testing.T) {
	repo := &subjectRepoStub{found: testSubject()}
	cache := &cacheInvalidatorStub{}
	svc := NewSubjectService(repo, cache, nil, nil)

	err := svc.Delete(context.Background(), "sub-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "sub-1", repo.deletedID)
	assert.Equal(t, []string{"leaderboard:*"}, cache.patterns)
}

func TestSubjectServiceListPagination(t *testing.T) {
	repo := &subjectRepoStub{subjects: []models.Subject{*testSubject()}, total: 7}
	svc := NewSubjectService(repo, nil, nil, nil)

	subjects, pagination, err := svc.List(context.Background(), "user-1", models.SubjectFilter{Page: 2, PageSize: 3})
	require.NoError(t, err)
	assert.Len(t, subjects, 1)
	assert.Equal(t, "credit_allowance", subjects[0].BunkPolicy)
	assert.Equal(t, 2, pagination.Page)
	assert.Equal(t, 3, pagination.PageSize)
	assert.Equal(t, 7, pagination.TotalCount)
}
