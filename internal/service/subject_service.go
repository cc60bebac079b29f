package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/canibunk/canibunk-api/internal/attendance"
	"github.com/canibunk/canibunk-api/internal/models"
	appErrors "github.com/canibunk/canibunk-api/pkg/errors"
)

type subjectRepository interface {
	ListByOwner(ctx context.Context, ownerID string, filter models.SubjectFilter) ([]models.Subject, int, error)
	FindByIDAndOwner(ctx context.Context, id, ownerID string) (*models.Subject, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, subject *models.Subject) error
	Delete(ctx context.Context, id, ownerID string) error
}

type leaderboardInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CreateSubjectRequest captures fields for registering a subject. There is one
// canonical schema; alternative field spellings are not accepted.
type CreateSubjectRequest struct {
	Name            string `json:"name" validate:"required"`
	Credits         int    `json:"credits" validate:"omitempty,min=1,max=10"`
	TotalClasses    int    `json:"total_classes" validate:"min=0"`
	AttendedClasses int    `json:"attended_classes" validate:"min=0"`
	MinAttendance   *int   `json:"min_attendance" validate:"omitempty,min=0,max=100"`
}

// UpdateSubjectRequest modifies subject fields.
type UpdateSubjectRequest struct {
	Name            string `json:"name" validate:"required"`
	Credits         int    `json:"credits" validate:"required,min=1,max=10"`
	TotalClasses    int    `json:"total_classes" validate:"min=0"`
	AttendedClasses int    `json:"attended_classes" validate:"min=0"`
	MinAttendance   int    `json:"min_attendance" validate:"min=0,max=100"`
}

const (
	defaultCredits       = 3
	defaultMinAttendance = 75
)

// SubjectService handles subject bookkeeping workflows.
type SubjectService struct {
	repo      subjectRepository
	cache     leaderboardInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService creates a new subject service.
func NewSubjectService(repo subjectRepository, cache leaderboardInvalidator, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// stampPolicy marks a subject response with the allowance policy behind its
// max_bunkable value.
func stampPolicy(subject *models.Subject) *models.Subject {
	subject.BunkPolicy = string(attendance.ActivePolicy)
	return subject
}

// List returns the owner's subjects with pagination.
func (s *SubjectService) List(ctx context.Context, ownerID string, filter models.SubjectFilter) ([]models.Subject, *models.Pagination, error) {
	subjects, total, err := s.repo.ListByOwner(ctx, ownerID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	for i := range subjects {
		stampPolicy(&subjects[i])
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return subjects, pagination, nil
}

// Get returns one subject owned by the caller.
func (s *SubjectService) Get(ctx context.Context, id, ownerID string) (*models.Subject, error) {
	subject, err := s.repo.FindByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	return stampPolicy(subject), nil
}

// Create registers a subject with its starting counters and derived caches.
func (s *SubjectService) Create(ctx context.Context, ownerID string, req CreateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

	credits := req.Credits
	if credits == 0 {
		credits = defaultCredits
	}
	minAttendance := defaultMinAttendance
	if req.MinAttendance != nil {
		minAttendance = *req.MinAttendance
	}

	counters := attendance.Counters{
		Credits:         credits,
		TotalClasses:    req.TotalClasses,
		AttendedClasses: req.AttendedClasses,
		MinAttendance:   minAttendance,
	}
	if err := counters.Validate(); err != nil {
		return nil, err
	}

	derived := attendance.Recompute(counters)
	subject := &models.Subject{
		OwnerID:              ownerID,
		Name:                 strings.TrimSpace(req.Name),
		Credits:              credits,
		TotalClasses:         req.TotalClasses,
		AttendedClasses:      req.AttendedClasses,
		MinAttendance:        minAttendance,
		TotalBunks:           0,
		AttendancePercentage: derived.Percentage,
		MaxBunkable:          derived.MaxBunkable,
	}

	if err := s.repo.Create(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}
	return stampPolicy(subject), nil
}

// Update modifies an existing subject, recomputing derived fields.
func (s *SubjectService) Update(ctx context.Context, id, ownerID string, req UpdateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

	subject, err := s.Get(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	counters := attendance.Counters{
		Credits:         req.Credits,
		TotalClasses:    req.TotalClasses,
		AttendedClasses: req.AttendedClasses,
		MinAttendance:   req.MinAttendance,
		TotalBunks:      subject.TotalBunks,
	}
	if err := counters.Validate(); err != nil {
		return nil, err
	}

	derived := attendance.Recompute(counters)
	subject.Name = strings.TrimSpace(req.Name)
	subject.Credits = req.Credits
	subject.TotalClasses = req.TotalClasses
	subject.AttendedClasses = req.AttendedClasses
	subject.MinAttendance = req.MinAttendance
	subject.AttendancePercentage = derived.Percentage
	subject.MaxBunkable = derived.MaxBunkable

	if err := s.repo.Update(ctx, subject); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject")
	}
	return stampPolicy(subject), nil
}

// Delete removes a subject together with its event history. The repository
// commits both deletes in one transaction.
func (s *SubjectService) Delete(ctx context.Context, id, ownerID string) error {
	subject, err := s.Get(ctx, id, ownerID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, subject.ID, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete subject")
	}

	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, "leaderboard:*"); err != nil {
			s.logger.Warn("failed to invalidate leaderboard cache", zap.Error(err))
		}
	}

	return nil
}
