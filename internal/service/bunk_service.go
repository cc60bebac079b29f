package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/canibunk/canibunk-api/internal/attendance"
	"github.com/canibunk/canibunk-api/internal/models"
	appErrors "github.com/canibunk/canibunk-api/pkg/errors"
)

// counterUpdateAttempts bounds the optimistic retry loop before the caller
// gets a conflict back.
const counterUpdateAttempts = 3

type bunkSubjectRepository interface {
	FindByIDAndOwner(ctx context.Context, id, ownerID string) (*models.Subject, error)
}

type bunkEventRepository interface {
	RecordEvent(ctx context.Context, subject *models.Subject, expectedTotal, expectedAttended, expectedBunks int, event *models.BunkEvent) (bool, error)
	ListByOwner(ctx context.Context, ownerID string, filter models.BunkFilter) ([]models.BunkEvent, int, error)
}

// BunkService records bunk and attend events against subject counters.
type BunkService struct {
	subjects bunkSubjectRepository
	events   bunkEventRepository
	cache    leaderboardInvalidator
	logger   *zap.Logger
}

// NewBunkService creates a new bunk service.
func NewBunkService(subjects bunkSubjectRepository, events bunkEventRepository, cache leaderboardInvalidator, logger *zap.Logger) *BunkService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BunkService{subjects: subjects, events: events, cache: cache, logger: logger}
}

// Record applies one event of the given kind to a subject. The counter write
// and the event row commit in one transaction, conditional on the counters
// read; a lost race re-reads and retries up to counterUpdateAttempts times
// before surfacing a conflict.
func (s *BunkService) Record(ctx context.Context, subjectID, ownerID string, kind models.BunkKind) (*models.Subject, *models.BunkEvent, error) {
	if !kind.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "kind must be bunk or attended")
	}

	var updated *models.Subject
	var recorded *models.BunkEvent
	for attempt := 0; attempt < counterUpdateAttempts; attempt++ {
		subject, err := s.subjects.FindByIDAndOwner(ctx, subjectID, ownerID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
			}
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
		}

		counters := attendance.Counters{
			Credits:         subject.Credits,
			TotalClasses:    subject.TotalClasses,
			AttendedClasses: subject.AttendedClasses,
			MinAttendance:   subject.MinAttendance,
			TotalBunks:      subject.TotalBunks,
		}

		var next attendance.Counters
		if kind == models.BunkKindBunk {
			next, err = attendance.ApplyBunk(counters)
		} else {
			next, err = attendance.ApplyAttend(counters)
		}
		if err != nil {
			return nil, nil, err
		}

		derived := attendance.Recompute(next)
		subject.TotalClasses = next.TotalClasses
		subject.AttendedClasses = next.AttendedClasses
		subject.TotalBunks = next.TotalBunks
		subject.AttendancePercentage = derived.Percentage
		subject.MaxBunkable = derived.MaxBunkable

		event := &models.BunkEvent{
			OwnerID:     ownerID,
			SubjectID:   subject.ID,
			SubjectName: subject.Name,
			OccurredAt:  time.Now().UTC(),
			Kind:        kind,
		}

		ok, err := s.events.RecordEvent(ctx, subject, counters.TotalClasses, counters.AttendedClasses, counters.TotalBunks, event)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record event")
		}
		if ok {
			updated = subject
			recorded = event
			break
		}
		s.logger.Debug("counter update lost race, retrying",
			zap.String("subject_id", subjectID),
			zap.Int("attempt", attempt+1),
		)
	}
	if updated == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrConflict, "subject was modified concurrently, retry the request")
	}

	if s.cache != nil && kind == models.BunkKindBunk {
		if err := s.cache.DeleteByPattern(ctx, "leaderboard:*"); err != nil {
			s.logger.Warn("failed to invalidate leaderboard cache", zap.Error(err))
		}
	}

	return stampPolicy(updated), recorded, nil
}

// History returns the owner's event log, newest first.
func (s *BunkService) History(ctx context.Context, ownerID string, filter models.BunkFilter) ([]models.BunkEvent, *models.Pagination, error) {
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "kind must be bunk or attended")
	}

	events, total, err := s.events.ListByOwner(ctx, ownerID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 100
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return events, pagination, nil
}
