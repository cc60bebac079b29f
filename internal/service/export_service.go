package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/canibunk/canibunk-api/internal/models"
	appErrors "github.com/canibunk/canibunk-api/pkg/errors"
	"github.com/canibunk/canibunk-api/pkg/export"
)

const exportPageSize = 100

type exportSubjectRepository interface {
	ListByOwner(ctx context.Context, ownerID string, filter models.SubjectFilter) ([]models.Subject, int, error)
}

type exportEventRepository interface {
	ListByOwner(ctx context.Context, ownerID string, filter models.BunkFilter) ([]models.BunkEvent, int, error)
}

// ExportService renders attendance data as downloadable files.
type ExportService struct {
	subjects exportSubjectRepository
	events   exportEventRepository
	logger   *zap.Logger
}

// NewExportService creates a new export service.
func NewExportService(subjects exportSubjectRepository, events exportEventRepository, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{subjects: subjects, events: events, logger: logger}
}

// HistoryCSV renders the owner's full event log as CSV.
func (s *ExportService) HistoryCSV(ctx context.Context, ownerID string) ([]byte, string, error) {
	table := export.Table{
		Headers: []string{"Subject", "Kind", "Occurred At", "Recorded At"},
	}

	for page := 1; ; page++ {
		events, total, err := s.events.ListByOwner(ctx, ownerID, models.BunkFilter{Page: page, PageSize: exportPageSize})
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load history")
		}
		for _, e := range events {
			table.Rows = append(table.Rows, []string{
				e.SubjectName,
				string(e.Kind),
				e.OccurredAt.UTC().Format(time.RFC3339),
				e.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		if len(table.Rows) >= total || len(events) == 0 {
			break
		}
	}

	data, err := export.CSV(table)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}

	filename := fmt.Sprintf("bunk-history-%s.csv", time.Now().UTC().Format("2006-01-02"))
	return data, filename, nil
}

// SubjectsPDF renders an attendance report across the owner's subjects.
func (s *ExportService) SubjectsPDF(ctx context.Context, ownerID string) ([]byte, string, error) {
	subjects, _, err := s.subjects.ListByOwner(ctx, ownerID, models.SubjectFilter{Page: 1, PageSize: exportPageSize, SortBy: "name", SortOrder: "ASC"})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}

	table := export.Table{
		Headers: []string{"Subject", "Credits", "Attended", "Total", "Attendance %", "Safe Bunks", "Bunked"},
	}

	totalBunks := 0
	belowThreshold := 0
	for _, sub := range subjects {
		table.Rows = append(table.Rows, []string{
			sub.Name,
			strconv.Itoa(sub.Credits),
			strconv.Itoa(sub.AttendedClasses),
			strconv.Itoa(sub.TotalClasses),
			fmt.Sprintf("%.2f", sub.AttendancePercentage),
			strconv.Itoa(sub.MaxBunkable),
			strconv.Itoa(sub.TotalBunks),
		})
		totalBunks += sub.TotalBunks
		if sub.AttendancePercentage < float64(sub.MinAttendance) {
			belowThreshold++
		}
	}

	summary := []string{
		fmt.Sprintf("Subjects tracked: %d", len(subjects)),
		fmt.Sprintf("Total classes bunked: %d", totalBunks),
		fmt.Sprintf("Subjects below their attendance threshold: %d", belowThreshold),
	}

	data, err := export.PDF(table, "Attendance Report", summary)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
	}

	filename := fmt.Sprintf("attendance-report-%s.pdf", time.Now().UTC().Format("2006-01-02"))
	return data, filename, nil
}
