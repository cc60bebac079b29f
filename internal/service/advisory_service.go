package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/canibunk/canibunk-api/internal/attendance"
	"github.com/canibunk/canibunk-api/internal/client"
	"github.com/canibunk/canibunk-api/internal/models"
	"github.com/canibunk/canibunk-api/pkg/config"
	appErrors "github.com/canibunk/canibunk-api/pkg/errors"
)

const weatherCacheKey = "weather:current"

type advisorySubjectRepository interface {
	FindByIDAndOwner(ctx context.Context, id, ownerID string) (*models.Subject, error)
}

type weatherProvider interface {
	Current(ctx context.Context) (*client.WeatherSnapshot, error)
}

type advisoryTextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type weatherCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Advisory is the full answer to "can I bunk this class today".
type Advisory struct {
	SubjectID      string                     `json:"subject_id"`
	SubjectName    string                     `json:"subject_name"`
	Verdict        attendance.AdvisoryVerdict `json:"verdict"`
	MaxBunkable    int                        `json:"max_bunkable"`
	Percentage     float64                    `json:"attendance_percentage"`
	Tip            string                     `json:"tip,omitempty"`
	WeatherSummary string                     `json:"weather_summary,omitempty"`
	Message        string                     `json:"message"`
	GeneratedAt    time.Time                  `json:"generated_at"`
}

// AdvisoryService answers bunk advisories. The verdict comes from the decision
// table alone; weather and the text generator only refine or phrase it, and
// both lookups degrade gracefully when unavailable.
type AdvisoryService struct {
	subjects advisorySubjectRepository
	weather  weatherProvider
	text     advisoryTextGenerator
	cache    weatherCache
	metrics  *MetricsService
	config   config.AdvisoryConfig
	logger   *zap.Logger
}

// NewAdvisoryService creates a new advisory service. Weather, text, cache, and
// metrics may each be nil; the advisory then falls back to templated output.
func NewAdvisoryService(subjects advisorySubjectRepository, weather weatherProvider, text advisoryTextGenerator, cache weatherCache, metrics *MetricsService, cfg config.AdvisoryConfig, logger *zap.Logger) *AdvisoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdvisoryService{
		subjects: subjects,
		weather:  weather,
		text:     text,
		cache:    cache,
		metrics:  metrics,
		config:   cfg,
		logger:   logger,
	}
}

// Advise computes the bunk recommendation for one subject.
func (s *AdvisoryService) Advise(ctx context.Context, subjectID, ownerID string) (*Advisory, error) {
	subject, err := s.subjects.FindByIDAndOwner(ctx, subjectID, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	snapshot := s.currentWeather(ctx)
	severe := snapshot != nil && attendance.IsSevereWeather(snapshot.Description)

	decision := attendance.Classify(severe, subject.AttendancePercentage, subject.MaxBunkable)

	advisory := &Advisory{
		SubjectID:   subject.ID,
		SubjectName: subject.Name,
		Verdict:     decision.Verdict,
		MaxBunkable: decision.MaxBunkable,
		Percentage:  subject.AttendancePercentage,
		Tip:         decision.Tip,
		GeneratedAt: time.Now().UTC(),
	}
	if snapshot != nil {
		advisory.WeatherSummary = snapshot.Summary()
	}
	advisory.Message = s.composeMessage(ctx, subject, decision, snapshot)

	return advisory, nil
}

// currentWeather returns the cached or freshly fetched snapshot, or nil when
// weather lookups are unavailable.
func (s *AdvisoryService) currentWeather(ctx context.Context) *client.WeatherSnapshot {
	if s.weather == nil {
		return nil
	}

	if s.cache != nil {
		var cached client.WeatherSnapshot
		if err := s.cache.Get(ctx, weatherCacheKey, &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return &cached
		}
		s.metrics.RecordCacheOperation(false)
	}

	snapshot, err := s.weather.Current(ctx)
	if err != nil {
		s.logger.Warn("weather lookup failed, advisory continues without it", zap.Error(err))
		return nil
	}

	if s.cache != nil {
		ttl := s.config.WeatherCacheTTL
		if ttl <= 0 {
			ttl = 15 * time.Minute
		}
		if err := s.cache.Set(ctx, weatherCacheKey, snapshot, ttl); err != nil {
			s.logger.Warn("failed to cache weather snapshot", zap.Error(err))
		}
	}

	return snapshot
}

// composeMessage asks the text generator to phrase the already-made decision,
// falling back to a template on any failure.
func (s *AdvisoryService) composeMessage(ctx context.Context, subject *models.Subject, decision attendance.Decision, snapshot *client.WeatherSnapshot) string {
	fallback := templateMessage(subject, decision)
	if s.text == nil {
		return fallback
	}

	weatherLine := "weather data unavailable"
	if snapshot != nil {
		weatherLine = snapshot.Summary()
	}
	tipLine := ""
	if decision.Tip != "" {
		tipLine = " Include this advice: " + decision.Tip
	}
	prompt := fmt.Sprintf(
		"You are a witty but responsible college attendance assistant. The decision is already made; do not change it. "+
			"Subject: %s. Attendance: %.2f%%. Remaining safe bunks: %d. Verdict: %s. Weather: %s.%s "+
			"Write one short friendly paragraph telling the student this verdict.",
		subject.Name, subject.AttendancePercentage, decision.MaxBunkable, decision.Verdict, weatherLine, tipLine,
	)

	message, err := s.text.Generate(ctx, prompt)
	if err != nil {
		s.logger.Warn("advisory text generation failed, using template", zap.Error(err))
		return fallback
	}
	if message == "" {
		return fallback
	}
	return message
}

func templateMessage(subject *models.Subject, decision attendance.Decision) string {
	switch decision.Verdict {
	case attendance.VerdictYes:
		return fmt.Sprintf("Yes, you can bunk %s. You have %d safe bunk(s) left at %.2f%% attendance.",
			subject.Name, decision.MaxBunkable, subject.AttendancePercentage)
	case attendance.VerdictYesException:
		return fmt.Sprintf("The weather is rough enough to justify skipping %s today, but your attendance is at %.2f%%, so treat this as a one-off.",
			subject.Name, subject.AttendancePercentage)
	default:
		msg := fmt.Sprintf("No, attend %s. Your attendance is %.2f%% and you have no safe bunks left.",
			subject.Name, subject.AttendancePercentage)
		if decision.Tip != "" {
			msg += " " + decision.Tip
		}
		return msg
	}
}
