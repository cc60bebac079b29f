package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/canibunk/canibunk-api/internal/models"
	"github.com/canibunk/canibunk-api/pkg/config"
	appErrors "github.com/canibunk/canibunk-api/pkg/errors"
)

type leaderboardRepository interface {
	TopBunkers(ctx context.Context, limit int) ([]models.TopBunker, error)
	TopBunkersBySubjectName(ctx context.Context, subjectName string, limit int) ([]models.TopBunker, error)
}

type leaderboardCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// LeaderboardService serves the top-bunkers rankings recomputed from the event
// log and cached in Redis.
type LeaderboardService struct {
	repo    leaderboardRepository
	cache   leaderboardCache
	metrics *MetricsService
	config  config.LeaderboardConfig
	logger  *zap.Logger
}

// NewLeaderboardService creates a new leaderboard service. metrics may be nil.
func NewLeaderboardService(repo leaderboardRepository, cache leaderboardCache, metrics *MetricsService, cfg config.LeaderboardConfig, logger *zap.Logger) *LeaderboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeaderboardService{repo: repo, cache: cache, metrics: metrics, config: cfg, logger: logger}
}

func (s *LeaderboardService) size() int {
	if s.config.Size > 0 {
		return s.config.Size
	}
	return 5
}

func (s *LeaderboardService) ttl() time.Duration {
	if s.config.CacheTTL > 0 {
		return s.config.CacheTTL
	}
	return 5 * time.Minute
}

// Overall returns the top bunkers across every subject.
func (s *LeaderboardService) Overall(ctx context.Context) (*models.SubjectLeaderboard, error) {
	return s.fetch(ctx, "leaderboard:overall", "", func(ctx context.Context) ([]models.TopBunker, error) {
		return s.repo.TopBunkers(ctx, s.size())
	})
}

// BySubject returns the top bunkers for one subject name across all users.
func (s *LeaderboardService) BySubject(ctx context.Context, subjectName string) (*models.SubjectLeaderboard, error) {
	name := strings.TrimSpace(subjectName)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subject name is required")
	}

	key := fmt.Sprintf("leaderboard:subject:%s", strings.ToLower(name))
	return s.fetch(ctx, key, name, func(ctx context.Context) ([]models.TopBunker, error) {
		return s.repo.TopBunkersBySubjectName(ctx, name, s.size())
	})
}

func (s *LeaderboardService) fetch(ctx context.Context, cacheKey, subjectName string, load func(context.Context) ([]models.TopBunker, error)) (*models.SubjectLeaderboard, error) {
	if s.cache != nil {
		var cached models.SubjectLeaderboard
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return &cached, nil
		}
		s.metrics.RecordCacheOperation(false)
	}

	bunkers, err := load(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute leaderboard")
	}
	if bunkers == nil {
		bunkers = []models.TopBunker{}
	}

	board := &models.SubjectLeaderboard{
		SubjectName: subjectName,
		Bunkers:     bunkers,
		GeneratedAt: time.Now().UTC(),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, board, s.ttl()); err != nil {
			s.logger.Warn("failed to cache leaderboard", zap.Error(err))
		}
	}

	return board, nil
}
