package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canibunk/canibunk-api/internal/models"
	"github.com/canibunk/canibunk-api/pkg/config"
	appErrors "github.com/canibunk/canibunk-api/pkg/errors"
)

type leaderboardRepoStub struct {
	overall      []models.TopBunker
	bySubject    []models.TopBunker
	err          error
	overallCalls int
	subjectCalls int
	lastSubject  string
	lastLimit    int
}

func (s *leaderboardRepoStub) TopBunkers(ctx context.Context, limit int) ([]models.TopBunker, error) {
	s.overallCalls++
	s.lastLimit = limit
	return s.overall, s.err
}

func (s *leaderboardRepoStub) TopBunkersBySubjectName(ctx context.Context, subjectName string, limit int) ([]models.TopBunker, error) {
	s.subjectCalls++
	s.lastSubject = subjectName
	s.lastLimit = limit
	return s.bySubject, s.err
}

type boardCacheStub struct {
	entries map[string][]byte
	sets    map[string]time.Duration
}

func newBoardCacheStub() *boardCacheStub {
	return &boardCacheStub{entries: map[string][]byte{}, sets: map[string]time.Duration{}}
}

func (s *boardCacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := s.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (s *boardCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.entries[key] = raw
	s.sets[key] = ttl
	return nil
}

func TestLeaderboardServiceOverallCachesResult(t *testing.T) {
	repo := &leaderboardRepoStub{overall: []models.TopBunker{{OwnerID: "user-1", FullName: "Asha", TotalBunks: 12}}}
	cache := newBoardCacheStub()
	svc := NewLeaderboardService(repo, cache, nil, config.LeaderboardConfig{Size: 5, CacheTTL: time.Minute}, nil)

	board, err := svc.Overall(context.Background())
	require.NoError(t, err)
	require.Len(t, board.Bunkers, 1)
	assert.Equal(t, "Asha", board.Bunkers[0].FullName)
	assert.Equal(t, 5, repo.lastLimit)
	assert.Equal(t, time.Minute, cache.sets["leaderboard:overall"])

	// Second call is served from cache.
	_, err = svc.Overall(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, repo.overallCalls)
}

func TestLeaderboardServiceBySubject(t *testing.T) {
	repo := &leaderboardRepoStub{bySubject: []models.TopBunker{{OwnerID: "user-2", TotalBunks: 9}}}
	svc := NewLeaderboardService(repo, nil, nil, config.LeaderboardConfig{}, nil)

	board, err := svc.BySubject(context.Background(), "  Physics  ")
	require.NoError(t, err)
	assert.Equal(t, "Physics", board.SubjectName)
	assert.Equal(t, "Physics", repo.lastSubject)
	assert.Equal(t, 5, repo.lastLimit)
}

func TestLeaderboardServiceBySubjectRequiresName(t *testing.T) {
	svc := NewLeaderboardService(&leaderboardRepoStub{}, nil, nil, config.LeaderboardConfig{}, nil)

	_, err := svc.BySubject(context.Background(), "   ")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLeaderboardServiceEmptyBoard(t *testing.T) {
	svc := NewLeaderboardService(&leaderboardRepoStub{}, nil, nil, config.LeaderboardConfig{}, nil)

	board, err := svc.Overall(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, board.Bunkers)
	assert.Empty(t, board.Bunkers)
}

func TestLeaderboardServiceRepoError(t *testing.T) {
	svc := NewLeaderboardService(&leaderboardRepoStub{err: errors.New("boom")}, nil, nil, config.LeaderboardConfig{}, nil)

	_, err := svc.Overall(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestLeaderboardServiceCountsCacheHitsAndMisses(t *testing.T) {
	repo := &leaderboardRepoStub{overall: []models.TopBunker{{OwnerID: "user-1", TotalBunks: 3}}}
	cache := newBoardCacheStub()
	metrics := NewMetricsService()
	svc := NewLeaderboardService(repo, cache, metrics, config.LeaderboardConfig{}, nil)

	_, err := svc.Overall(context.Background())
	require.NoError(t, err)
	_, err = svc.Overall(context.Background())
	require.NoError(t, err)

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.CacheMisses)
	assert.Equal(t, uint64(1), snap.CacheHits)
	assert.InDelta(t, 0.5, snap.CacheHitRatio, 0.001)
}
