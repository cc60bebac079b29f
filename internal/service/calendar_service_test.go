package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/canibunk/canibunk-api/internal/client"
	"github.com/canibunk/canibunk-api/internal/models"
	appErrors "github.com/canibunk/canibunk-api/pkg/errors"
)

type calendarTokenRepoStub struct {
	mu       sync.Mutex
	token    *models.GoogleToken
	findErr  error
	upserted []*models.GoogleToken
	deleted  []string
}

func (s *calendarTokenRepoStub) Upsert(ctx context.Context, token *models.GoogleToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserted = append(s.upserted, token)
	s.token = token
	return nil
}

func (s *calendarTokenRepoStub) FindByUser(ctx context.Context, userID string) (*models.GoogleToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.token == nil {
		return nil, sql.ErrNoRows
	}
	clone := *s.token
	return &clone, nil
}

func (s *calendarTokenRepoStub) DeleteByUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, userID)
	s.token = nil
	return nil
}

type calendarClientStub struct {
	mu        sync.Mutex
	authState string
	token     *oauth2.Token
	exchErr   error
	inserted  []client.CalendarEvent
	insertErr error
}

func (s *calendarClientStub) AuthURL(state string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authState = state
	return "https://accounts.google.com/o/oauth2/auth?state=" + state
}

func (s *calendarClientStub) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if s.exchErr != nil {
		return nil, s.exchErr
	}
	return s.token, nil
}

func (s *calendarClientStub) TokenSource(ctx context.Context, token *oauth2.Token) oauth2.TokenSource {
	return oauth2.StaticTokenSource(token)
}

func (s *calendarClientStub) InsertEvent(ctx context.Context, source oauth2.TokenSource, event client.CalendarEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, event)
	return nil
}

func (s *calendarClientStub) insertedEvents() []client.CalendarEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]client.CalendarEvent, len(s.inserted))
	copy(out, s.inserted)
	return out
}

func TestCalendarServiceAuthURLCarriesState(t *testing.T) {
	clientStub := &calendarClientStub{}
	svc := NewCalendarService(&calendarTokenRepoStub{}, clientStub, nil, nil, 1)

	url, err := svc.AuthURL("user-1")
	require.NoError(t, err)
	assert.Contains(t, url, "state=")

	state, err := decodeState(clientStub.authState)
	require.NoError(t, err)
	assert.Equal(t, "user-1", state.UserID)
	assert.NotEmpty(t, state.Nonce)
}

func TestCalendarServiceHandleCallbackStoresToken(t *testing.T) {
	repo := &calendarTokenRepoStub{}
	clientStub := &calendarClientStub{token: &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	}}
	svc := NewCalendarService(repo, clientStub, nil, nil, 1)

	state, err := encodeState(oauthState{UserID: "user-1", Nonce: "n"})
	require.NoError(t, err)

	userID, err := svc.HandleCallback(context.Background(), "code-123", state)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
	require.Len(t, repo.upserted, 1)
	assert.Equal(t, "access", repo.upserted[0].AccessToken)
	assert.Equal(t, "refresh", repo.upserted[0].RefreshToken)
}

func TestCalendarServiceHandleCallbackRejectsBadState(t *testing.T) {
	svc := NewCalendarService(&calendarTokenRepoStub{}, &calendarClientStub{}, nil, nil, 1)

	_, err := svc.HandleCallback(context.Background(), "code", "not-base64!")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCalendarServiceScheduleRequiresConnection(t *testing.T) {
	svc := NewCalendarService(&calendarTokenRepoStub{}, &calendarClientStub{}, nil, nil, 1)
	svc.Start(context.Background())
	defer svc.Stop()

	_, err := svc.ScheduleEvents(context.Background(), "user-1", models.CalendarEventRequest{
		Date:     "2026-09-01",
		Subjects: []string{"Physics"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotConnected.Code, appErrors.FromError(err).Code)
}

func TestCalendarServiceScheduleQueuesAndPushes(t *testing.T) {
	repo := &calendarTokenRepoStub{token: &models.GoogleToken{
		UserID:      "user-1",
		AccessToken: "access",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}}
	clientStub := &calendarClientStub{}
	svc := NewCalendarService(repo, clientStub, nil, nil, 1)
	svc.Start(context.Background())
	defer svc.Stop()

	queued, err := svc.ScheduleEvents(context.Background(), "user-1", models.CalendarEventRequest{
		Date:     "2026-09-01",
		Subjects: []string{"Physics", "Algorithms"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, queued)

	require.Eventually(t, func() bool {
		return len(clientStub.insertedEvents()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	events := clientStub.insertedEvents()
	assert.Equal(t, "2026-09-01", events[0].Date)
	assert.Contains(t, events[0].Summary, "Bunked")
}

func TestCalendarServiceScheduleInvalidDate(t *testing.T) {
	svc := NewCalendarService(&calendarTokenRepoStub{}, &calendarClientStub{}, nil, nil, 1)

	_, err := svc.ScheduleEvents(context.Background(), "user-1", models.CalendarEventRequest{
		Date:     "01-09-2026",
		Subjects: []string{"Physics"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCalendarServiceConnectedAndDisconnect(t *testing.T) {
	repo := &calendarTokenRepoStub{token: &models.GoogleToken{UserID: "user-1"}}
	svc := NewCalendarService(repo, &calendarClientStub{}, nil, nil, 1)

	connected, err := svc.Connected(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, connected)

	require.NoError(t, svc.Disconnect(context.Background(), "user-1"))

	connected, err = svc.Connected(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, connected)
}
