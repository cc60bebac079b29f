package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/canibunk/canibunk-api/internal/client"
	"github.com/canibunk/canibunk-api/internal/models"
	appErrors "github.com/canibunk/canibunk-api/pkg/errors"
	"github.com/canibunk/canibunk-api/pkg/jobs"
)

const calendarJobType = "calendar.push_event"

type calendarTokenRepository interface {
	Upsert(ctx context.Context, token *models.GoogleToken) error
	FindByUser(ctx context.Context, userID string) (*models.GoogleToken, error)
	DeleteByUser(ctx context.Context, userID string) error
}

type calendarClient interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	TokenSource(ctx context.Context, token *oauth2.Token) oauth2.TokenSource
	InsertEvent(ctx context.Context, source oauth2.TokenSource, event client.CalendarEvent) error
}

// oauthState round-trips the caller's identity through the consent redirect.
type oauthState struct {
	UserID string `json:"user_id"`
	Nonce  string `json:"nonce"`
}

type calendarJobPayload struct {
	UserID  string
	Date    string
	Subject string
}

// CalendarService connects user accounts to Google Calendar and pushes bunk
// day entries through a background queue.
type CalendarService struct {
	tokens    calendarTokenRepository
	client    calendarClient
	queue     *jobs.Queue
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCalendarService creates the service and its push queue. Call Start before
// scheduling events and Stop on shutdown.
func NewCalendarService(tokens calendarTokenRepository, calClient calendarClient, validate *validator.Validate, logger *zap.Logger, workers int) *CalendarService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &CalendarService{
		tokens:    tokens,
		client:    calClient,
		validator: validate,
		logger:    logger,
	}
	s.queue = jobs.NewQueue("calendar", s.handlePushJob, jobs.QueueConfig{
		Workers:    workers,
		MaxRetries: 3,
		RetryDelay: 5 * time.Second,
		Logger:     logger,
	})
	return s
}

// Start launches the push workers.
func (s *CalendarService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the push workers.
func (s *CalendarService) Stop() {
	s.queue.Stop()
}

// AuthURL returns the Google consent URL for the given user.
func (s *CalendarService) AuthURL(userID string) (string, error) {
	state, err := encodeState(oauthState{UserID: userID, Nonce: uuid.NewString()})
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build oauth state")
	}
	return s.client.AuthURL(state), nil
}

// HandleCallback exchanges the consent code and stores the user's credentials.
func (s *CalendarService) HandleCallback(ctx context.Context, code, state string) (string, error) {
	if code == "" || state == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "code and state are required")
	}

	decoded, err := decodeState(state)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrValidation, "invalid oauth state")
	}

	token, err := s.client.Exchange(ctx, code)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "failed to exchange oauth code")
	}

	stored := &models.GoogleToken{
		UserID:       decoded.UserID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Expiry:       token.Expiry,
		Scope:        strings.Join(calendarTokenScopes(token), " "),
	}
	if err := s.tokens.Upsert(ctx, stored); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store credentials")
	}

	return decoded.UserID, nil
}

// Connected reports whether the user has calendar credentials on file.
func (s *CalendarService) Connected(ctx context.Context, userID string) (bool, error) {
	_, err := s.tokens.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check credentials")
	}
	return true, nil
}

// Disconnect removes the user's stored credentials.
func (s *CalendarService) Disconnect(ctx context.Context, userID string) error {
	if err := s.tokens.DeleteByUser(ctx, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to disconnect calendar")
	}
	return nil
}

// ScheduleEvents queues one calendar entry per subject for the given date. The
// HTTP call returns immediately; pushes happen in the background with retries.
func (s *CalendarService) ScheduleEvents(ctx context.Context, userID string, req models.CalendarEventRequest) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid calendar payload")
	}

	connected, err := s.Connected(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !connected {
		return 0, appErrors.Clone(appErrors.ErrNotConnected, "google calendar is not connected")
	}

	queued := 0
	for _, subject := range req.Subjects {
		name := strings.TrimSpace(subject)
		if name == "" {
			continue
		}
		job := jobs.Job{
			ID:   uuid.NewString(),
			Type: calendarJobType,
			Payload: calendarJobPayload{
				UserID:  userID,
				Date:    req.Date,
				Subject: name,
			},
		}
		if err := s.queue.Enqueue(job); err != nil {
			return queued, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue calendar event")
		}
		queued++
	}

	return queued, nil
}

func (s *CalendarService) handlePushJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(calendarJobPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type for %s", job.Type)
	}

	stored, err := s.tokens.FindByUser(ctx, payload.UserID)
	if err != nil {
		return fmt.Errorf("load credentials for %s: %w", payload.UserID, err)
	}

	source := s.client.TokenSource(ctx, &oauth2.Token{
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
		TokenType:    stored.TokenType,
		Expiry:       stored.Expiry,
	})

	event := client.CalendarEvent{
		Summary:     fmt.Sprintf("Bunked: %s", payload.Subject),
		Description: "Planned bunk day logged by Can-I-Bunk.",
		Date:        payload.Date,
	}
	if err := s.client.InsertEvent(ctx, source, event); err != nil {
		return fmt.Errorf("insert event for %s: %w", payload.UserID, err)
	}

	// Refreshed access tokens should survive restarts.
	if refreshed, err := source.Token(); err == nil && refreshed.AccessToken != stored.AccessToken {
		stored.AccessToken = refreshed.AccessToken
		stored.Expiry = refreshed.Expiry
		if err := s.tokens.Upsert(ctx, stored); err != nil {
			s.logger.Warn("failed to persist refreshed google token", zap.Error(err))
		}
	}

	s.logger.Info("calendar event pushed",
		zap.String("user_id", payload.UserID),
		zap.String("subject", payload.Subject),
		zap.String("date", payload.Date),
	)
	return nil
}

func encodeState(state oauthState) (string, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func decodeState(encoded string) (oauthState, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return oauthState{}, err
	}
	var state oauthState
	if err := json.Unmarshal(raw, &state); err != nil {
		return oauthState{}, err
	}
	if state.UserID == "" {
		return oauthState{}, errors.New("state missing user id")
	}
	return state, nil
}

func calendarTokenScopes(token *oauth2.Token) []string {
	if extra, ok := token.Extra("scope").(string); ok && extra != "" {
		return strings.Fields(extra)
	}
	return nil
}
