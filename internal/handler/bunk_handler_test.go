package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canibunk/canibunk-api/internal/models"
	appErrors "github.com/canibunk/canibunk-api/pkg/errors"
)

type bunkServiceMock struct {
	subject    *models.Subject
	event      *models.BunkEvent
	recordErr  error
	events     []models.BunkEvent
	historyErr error
	lastKind   models.BunkKind
	lastFilter models.BunkFilter
}

func (m *bunkServiceMock) Record(ctx context.Context, subjectID, ownerID string, kind models.BunkKind) (*models.Subject, *models.BunkEvent, error) {
	m.lastKind = kind
	return m.subject, m.event, m.recordErr
}

func (m *bunkServiceMock) History(ctx context.Context, ownerID string, filter models.BunkFilter) ([]models.BunkEvent, *models.Pagination, error) {
	m.lastFilter = filter
	return m.events, &models.Pagination{Page: 1, PageSize: 100, TotalCount: len(m.events)}, m.historyErr
}

type metricsRecorderMock struct {
	kinds []string
}

func (m *metricsRecorderMock) RecordEvent(kind string) {
	m.kinds = append(m.kinds, kind)
}

func TestBunkHandlerBunk(t *testing.T) {
	mockSvc := &bunkServiceMock{
		subject: &models.Subject{ID: "sub-1", TotalBunks: 5},
		event:   &models.BunkEvent{ID: "ev-1", Kind: models.BunkKindBunk},
	}
	metrics := &metricsRecorderMock{}
	handler := NewBunkHandler(mockSvc, metrics)

	c, w := authedContext(t, http.MethodPost, "/subjects/sub-1/bunk", nil)
	c.Params = gin.Params{{Key: "id", Value: "sub-1"}}
	handler.Bunk(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.BunkKindBunk, mockSvc.lastKind)
	assert.Equal(t, []string{"bunk"}, metrics.kinds)
}

func TestBunkHandlerAttend(t *testing.T) {
	mockSvc := &bunkServiceMock{
		subject: &models.Subject{ID: "sub-1"},
		event:   &models.BunkEvent{ID: "ev-1", Kind: models.BunkKindAttended},
	}
	handler := NewBunkHandler(mockSvc, nil)

	c, w := authedContext(t, http.MethodPost, "/subjects/sub-1/attend", nil)
	c.Params = gin.Params{{Key: "id", Value: "sub-1"}}
	handler.Attend(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.BunkKindAttended, mockSvc.lastKind)
}

func TestBunkHandlerRecordConflict(t *testing.T) {
	mockSvc := &bunkServiceMock{recordErr: appErrors.ErrConflict}
	handler := NewBunkHandler(mockSvc, nil)

	c, w := authedContext(t, http.MethodPost, "/subjects/sub-1/bunk", nil)
	c.Params = gin.Params{{Key: "id", Value: "sub-1"}}
	handler.Bunk(c)

	require.Equal(t, http.StatusConflict, w.Code)
}

func TestBunkHandlerHistoryFilters(t *testing.T) {
	mockSvc := &bunkServiceMock{events: []models.BunkEvent{{ID: "ev-1"}}}
	handler := NewBunkHandler(mockSvc, nil)

	c, w := authedContext(t, http.MethodGet, "/bunks/history?subjectId=sub-1&kind=bunk", nil)
	handler.History(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sub-1", mockSvc.lastFilter.SubjectID)
	assert.Equal(t, models.BunkKindBunk, mockSvc.lastFilter.Kind)
}
