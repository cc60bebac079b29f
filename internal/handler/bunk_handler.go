package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/canibunk/canibunk-api/internal/models"
	appErrors "github.com/canibunk/canibunk-api/pkg/errors"
	"github.com/canibunk/canibunk-api/pkg/response"
)

type bunkService interface {
	Record(ctx context.Context, subjectID, ownerID string, kind models.BunkKind) (*models.Subject, *models.BunkEvent, error)
	History(ctx context.Context, ownerID string, filter models.BunkFilter) ([]models.BunkEvent, *models.Pagination, error)
}

type eventRecorder interface {
	RecordEvent(kind string)
}

// BunkHandler exposes bunk and attend recording plus the history log.
type BunkHandler struct {
	service bunkService
	metrics eventRecorder
}

// NewBunkHandler builds a new handler. Metrics may be nil.
func NewBunkHandler(svc bunkService, metrics eventRecorder) *BunkHandler {
	return &BunkHandler{service: svc, metrics: metrics}
}

type recordEventResponse struct {
	Subject *models.Subject   `json:"subject"`
	Event   *models.BunkEvent `json:"event"`
}

// Bunk godoc
// @Summary Record a bunked class
// @Description Record one missed class for a subject
// @Tags Bunks
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /subjects/{id}/bunk [post]
func (h *BunkHandler) Bunk(c *gin.Context) {
	h.record(c, models.BunkKindBunk)
}

// Attend godoc
// @Summary Record an attended class
// @Description Record one attended class for a subject
// @Tags Bunks
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /subjects/{id}/attend [post]
func (h *BunkHandler) Attend(c *gin.Context) {
	h.record(c, models.BunkKindAttended)
}

func (h *BunkHandler) record(c *gin.Context, kind models.BunkKind) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	subject, event, err := h.service.Record(c.Request.Context(), c.Param("id"), claims.UserID, kind)
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordEvent(string(kind))
	}

	response.JSON(c, http.StatusOK, recordEventResponse{Subject: subject, Event: event}, nil)
}

// History godoc
// @Summary List bunk history
// @Description List the caller's recorded events, newest first
// @Tags Bunks
// @Produce json
// @Param subjectId query string false "Subject ID filter"
// @Param kind query string false "bunk or attended"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /bunks/history [get]
func (h *BunkHandler) History(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.BunkFilter{
		SubjectID: c.Query("subjectId"),
		Kind:      models.BunkKind(c.Query("kind")),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "pageSize", 100),
	}

	events, pagination, err := h.service.History(c.Request.Context(), claims.UserID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, pagination)
}
