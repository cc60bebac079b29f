package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/canibunk/canibunk-api/internal/models"
	appErrors "github.com/canibunk/canibunk-api/pkg/errors"
	"github.com/canibunk/canibunk-api/pkg/response"
)

type calendarService interface {
	AuthURL(userID string) (string, error)
	HandleCallback(ctx context.Context, code, state string) (string, error)
	Connected(ctx context.Context, userID string) (bool, error)
	Disconnect(ctx context.Context, userID string) error
	ScheduleEvents(ctx context.Context, userID string, req models.CalendarEventRequest) (int, error)
}

// CalendarHandler exposes the Google Calendar connection and event scheduling.
type CalendarHandler struct {
	service calendarService
}

// NewCalendarHandler builds a new handler.
func NewCalendarHandler(svc calendarService) *CalendarHandler {
	return &CalendarHandler{service: svc}
}

// Connect godoc
// @Summary Start Google Calendar connection
// @Description Returns the Google consent URL for the caller
// @Tags Calendar
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /calendar/connect [get]
func (h *CalendarHandler) Connect(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	url, err := h.service.AuthURL(claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"auth_url": url}, nil)
}

// Callback godoc
// @Summary OAuth callback
// @Description Completes the Google consent flow and stores credentials
// @Tags Calendar
// @Produce json
// @Param code query string true "Authorization code"
// @Param state query string true "Opaque state"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /calendar/callback [get]
func (h *CalendarHandler) Callback(c *gin.Context) {
	userID, err := h.service.HandleCallback(c.Request.Context(), c.Query("code"), c.Query("state"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"connected": true, "user_id": userID}, nil)
}

// Status godoc
// @Summary Calendar connection status
// @Tags Calendar
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /calendar/status [get]
func (h *CalendarHandler) Status(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	connected, err := h.service.Connected(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"connected": connected}, nil)
}

// Disconnect godoc
// @Summary Disconnect Google Calendar
// @Tags Calendar
// @Success 204 {object} response.Envelope
// @Router /calendar/disconnect [delete]
func (h *CalendarHandler) Disconnect(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Disconnect(c.Request.Context(), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Schedule godoc
// @Summary Schedule bunk day entries
// @Description Queues calendar entries for the given date, one per subject
// @Tags Calendar
// @Accept json
// @Produce json
// @Param payload body models.CalendarEventRequest true "Event payload"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /calendar/events [post]
func (h *CalendarHandler) Schedule(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CalendarEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid calendar payload"))
		return
	}

	queued, err := h.service.ScheduleEvents(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"queued": queued}, nil)
}
