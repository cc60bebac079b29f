package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/canibunk/canibunk-api/internal/models"
	appErrors "github.com/canibunk/canibunk-api/pkg/errors"
	"github.com/canibunk/canibunk-api/pkg/response"
)

type leaderboardService interface {
	Overall(ctx context.Context) (*models.SubjectLeaderboard, error)
	BySubject(ctx context.Context, subjectName string) (*models.SubjectLeaderboard, error)
}

// LeaderboardHandler serves the top-bunkers rankings.
type LeaderboardHandler struct {
	service leaderboardService
}

// NewLeaderboardHandler builds a new handler.
func NewLeaderboardHandler(svc leaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{service: svc}
}

// Overall godoc
// @Summary Top bunkers overall
// @Description Top bunkers across all subjects, recomputed from the event log
// @Tags Leaderboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /leaderboard [get]
func (h *LeaderboardHandler) Overall(c *gin.Context) {
	board, err := h.service.Overall(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, board, nil)
}

// BySubject godoc
// @Summary Top bunkers for a subject
// @Description Top bunkers across all users sharing a subject name
// @Tags Leaderboard
// @Produce json
// @Param subject query string true "Subject name"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /leaderboard/subject [get]
func (h *LeaderboardHandler) BySubject(c *gin.Context) {
	name := c.Query("subject")
	if name == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "subject query parameter is required"))
		return
	}

	board, err := h.service.BySubject(c.Request.Context(), name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, board, nil)
}
