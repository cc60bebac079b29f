package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/canibunk/canibunk-api/internal/service"
	appErrors "github.com/canibunk/canibunk-api/pkg/errors"
	"github.com/canibunk/canibunk-api/pkg/response"
)

type advisoryService interface {
	Advise(ctx context.Context, subjectID, ownerID string) (*service.Advisory, error)
}

// AdvisoryHandler answers the can-I-bunk question for a subject.
type AdvisoryHandler struct {
	service advisoryService
}

// NewAdvisoryHandler builds a new handler.
func NewAdvisoryHandler(svc advisoryService) *AdvisoryHandler {
	return &AdvisoryHandler{service: svc}
}

// Advise godoc
// @Summary Can I bunk this subject
// @Description Returns the bunk recommendation with weather-aware phrasing
// @Tags Advisory
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /subjects/{id}/advisory [get]
func (h *AdvisoryHandler) Advise(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	advisory, err := h.service.Advise(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, advisory, nil)
}
