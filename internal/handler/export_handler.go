package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/canibunk/canibunk-api/pkg/errors"
	"github.com/canibunk/canibunk-api/pkg/response"
)

type exportService interface {
	HistoryCSV(ctx context.Context, ownerID string) ([]byte, string, error)
	SubjectsPDF(ctx context.Context, ownerID string) ([]byte, string, error)
}

// ExportHandler serves downloadable attendance exports.
type ExportHandler struct {
	service exportService
}

// NewExportHandler builds a new handler.
func NewExportHandler(svc exportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// HistoryCSV godoc
// @Summary Export bunk history
// @Description Download the caller's full event log as CSV
// @Tags Exports
// @Produce text/csv
// @Success 200 {file} file
// @Router /exports/history.csv [get]
func (h *ExportHandler) HistoryCSV(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	data, filename, err := h.service.HistoryCSV(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv", data)
}

// SubjectsPDF godoc
// @Summary Export attendance report
// @Description Download a PDF report across all tracked subjects
// @Tags Exports
// @Produce application/pdf
// @Success 200 {file} file
// @Router /exports/report.pdf [get]
func (h *ExportHandler) SubjectsPDF(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	data, filename, err := h.service.SubjectsPDF(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", data)
}
