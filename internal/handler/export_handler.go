package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ilmhub/qa-api/internal/service"
	"github.com/ilmhub/qa-api/pkg/response"
)

// ExportHandler serves the answered-question archive downloads.
type ExportHandler struct {
	service *service.ExportService
}

// NewExportHandler creates a new handler.
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// AnsweredArchive godoc
// @Summary Export answered questions
// @Description Download the answered-question archive as CSV or PDF
// @Tags Exports
// @Produce octet-stream
// @Param format query string false "csv or pdf" default(csv)
// @Param category_id query string false "Category filter"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /exports/answered [get]
func (h *ExportHandler) AnsweredArchive(c *gin.Context) {
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))

	result, err := h.service.AnsweredArchive(c.Request.Context(), claimsFromContext(c), c.Query("category_id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+result.FileName+`"`)
	c.Data(200, result.ContentType, result.Data)
}
