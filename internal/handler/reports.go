package handler

import (
	"net/http"
	"path/filepath"

	"fieldops/internal/apierror"
	"fieldops/internal/service"

	"github.com/gin-gonic/gin"
)

type ReportsHandler struct{ svc service.ToolkitService }

func NewReportsHandler(svc service.ToolkitService) *ReportsHandler {
	return &ReportsHandler{svc: svc}
}

// ExportReport godoc
// @Summary      Export the inventory as PDF
// @Description  Renders a snapshot of every toolkit and variant, with per-toolkit and grand totals, and streams the PDF back.
// @Tags         reports
// @Produce      application/pdf
// @Success      200 {file} file
// @Failure      500 {object} dto.Envelope
// @Router       /v1/toolkits/export-report [get]
func (h *ReportsHandler) ExportReport(c *gin.Context) {
	path, err := h.svc.ExportReport(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to generate report", apierror.New(err.Error()))
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}
