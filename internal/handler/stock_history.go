package handler

import (
	"net/http"

	"fieldops/internal/apierror"
	"fieldops/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// StockHistoryHandler serves the append-only stock ledger, newest first.
type StockHistoryHandler struct{ svc service.ToolkitService }

func NewStockHistoryHandler(svc service.ToolkitService) *StockHistoryHandler {
	return &StockHistoryHandler{svc: svc}
}

// VariantHistory godoc
// @Summary      Stock history for one variant
// @Description  Returns the immutable stock-change ledger of a variant, ordered by date descending.
// @Tags         stock-history
// @Param        toolkitId path string true "Toolkit UUID"
// @Param        variantId path string true "Variant UUID"
// @Success      200 {object} dto.Envelope
// @Failure      404 {object} dto.Envelope
// @Router       /v1/toolkits/stock-history/{toolkitId}/{variantId} [get]
func (h *StockHistoryHandler) VariantHistory(c *gin.Context) {
	toolkitID, err := uuid.Parse(c.Param("toolkitId"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid toolkit id", apierror.New("invalid toolkit id"))
		return
	}
	variantID, err := uuid.Parse(c.Param("variantId"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid variant id", apierror.New("invalid variant id"))
		return
	}
	entries, err := h.svc.GetStockHistory(c.Request.Context(), toolkitID, variantID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "stock history retrieved", entries)
}

// ToolkitHistory returns the ledger of every variant under a toolkit,
// grouped per variant, each group newest first.
func (h *StockHistoryHandler) ToolkitHistory(c *gin.Context) {
	toolkitID, err := uuid.Parse(c.Param("toolkitId"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid toolkit id", apierror.New("invalid toolkit id"))
		return
	}
	groups, err := h.svc.GetToolkitStockHistory(c.Request.Context(), toolkitID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "toolkit stock history retrieved", groups)
}
