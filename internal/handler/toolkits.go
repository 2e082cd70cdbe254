package handler

import (
	"net/http"
	"strings"

	"fieldops/internal/apierror"
	"fieldops/internal/dto"
	"fieldops/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ToolkitsHandler struct{ svc service.ToolkitService }

func NewToolkitsHandler(svc service.ToolkitService) *ToolkitsHandler {
	return &ToolkitsHandler{svc: svc}
}

// AddToolkit godoc
// @Summary      Register a toolkit or merge stock into one
// @Description  Creates the toolkit when the name is new (case-insensitive). If it exists, appends the variant or additively merges stock into the matching size/color variant.
// @Tags         toolkits
// @Accept       json
// @Produce      json
// @Param        request body dto.AddToolkitRequest true "Toolkit payload"
// @Success      200 {object} dto.Envelope "merged into existing toolkit"
// @Success      201 {object} dto.Envelope "new toolkit created"
// @Failure      400 {object} dto.Envelope
// @Router       /v1/toolkits/add-toolkit [post]
func (h *ToolkitsHandler) AddToolkit(c *gin.Context) {
	var req dto.AddToolkitRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, created, err := h.svc.InsertOrMerge(c.Request.Context(), req)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if created {
		respondOK(c, http.StatusCreated, "toolkit created", resp)
		return
	}
	respondOK(c, http.StatusOK, "stock merged into existing toolkit", resp)
}

func (h *ToolkitsHandler) GetToolkits(c *gin.Context) {
	resp, err := h.svc.GetAll(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to list toolkits", apierror.New(err.Error()))
		return
	}
	respondOK(c, http.StatusOK, "toolkits retrieved", resp)
}

func (h *ToolkitsHandler) UpdateToolkit(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid toolkit id", apierror.New("invalid toolkit id"))
		return
	}
	var req dto.UpdateToolkitRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.UpdateToolkit(c.Request.Context(), id, req)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "toolkit updated", resp)
}

func (h *ToolkitsHandler) DeleteToolkit(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid toolkit id", apierror.New("invalid toolkit id"))
		return
	}
	if err := h.svc.DeleteToolkit(c.Request.Context(), id); err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "toolkit deleted", nil)
}

func (h *ToolkitsHandler) UpdateVariant(c *gin.Context) {
	toolkitID, variantID, ok := parseVariantPath(c)
	if !ok {
		return
	}
	var req dto.UpdateVariantRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.UpdateVariant(c.Request.Context(), toolkitID, variantID, req)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "variant updated", resp)
}

// DeleteVariant removes a single variant. Removing the last variant deletes
// the whole toolkit, so callers should not rely on the parent surviving.
func (h *ToolkitsHandler) DeleteVariant(c *gin.Context) {
	toolkitID, variantID, ok := parseVariantPath(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteVariant(c.Request.Context(), toolkitID, variantID); err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "variant deleted", nil)
}

// ReduceStock godoc
// @Summary      Debit stock from a variant
// @Description  Subtracts quantity from the variant's stock. Rejects the debit without mutating anything when quantity exceeds the available stock.
// @Tags         toolkits
// @Accept       json
// @Produce      json
// @Param        toolkitId path string true "Toolkit UUID"
// @Param        variantId path string true "Variant UUID"
// @Param        request body dto.ReduceStockRequest true "Debit payload"
// @Success      200 {object} dto.Envelope
// @Failure      400 {object} dto.Envelope "insufficient stock or invalid quantity"
// @Failure      404 {object} dto.Envelope
// @Router       /v1/toolkits/reduce-stock/{toolkitId}/{variantId} [put]
func (h *ToolkitsHandler) ReduceStock(c *gin.Context) {
	toolkitID, variantID, ok := parseVariantPath(c)
	if !ok {
		return
	}
	var req dto.ReduceStockRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.ReduceStock(c.Request.Context(), toolkitID, variantID, req)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "stock reduced", resp)
}

func (h *ToolkitsHandler) Search(c *gin.Context) {
	term := strings.TrimSpace(c.Query("q"))
	if term == "" {
		respondError(c, http.StatusBadRequest, "missing search term", apierror.New("query parameter 'q' is required"))
		return
	}
	resp, err := h.svc.Search(c.Request.Context(), term)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "search failed", apierror.New(err.Error()))
		return
	}
	respondOK(c, http.StatusOK, "search results", resp)
}

func parseVariantPath(c *gin.Context) (toolkitID, variantID uuid.UUID, ok bool) {
	toolkitID, err := uuid.Parse(c.Param("toolkitId"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid toolkit id", apierror.New("invalid toolkit id"))
		return uuid.Nil, uuid.Nil, false
	}
	variantID, err = uuid.Parse(c.Param("variantId"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid variant id", apierror.New("invalid variant id"))
		return uuid.Nil, uuid.Nil, false
	}
	return toolkitID, variantID, true
}
