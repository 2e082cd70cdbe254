package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

// AddToolkitRequest feeds the insert-or-merge path. An existing toolkit name
// (any case) merges; an existing (size, color) under that toolkit merges
// additively instead of duplicating.
type AddToolkitRequest struct {
	Name          string           `json:"name"           validate:"required,min=1,max=120"`
	Type          string           `json:"type"           validate:"required"`
	Size          string           `json:"size"`
	Color         string           `json:"color"`
	StockCount    int              `json:"stock_count"    validate:"min=0"`
	MinStockLevel int              `json:"min_stock_level" validate:"omitempty,min=1"`
	UnitCost      *decimal.Decimal `json:"unit_cost"`
	Reason        string           `json:"reason"`
	UpdatedBy     string           `json:"updated_by"`
}

// UpdateToolkitRequest carries the partial fields of the update-toolkit path.
// Only the listed fields are mutable — unknown payload keys are discarded at
// bind time rather than merged dynamically.
type UpdateToolkitRequest struct {
	Name     *string                `json:"name" validate:"omitempty,min=1,max=120"`
	Type     *string                `json:"type" validate:"omitempty,min=1"`
	Variants []UpdateVariantRequest `json:"variants" validate:"omitempty,dive"`
}

// UpdateVariantRequest is the explicit allow-list of mutable variant fields.
type UpdateVariantRequest struct {
	ID            *string          `json:"id"    validate:"omitempty,uuid"`
	Size          *string          `json:"size"`
	Color         *string          `json:"color"`
	StockCount    *int             `json:"stock_count"     validate:"omitempty,min=0"`
	MinStockLevel *int             `json:"min_stock_level" validate:"omitempty,min=1"`
	InUse         *bool            `json:"inuse"`
	UnitCost      *decimal.Decimal `json:"unit_cost"`
	Reason        string           `json:"reason"`
	UpdatedBy     string           `json:"updated_by"`
}

// ReduceStockRequest debits a variant. Person names the handover recipient;
// it flows into the notification text but is not written to the ledger.
type ReduceStockRequest struct {
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
	Reason    string `json:"reason"`
	UpdatedBy string `json:"updated_by"`
	Person    string `json:"person"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type StockHistoryEntryResponse struct {
	ID            string `json:"id"`
	Action        string `json:"action"`
	PreviousStock int    `json:"previous_stock"`
	NewStock      int    `json:"new_stock"`
	ChangeAmount  int    `json:"change_amount"`
	Reason        string `json:"reason"`
	UpdatedBy     string `json:"updated_by"`
	Timestamp     string `json:"timestamp"`
}

type VariantResponse struct {
	ID              string                      `json:"id"`
	Size            string                      `json:"size"`
	Color           string                      `json:"color"`
	StockCount      int                         `json:"stock_count"`
	MinStockLevel   int                         `json:"min_stock_level"`
	Status          string                      `json:"status"`
	InUse           bool                        `json:"inuse"`
	UnitCost        *decimal.Decimal            `json:"unit_cost,omitempty"`
	FirstAddedDate  string                      `json:"first_added_date"`
	LastUpdatedDate string                      `json:"last_updated_date"`
	StockHistory    []StockHistoryEntryResponse `json:"stock_history,omitempty"`
}

type ToolkitResponse struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Type          string            `json:"type"`
	Variants      []VariantResponse `json:"variants"`
	TotalStock    int               `json:"total_stock"`
	OverallStatus string            `json:"overall_status"`
	CreatedAt     string            `json:"created_at"`
	UpdatedAt     string            `json:"updated_at"`
}

// VariantHistoryResponse groups one variant's ledger for the whole-toolkit
// history projection.
type VariantHistoryResponse struct {
	VariantID    string                      `json:"variant_id"`
	Size         string                      `json:"size"`
	Color        string                      `json:"color"`
	StockCount   int                         `json:"stock_count"`
	StockHistory []StockHistoryEntryResponse `json:"stock_history"`
}
