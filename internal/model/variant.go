package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockStatus is derived from stock counts — never stored as source of truth.
type StockStatus string

const (
	StatusAvailable StockStatus = "available"
	StatusLow       StockStatus = "low"
	StatusOut       StockStatus = "out"
)

// DefaultMinStockLevel is the low-stock threshold applied when a caller
// omits one (or supplies a non-positive value).
const DefaultMinStockLevel = 5

// DeriveStatus is the single canonical status function. Every write path
// recomputes status through it; no handler carries its own variant of the rule.
func DeriveStatus(stockCount, minStockLevel int) StockStatus {
	switch {
	case stockCount <= 0:
		return StatusOut
	case stockCount < minStockLevel:
		return StatusLow
	default:
		return StatusAvailable
	}
}

// Variant is one size/color combination of a toolkit, carrying its own stock
// count and append-only ledger. Identity within a toolkit is the
// case-insensitive (size, color) pair; the UUID exists for addressing.
type Variant struct {
	ID            uuid.UUID   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ToolkitID     uuid.UUID   `gorm:"type:uuid;not null;index" json:"toolkit_id"`
	Size          string      `json:"size"`  // free text, may be "N/A"
	Color         string      `json:"color"` // free text, may be "N/A"
	StockCount    int         `gorm:"not null;default:0" json:"stock_count"`
	MinStockLevel int         `gorm:"not null;default:5" json:"min_stock_level"`
	Status        StockStatus `gorm:"not null;default:'available'" json:"status"`
	// InUse is an operational flag (checked out to a field team) — it is
	// independent of the stock math and never derived.
	InUse bool `gorm:"column:inuse;not null;default:false" json:"inuse"`
	// UnitCost is the optional acquisition cost per unit, reported in the
	// inventory export. It does not participate in status derivation.
	UnitCost        *decimal.Decimal    `gorm:"type:decimal(10,2)" json:"unit_cost,omitempty"`
	FirstAddedDate  time.Time           `json:"first_added_date"` // set once, immutable
	LastUpdatedDate time.Time           `json:"last_updated_date"`
	History         []StockHistoryEntry `gorm:"foreignKey:VariantID" json:"stock_history,omitempty"`
}

// MatchesKey reports whether size and color match this variant's natural key,
// case-insensitively.
func (v *Variant) MatchesKey(size, color string) bool {
	return strings.EqualFold(v.Size, size) && strings.EqualFold(v.Color, color)
}

// ApplyStock sets a new absolute stock count, appending exactly one ledger
// entry whose action is chosen by the sign of the delta. A no-op when the
// count is unchanged.
func (v *Variant) ApplyStock(newCount int, reason, updatedBy string) {
	if newCount == v.StockCount {
		return
	}
	action := ActionAdded
	if newCount < v.StockCount {
		action = ActionReduced
	}
	v.History = append(v.History, newHistoryEntry(v.ID, action, v.StockCount, newCount, reason, updatedBy))
	v.StockCount = newCount
	v.LastUpdatedDate = time.Now()
}

// MergeStock adds quantity on top of the current count — the additive
// merge-on-insert path. The ledger records it as an "updated" entry.
func (v *Variant) MergeStock(quantity int, reason, updatedBy string) {
	next := v.StockCount + quantity
	v.History = append(v.History, newHistoryEntry(v.ID, ActionUpdated, v.StockCount, next, reason, updatedBy))
	v.StockCount = next
	v.LastUpdatedDate = time.Now()
}

// ReduceStock debits quantity, appending a "reduced" entry. Callers must have
// already validated quantity <= StockCount.
func (v *Variant) ReduceStock(quantity int, reason, updatedBy string) {
	next := v.StockCount - quantity
	v.History = append(v.History, newHistoryEntry(v.ID, ActionReduced, v.StockCount, next, reason, updatedBy))
	v.StockCount = next
	v.LastUpdatedDate = time.Now()
}
