package model

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// StockAction classifies why a variant's stock count changed.
type StockAction string

const (
	ActionInitial StockAction = "initial" // first stocking of a new variant
	ActionAdded   StockAction = "added"   // count raised by an update
	ActionUpdated StockAction = "updated" // additive merge of a duplicate insert
	ActionReduced StockAction = "reduced" // count lowered (debit or update)
)

// SystemActor is recorded when no explicit actor is supplied.
const SystemActor = "System"

// StockHistoryEntry is one immutable line in a variant's stock ledger.
// Entries are only ever appended — never edited or deleted — and disappear
// only when the owning variant (or its toolkit) is deleted outright.
type StockHistoryEntry struct {
	ID            uuid.UUID   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	VariantID     uuid.UUID   `gorm:"type:uuid;not null;index" json:"variant_id"`
	Action        StockAction `gorm:"not null" json:"action"`
	PreviousStock int         `gorm:"not null" json:"previous_stock"`
	NewStock      int         `gorm:"not null" json:"new_stock"`
	ChangeAmount  int         `gorm:"not null" json:"change_amount"` // NewStock - PreviousStock, signed
	Reason        string      `json:"reason"`
	UpdatedBy     string      `gorm:"not null;default:'System'" json:"updated_by"`
	CreatedAt     time.Time   `json:"timestamp"`
}

// TableName overrides GORM's default pluralization (stock_history_entries → stock_history).
func (StockHistoryEntry) TableName() string { return "stock_history" }

func newHistoryEntry(variantID uuid.UUID, action StockAction, previous, next int, reason, updatedBy string) StockHistoryEntry {
	if updatedBy == "" {
		updatedBy = SystemActor
	}
	return StockHistoryEntry{
		VariantID:     variantID,
		Action:        action,
		PreviousStock: previous,
		NewStock:      next,
		ChangeAmount:  next - previous,
		Reason:        reason,
		UpdatedBy:     updatedBy,
		CreatedAt:     time.Now(),
	}
}

// SortedHistory returns a copy of entries ordered newest-timestamp-first.
// Storage order is append order; descending order is a contract of the read
// API only. Entries sharing a timestamp keep reverse append order, so the
// most recently appended entry always comes first.
func SortedHistory(entries []StockHistoryEntry) []StockHistoryEntry {
	out := make([]StockHistoryEntry, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
