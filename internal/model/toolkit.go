package model

import (
	"time"

	"github.com/google/uuid"
)

// Toolkit is the root aggregate: a named equipment type with one or more
// variants. TotalStock and OverallStatus are derived on every save; Variants
// keep insertion order (no reordering on update).
type Toolkit struct {
	ID            uuid.UUID   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name          string      `gorm:"not null;index" json:"name"` // case-insensitively unique (lower(name) index)
	Type          string      `gorm:"not null" json:"type"`
	Variants      []Variant   `gorm:"foreignKey:ToolkitID" json:"variants"`
	TotalStock    int         `gorm:"not null;default:0" json:"total_stock"`
	OverallStatus StockStatus `gorm:"not null;default:'out'" json:"overall_status"`
	// Version backs the optimistic-concurrency check on save. Callers never
	// set it; the repository bumps it on every successful write.
	Version   int       `gorm:"not null;default:0" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewToolkit creates an empty toolkit with an assigned id.
func NewToolkit(name, typ string) *Toolkit {
	return &Toolkit{ID: uuid.New(), Name: name, Type: typ}
}

// FindVariantByKey returns the variant matching the case-insensitive
// (size, color) pair, or nil.
func (t *Toolkit) FindVariantByKey(size, color string) *Variant {
	for i := range t.Variants {
		if t.Variants[i].MatchesKey(size, color) {
			return &t.Variants[i]
		}
	}
	return nil
}

// FindVariantByID returns the variant with the given id, or nil.
func (t *Toolkit) FindVariantByID(id uuid.UUID) *Variant {
	for i := range t.Variants {
		if t.Variants[i].ID == id {
			return &t.Variants[i]
		}
	}
	return nil
}

// AddVariant appends a brand-new variant with an "initial" ledger entry
// (previous stock 0). minStockLevel falls back to the default when
// non-positive.
func (t *Toolkit) AddVariant(size, color string, stockCount, minStockLevel int, reason, updatedBy string) *Variant {
	if minStockLevel <= 0 {
		minStockLevel = DefaultMinStockLevel
	}
	now := time.Now()
	v := Variant{
		ID:              uuid.New(),
		ToolkitID:       t.ID,
		Size:            size,
		Color:           color,
		StockCount:      stockCount,
		MinStockLevel:   minStockLevel,
		FirstAddedDate:  now,
		LastUpdatedDate: now,
	}
	v.History = append(v.History, newHistoryEntry(v.ID, ActionInitial, 0, stockCount, reason, updatedBy))
	t.Variants = append(t.Variants, v)
	return &t.Variants[len(t.Variants)-1]
}

// RemoveVariant deletes the variant with the given id from the aggregate.
// Returns false when no such variant exists.
func (t *Toolkit) RemoveVariant(id uuid.UUID) bool {
	for i := range t.Variants {
		if t.Variants[i].ID == id {
			t.Variants = append(t.Variants[:i], t.Variants[i+1:]...)
			return true
		}
	}
	return false
}

// Recompute re-derives every variant status, the stock total, and the overall
// status. It runs before every save so the stored derived fields can never
// drift from the variant counts.
//
// Overall rule: out when the total is zero or negative; low when any variant
// status is low; available otherwise.
func (t *Toolkit) Recompute() {
	total := 0
	anyLow := false
	for i := range t.Variants {
		v := &t.Variants[i]
		v.Status = DeriveStatus(v.StockCount, v.MinStockLevel)
		total += v.StockCount
		if v.Status == StatusLow {
			anyLow = true
		}
	}
	t.TotalStock = total
	switch {
	case total <= 0:
		t.OverallStatus = StatusOut
	case anyLow:
		t.OverallStatus = StatusLow
	default:
		t.OverallStatus = StatusAvailable
	}
}
