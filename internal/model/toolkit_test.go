package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		name     string
		stock    int
		minLevel int
		want     StockStatus
	}{
		{"zero is out", 0, 5, StatusOut},
		{"negative is out", -2, 5, StatusOut},
		{"below threshold is low", 3, 5, StatusLow},
		{"one unit is low", 1, 5, StatusLow},
		{"at threshold is available", 5, 5, StatusAvailable},
		{"above threshold is available", 50, 5, StatusAvailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveStatus(tc.stock, tc.minLevel))
		})
	}
}

func TestAddVariantWritesInitialEntry(t *testing.T) {
	tk := NewToolkit("Safety Helmet", "PPE")
	v := tk.AddVariant("L", "Yellow", 12, 4, "first delivery", "alice")

	require.Len(t, v.History, 1)
	e := v.History[0]
	assert.Equal(t, ActionInitial, e.Action)
	assert.Equal(t, 0, e.PreviousStock)
	assert.Equal(t, 12, e.NewStock)
	assert.Equal(t, 12, e.ChangeAmount)
	assert.Equal(t, "alice", e.UpdatedBy)
	assert.Equal(t, 4, v.MinStockLevel)
}

func TestAddVariantDefaultsMinStockLevel(t *testing.T) {
	tk := NewToolkit("Cable Crimper", "Hand Tool")
	v := tk.AddVariant("", "", 10, 0, "", "")

	assert.Equal(t, DefaultMinStockLevel, v.MinStockLevel)
	assert.Equal(t, SystemActor, v.History[0].UpdatedBy)
}

func TestMatchesKeyIsCaseInsensitive(t *testing.T) {
	v := Variant{Size: "XL", Color: "Navy Blue"}
	assert.True(t, v.MatchesKey("xl", "navy blue"))
	assert.True(t, v.MatchesKey("Xl", "NAVY BLUE"))
	assert.False(t, v.MatchesKey("XL", "Navy"))
}

func TestApplyStockActionFollowsSign(t *testing.T) {
	v := Variant{ID: uuid.New(), StockCount: 10}

	v.ApplyStock(15, "restock", "bob")
	require.Len(t, v.History, 1)
	assert.Equal(t, ActionAdded, v.History[0].Action)
	assert.Equal(t, 5, v.History[0].ChangeAmount)

	v.ApplyStock(7, "damaged units", "bob")
	require.Len(t, v.History, 2)
	assert.Equal(t, ActionReduced, v.History[1].Action)
	assert.Equal(t, -8, v.History[1].ChangeAmount)
	assert.Equal(t, 7, v.StockCount)
}

func TestApplyStockNoOpWhenUnchanged(t *testing.T) {
	v := Variant{ID: uuid.New(), StockCount: 10}
	v.ApplyStock(10, "same", "bob")
	assert.Empty(t, v.History)
	assert.Equal(t, 10, v.StockCount)
}

func TestMergeStockIsAdditive(t *testing.T) {
	v := Variant{ID: uuid.New(), StockCount: 8}
	v.MergeStock(3, "duplicate delivery", "carol")

	assert.Equal(t, 11, v.StockCount)
	require.Len(t, v.History, 1)
	assert.Equal(t, ActionUpdated, v.History[0].Action)
	assert.Equal(t, 8, v.History[0].PreviousStock)
	assert.Equal(t, 11, v.History[0].NewStock)
}

func TestRecomputeOverallStatus(t *testing.T) {
	t.Run("total zero is out", func(t *testing.T) {
		tk := NewToolkit("Fiber Splice Kit", "Field Kit")
		tk.AddVariant("A", "", 0, 5, "", "")
		tk.AddVariant("B", "", 0, 5, "", "")
		tk.Recompute()
		assert.Equal(t, 0, tk.TotalStock)
		assert.Equal(t, StatusOut, tk.OverallStatus)
	})

	t.Run("any low variant makes the toolkit low", func(t *testing.T) {
		tk := NewToolkit("Fiber Splice Kit", "Field Kit")
		tk.AddVariant("A", "", 100, 5, "", "")
		tk.AddVariant("B", "", 2, 5, "", "")
		tk.Recompute()
		assert.Equal(t, 102, tk.TotalStock)
		assert.Equal(t, StatusLow, tk.OverallStatus)
	})

	t.Run("out variant alone does not make the toolkit low", func(t *testing.T) {
		// An exhausted variant counts through the total, not the low rule.
		tk := NewToolkit("Fiber Splice Kit", "Field Kit")
		tk.AddVariant("A", "", 100, 5, "", "")
		tk.AddVariant("B", "", 0, 5, "", "")
		tk.Recompute()
		assert.Equal(t, StatusOut, tk.Variants[1].Status)
		assert.Equal(t, StatusAvailable, tk.OverallStatus)
	})

	t.Run("all healthy is available", func(t *testing.T) {
		tk := NewToolkit("Fiber Splice Kit", "Field Kit")
		tk.AddVariant("A", "", 10, 5, "", "")
		tk.Recompute()
		assert.Equal(t, StatusAvailable, tk.OverallStatus)
	})
}

func TestFindVariantByKey(t *testing.T) {
	tk := NewToolkit("Safety Helmet", "PPE")
	tk.AddVariant("M", "White", 5, 2, "", "")

	assert.NotNil(t, tk.FindVariantByKey("m", "WHITE"))
	assert.Nil(t, tk.FindVariantByKey("M", "Red"))
}

func TestRemoveVariant(t *testing.T) {
	tk := NewToolkit("Safety Helmet", "PPE")
	removeID := tk.AddVariant("M", "White", 5, 2, "", "").ID
	keepID := tk.AddVariant("L", "Yellow", 8, 2, "", "").ID

	assert.True(t, tk.RemoveVariant(removeID))
	assert.False(t, tk.RemoveVariant(uuid.New()))
	require.Len(t, tk.Variants, 1)
	assert.Equal(t, keepID, tk.Variants[0].ID)
}

func TestSortedHistoryNewestFirst(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []StockHistoryEntry{
		{Action: ActionInitial, CreatedAt: base},
		{Action: ActionUpdated, CreatedAt: base.Add(time.Minute)},
		{Action: ActionReduced, CreatedAt: base.Add(2 * time.Minute)},
	}

	sorted := SortedHistory(entries)
	require.Len(t, sorted, 3)
	assert.Equal(t, ActionReduced, sorted[0].Action)
	assert.Equal(t, ActionUpdated, sorted[1].Action)
	assert.Equal(t, ActionInitial, sorted[2].Action)

	// Input slice is untouched
	assert.Equal(t, ActionInitial, entries[0].Action)
}

func TestSortedHistoryTiesKeepLatestAppendFirst(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []StockHistoryEntry{
		{Reason: "first", CreatedAt: ts},
		{Reason: "second", CreatedAt: ts},
		{Reason: "third", CreatedAt: ts},
	}

	sorted := SortedHistory(entries)
	assert.Equal(t, "third", sorted[0].Reason)
	assert.Equal(t, "second", sorted[1].Reason)
	assert.Equal(t, "first", sorted[2].Reason)
}
