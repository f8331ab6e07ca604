package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/erazemk/trgovina/internal/catalog"
	"github.com/erazemk/trgovina/internal/model"
)

func intPtr(n int) *int { return &n }

func product(id, name string, price int64, stock *int) model.Product {
	return model.Product{
		ID:            id,
		Name:          name,
		Price:         decimal.NewFromInt(price),
		IsActive:      true,
		InStock:       stock == nil || *stock > 0,
		StockQuantity: stock,
	}
}

func TestReprice_IgnoresClientPrice(t *testing.T) {
	snap := catalog.Snapshot{"P1": product("P1", "Olive oil", 15000, intPtr(10))}
	lines := []model.CartLine{{ID: "P1", Name: "Cheap oil", Price: decimal.NewFromInt(999), Quantity: 2}}

	got := Reprice(lines, snap)

	require.Empty(t, got.Rejections)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Olive oil", got.Items[0].Name)
	assert.True(t, got.Items[0].UnitPrice.Equal(decimal.NewFromInt(15000)))
	assert.True(t, got.Total.Equal(decimal.NewFromInt(30000)), "total was %s", got.Total)
}

func TestReprice_CollectsAllRejectionsInOrder(t *testing.T) {
	inactive := product("P3", "Old stock", 5, nil)
	inactive.IsActive = false
	flagged := product("P4", "Flagged", 5, nil)
	flagged.InStock = false

	snap := catalog.Snapshot{
		"P1": product("P1", "Good", 10, nil),
		"P2": product("P2", "Scarce", 10, intPtr(2)),
		"P3": inactive,
		"P4": flagged,
	}
	lines := []model.CartLine{
		{ID: "P1", Quantity: 1},
		{ID: "missing", Quantity: 1},
		{ID: "P2", Quantity: 5},
		{ID: "P3", Quantity: 1},
		{ID: "P4", Quantity: 1},
		{ID: "P1", Quantity: 0},
		{ID: "P1", Quantity: -3},
	}

	got := Reprice(lines, snap)

	require.Len(t, got.Rejections, 6)
	assert.Contains(t, got.Rejections[0], "not found")
	assert.Contains(t, got.Rejections[1], "insufficient stock for Scarce")
	assert.Contains(t, got.Rejections[2], "inactive")
	assert.Contains(t, got.Rejections[3], "insufficient stock for Flagged")
	assert.Contains(t, got.Rejections[4], "invalid quantity")
	assert.Contains(t, got.Rejections[5], "invalid quantity")
	assert.Len(t, got.Items, 1, "valid lines are still evaluated")
}

func TestReprice_InactiveBeatsStock(t *testing.T) {
	p := product("P1", "Both", 1, intPtr(0))
	p.IsActive = false

	got := Reprice([]model.CartLine{{ID: "P1", Quantity: 4}}, catalog.Snapshot{"P1": p})

	require.Len(t, got.Rejections, 1)
	assert.Contains(t, got.Rejections[0], "inactive")
}

func TestReprice_EmptyCart(t *testing.T) {
	got := Reprice(nil, catalog.Snapshot{})
	assert.Empty(t, got.Items)
	assert.Empty(t, got.Rejections)
	assert.True(t, got.Total.IsZero())
}

// The total depends only on catalog prices and accepted quantities.
func TestReprice_TotalIsSumOfSnapshotPrices(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 10).Draw(t, "products")
		snap := catalog.Snapshot{}
		ids := make([]string, n)
		for i := range n {
			id := string(rune('A' + i))
			ids[i] = id
			cents := rapid.Int64Range(1, 1_000_000).Draw(t, "cents")
			snap[id] = model.Product{
				ID: id, Name: id, Price: decimal.New(cents, -2), IsActive: true, InStock: true,
			}
		}

		lines := rapid.SliceOfN(rapid.Custom(func(t *rapid.T) model.CartLine {
			return model.CartLine{
				ID:       rapid.SampledFrom(ids).Draw(t, "id"),
				Price:    decimal.NewFromInt(rapid.Int64Range(-1000, 1000).Draw(t, "clientPrice")),
				Quantity: rapid.IntRange(1, 100).Draw(t, "qty"),
			}
		}), 1, 20).Draw(t, "lines")

		got := Reprice(lines, snap)
		if len(got.Rejections) != 0 {
			t.Fatalf("unexpected rejections: %v", got.Rejections)
		}

		want := decimal.Zero
		for _, l := range lines {
			want = want.Add(snap[l.ID].Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
		}
		if !got.Total.Equal(want) {
			t.Fatalf("total %s, want %s", got.Total, want)
		}
		if len(got.Items) != len(lines) {
			t.Fatalf("expected %d items, got %d", len(lines), len(got.Items))
		}
	})
}
