package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/trgovina/internal/db"
	"github.com/erazemk/trgovina/internal/model"
	"github.com/erazemk/trgovina/internal/store"
)

func TestMonthlyTotals(t *testing.T) {
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	movements := []model.StockMovement{
		{QuantityChange: 10, CreatedAt: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)},
		{QuantityChange: -3, CreatedAt: time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)},
		{QuantityChange: -2, CreatedAt: time.Date(2026, 3, 31, 23, 59, 0, 0, time.UTC)},
		{QuantityChange: 99, CreatedAt: time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)},
	}

	got := monthlyTotals(movements, first, 3)

	assert.Equal(t, []MonthTotals{
		{Month: "2026-01", In: 10, Out: 3},
		{Month: "2026-02"},
		{Month: "2026-03", Out: 2},
	}, got)
}

func TestDashboard(t *testing.T) {
	database := db.NewTestDB(t)
	r := NewReconciler(database)
	now := time.Date(2026, 5, 15, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	ctx := context.Background()

	low := seedProduct(t, database, "Low", intPtr(1))
	low.LowStockThreshold = 3
	require.NoError(t, store.UpdateProduct(ctx, database, low))
	seedProduct(t, database, "Plenty", intPtr(100))

	_, err := r.StockIn(ctx, Adjustment{ProductID: low.ID, Quantity: 1, Reason: "found", At: time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	_, err = r.StockOut(ctx, Adjustment{ProductID: low.ID, Quantity: 1, Reason: "lost", At: time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)

	d, err := r.Dashboard(ctx, 2)
	require.NoError(t, err)

	require.Len(t, d.Months, 2)
	assert.Equal(t, MonthTotals{Month: "2026-04", In: 1}, d.Months[0])
	assert.Equal(t, "2026-05", d.Months[1].Month)
	assert.Equal(t, 1, d.Months[1].Out)

	require.Len(t, d.LowStock, 1)
	assert.Equal(t, "Low", d.LowStock[0].Name)
	assert.Equal(t, 2, d.Products.Total)
	assert.Equal(t, 0, d.PendingOrders)
}

func TestAudit_ReportsDrift(t *testing.T) {
	database := db.NewTestDB(t)
	r := NewReconciler(database)
	ctx := context.Background()

	steady := seedProduct(t, database, "Steady", intPtr(5))
	drifted := seedProduct(t, database, "Drifted", intPtr(5))
	seedProduct(t, database, "Unlimited", nil)

	_, err := r.StockOut(ctx, Adjustment{ProductID: steady.ID, Quantity: 2, Reason: "breakage"})
	require.NoError(t, err)

	// A sale whose ledger entry was never written.
	_, err = store.DecrementStock(ctx, database, drifted.ID, 1, time.Now().UTC())
	require.NoError(t, err)

	drift, err := r.Audit(ctx)
	require.NoError(t, err)
	require.Len(t, drift, 1)
	assert.Equal(t, Drift{ProductID: drifted.ID, Name: "Drifted", Stock: 4, Ledger: 5}, drift[0])
}
