package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/erazemk/trgovina/internal/model"
	"github.com/erazemk/trgovina/internal/store"
)

// MonthTotals sums ledger movements in one calendar month (UTC).
type MonthTotals struct {
	Month string `json:"month"` // YYYY-MM
	In    int    `json:"in"`
	Out   int    `json:"out"`
}

// Dashboard is the back-office inventory overview.
type Dashboard struct {
	Months         []MonthTotals       `json:"months"`
	LowStock       []model.Product     `json:"low_stock"`
	Products       store.ProductCounts `json:"products"`
	PendingOrders  int                 `json:"pending_orders"`
	OrdersByStatus map[string]int      `json:"orders_by_status"`
}

// Dashboard builds the overview for the last months calendar months,
// including the current one.
func (r *Reconciler) Dashboard(ctx context.Context, months int) (*Dashboard, error) {
	if months <= 0 {
		months = 6
	}

	now := r.now().UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)

	movements, err := store.ListMovements(ctx, r.DB, store.MovementFilter{Since: first})
	if err != nil {
		return nil, err
	}

	d := &Dashboard{Months: monthlyTotals(movements, first, months)}

	if d.LowStock, err = store.ListLowStockProducts(ctx, r.DB); err != nil {
		return nil, err
	}
	if d.Products, err = store.CountProducts(ctx, r.DB); err != nil {
		return nil, err
	}
	if d.OrdersByStatus, err = store.CountOrdersByStatus(ctx, r.DB); err != nil {
		return nil, err
	}
	d.PendingOrders = d.OrdersByStatus[model.OrderStatusPending]

	return d, nil
}

// monthlyTotals buckets movements into months starting at first. In is the
// sum of positive changes and Out the sum of negative ones as a positive
// number. Months without movements are present with zeros.
func monthlyTotals(movements []model.StockMovement, first time.Time, months int) []MonthTotals {
	totals := make([]MonthTotals, months)
	index := make(map[string]int, months)
	for i := range totals {
		key := first.AddDate(0, i, 0).Format("2006-01")
		totals[i].Month = key
		index[key] = i
	}

	for _, m := range movements {
		i, ok := index[m.CreatedAt.UTC().Format("2006-01")]
		if !ok {
			continue
		}
		if m.QuantityChange > 0 {
			totals[i].In += m.QuantityChange
		} else {
			totals[i].Out -= m.QuantityChange
		}
	}

	return totals
}

// Drift is a tracked product whose ledger does not add up to its stock.
type Drift struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Stock     int    `json:"stock_quantity"`
	Ledger    int    `json:"ledger_balance"`
}

// Audit compares every tracked product's stock with the sum of its ledger and
// returns the products that disagree. Drift appears when a sale entry failed
// to be written after its order was committed.
func (r *Reconciler) Audit(ctx context.Context) ([]Drift, error) {
	products, err := store.ListProducts(ctx, r.DB, false)
	if err != nil {
		return nil, err
	}
	balances, err := store.LedgerBalances(ctx, r.DB)
	if err != nil {
		return nil, fmt.Errorf("auditing ledger: %w", err)
	}

	drift := []Drift{}
	for _, p := range products {
		if !p.Tracked() {
			continue
		}
		if bal := balances[p.ID]; bal != *p.StockQuantity {
			drift = append(drift, Drift{ProductID: p.ID, Name: p.Name, Stock: *p.StockQuantity, Ledger: bal})
		}
	}
	return drift, nil
}
