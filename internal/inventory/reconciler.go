// Package inventory keeps product stock and its ledger in step: stock
// reservations for orders, sale entries, manual movements, history and the
// back-office dashboard.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/trgovina/internal/model"
	"github.com/erazemk/trgovina/internal/store"
)

// ConflictError lists lines whose stock ran out between validation and the
// write. The order was not created.
type ConflictError struct {
	Reasons []string
}

func (e *ConflictError) Error() string {
	return "stock conflict: " + strings.Join(e.Reasons, "; ")
}

// LineOutcome reports whether the ledger entry for one order line was written.
type LineOutcome struct {
	ProductID string
	Movement  *model.StockMovement
	Err       error
}

// Reconciler applies stock changes and appends ledger entries.
type Reconciler struct {
	DB *sqlx.DB

	now    func() time.Time
	insert func(ctx context.Context, q sqlx.ExtContext, m *model.StockMovement) error
}

// NewReconciler creates a Reconciler for db.
func NewReconciler(db *sqlx.DB) *Reconciler {
	return &Reconciler{DB: db, now: time.Now, insert: store.InsertMovement}
}

// Reserve takes each item's quantity off its product inside tx. Every line is
// tried; if any cannot be covered, a *ConflictError naming all of them is
// returned and the caller must roll back.
func (r *Reconciler) Reserve(ctx context.Context, tx sqlx.ExtContext, items []model.LineItem) ([]store.StockChange, error) {
	at := r.now().UTC()
	changes := make([]store.StockChange, len(items))
	var conflicts []string

	for i, item := range items {
		change, err := store.DecrementStock(ctx, tx, item.ProductID, item.Quantity, at)
		switch {
		case err == nil:
			changes[i] = change
		case errors.Is(err, store.ErrInsufficientStock):
			conflicts = append(conflicts, fmt.Sprintf("insufficient stock for %s (requested %d)", item.Name, item.Quantity))
		case errors.Is(err, store.ErrNotFound):
			conflicts = append(conflicts, fmt.Sprintf("%s is no longer available", item.Name))
		default:
			return nil, fmt.Errorf("reserving %s: %w", item.ProductID, err)
		}
	}

	if len(conflicts) > 0 {
		return nil, &ConflictError{Reasons: conflicts}
	}
	return changes, nil
}

// Record appends one sale entry per order line. Lines are independent: a
// failed entry is logged and reported in its outcome, and the rest are still
// written. changes must be the result of Reserve for the same order.
func (r *Reconciler) Record(ctx context.Context, o *model.Order, changes []store.StockChange) []LineOutcome {
	outcomes := make([]LineOutcome, len(o.Items))
	ref := o.ID

	for i, item := range o.Items {
		m := &model.StockMovement{
			ProductID:      item.ProductID,
			QuantityChange: -item.Quantity,
			Type:           model.MovementSale,
			Reason:         "order " + shortID(o.ID),
			ReferenceID:    &ref,
			CreatedAt:      o.CreatedAt,
		}
		if i < len(changes) {
			m.QuantityBefore, m.QuantityAfter = changes[i].Before, changes[i].After
		}

		outcomes[i] = LineOutcome{ProductID: item.ProductID}
		if err := r.insert(ctx, r.DB, m); err != nil {
			slog.Error("writing sale ledger entry", "order", o.ID, "product", item.ProductID, "quantity", item.Quantity, "error", err)
			outcomes[i].Err = err
			continue
		}
		outcomes[i].Movement = m
	}

	return outcomes
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
