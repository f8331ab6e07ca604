package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/trgovina/internal/model"
	"github.com/erazemk/trgovina/internal/store"
)

// ErrInvalidAdjustment is returned for malformed manual movements.
var ErrInvalidAdjustment = errors.New("invalid stock adjustment")

// maxClockSkew is how far into the future a backdated timestamp may point.
const maxClockSkew = time.Minute

// Adjustment is a manual stock movement entered in the back office.
type Adjustment struct {
	ProductID string
	Quantity  int
	Reason    string
	At        time.Time // zero means now
	Actor     *int64
}

// StockIn adds stock. A product with unlimited stock starts being tracked.
func (r *Reconciler) StockIn(ctx context.Context, a Adjustment) (*model.StockMovement, error) {
	return r.adjust(ctx, a, model.MovementStockIn, a.Quantity)
}

// StockOut removes stock. It never takes a product below zero.
func (r *Reconciler) StockOut(ctx context.Context, a Adjustment) (*model.StockMovement, error) {
	return r.adjust(ctx, a, model.MovementStockOut, -a.Quantity)
}

func (r *Reconciler) adjust(ctx context.Context, a Adjustment, typ string, change int) (*model.StockMovement, error) {
	reason := strings.TrimSpace(a.Reason)
	if a.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidAdjustment)
	}
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrInvalidAdjustment)
	}
	if !a.At.IsZero() && a.At.After(r.now().Add(maxClockSkew)) {
		return nil, fmt.Errorf("%w: date is in the future", ErrInvalidAdjustment)
	}

	return store.ApplyMovement(ctx, r.DB, store.MovementInput{
		ProductID: a.ProductID,
		Change:    change,
		Type:      typ,
		Reason:    reason,
		At:        a.At,
		Actor:     a.Actor,
	})
}

// History returns a product's ledger, newest first, optionally of one type.
func (r *Reconciler) History(ctx context.Context, productID, typ string, limit int) ([]model.StockMovement, error) {
	return store.ListMovements(ctx, r.DB, store.MovementFilter{
		ProductID: productID,
		Type:      typ,
		Limit:     limit,
	})
}
