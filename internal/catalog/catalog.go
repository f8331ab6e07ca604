// Package catalog reads authoritative product state for order intake.
package catalog

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/trgovina/internal/model"
	"github.com/erazemk/trgovina/internal/store"
)

// ErrUnavailable is returned when the catalog cannot be read. Callers abort
// the request without partial reconciliation.
var ErrUnavailable = errors.New("catalog unavailable")

// Snapshot maps product id to the product's state at read time. Unknown ids
// are absent.
type Snapshot map[string]model.Product

// Reader fetches catalog snapshots.
type Reader struct {
	DB *sqlx.DB
}

// Snapshot returns the current state of every product in ids using a single
// batched read. Duplicate ids are collapsed.
func (r *Reader) Snapshot(ctx context.Context, ids []string) (Snapshot, error) {
	seen := make(map[string]struct{}, len(ids))
	distinct := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		distinct = append(distinct, id)
	}

	products, err := store.GetProductsByIDs(ctx, r.DB, distinct)
	if err != nil {
		slog.Error("catalog snapshot failed", "ids", len(distinct), "error", err)
		return nil, ErrUnavailable
	}

	snap := make(Snapshot, len(products))
	for _, p := range products {
		snap[p.ID] = p
	}
	return snap, nil
}
