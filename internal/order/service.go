// Package order turns untrusted cart submissions into stored orders.
package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/erazemk/trgovina/internal/catalog"
	"github.com/erazemk/trgovina/internal/inventory"
	"github.com/erazemk/trgovina/internal/model"
	"github.com/erazemk/trgovina/internal/store"
)

// Notifier is told about every committed order. It must not block.
type Notifier interface {
	NotifyOrder(o model.Order)
}

// Receipt is returned for an accepted order.
type Receipt struct {
	OrderID string
	Total   decimal.Decimal

	// Ledger reports the sale entries written after commit. Failures here do
	// not affect the order.
	Ledger []inventory.LineOutcome
}

// Service runs the intake pipeline.
type Service struct {
	DB       *sqlx.DB
	Catalog  *catalog.Reader
	Stock    *inventory.Reconciler
	Notifier Notifier
	MaxLines int
}

// NewService wires a Service from its collaborators. notifier may be nil.
func NewService(db *sqlx.DB, stock *inventory.Reconciler, notifier Notifier, maxLines int) *Service {
	return &Service{
		DB:       db,
		Catalog:  &catalog.Reader{DB: db},
		Stock:    stock,
		Notifier: notifier,
		MaxLines: maxLines,
	}
}

// Place validates, reprices and stores an order, then records its ledger
// entries and notifies operators. It returns either a receipt with the
// server-computed total or one of *InputError, *RejectedError,
// ErrNothingToOrder, *inventory.ConflictError, catalog.ErrUnavailable or an
// error wrapping ErrPersistence.
func (s *Service) Place(ctx context.Context, req *Request) (*Receipt, error) {
	customer, err := Sanitize(req, s.MaxLines)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(req.Products))
	for i, line := range req.Products {
		ids[i] = line.ID
	}
	snap, err := s.Catalog.Snapshot(ctx, ids)
	if err != nil {
		return nil, err
	}

	priced := Reprice(req.Products, snap)
	if len(priced.Rejections) > 0 {
		return nil, &RejectedError{Reasons: priced.Rejections}
	}
	if len(priced.Items) == 0 {
		return nil, ErrNothingToOrder
	}

	if req.TotalAmount != nil && !req.TotalAmount.Equal(priced.Total) {
		slog.Warn("client total differs from server total",
			"client_total", req.TotalAmount.String(), "server_total", priced.Total.String())
	}

	o := &model.Order{
		CustomerName: customer.Name,
		Phone:        customer.Phone,
		Address:      customer.Address,
		Notes:        customer.Notes,
		Items:        priced.Items,
		TotalAmount:  priced.Total,
	}

	changes, err := s.write(ctx, o)
	if err != nil {
		return nil, err
	}

	// The order is committed; nothing below may fail the request.
	post := context.WithoutCancel(ctx)
	outcomes := s.Stock.Record(post, o, changes)

	if s.Notifier != nil {
		s.Notifier.NotifyOrder(*o)
	}

	slog.Info("order placed", "order", o.ID, "total", o.TotalAmount.String(), "lines", len(o.Items))

	return &Receipt{OrderID: o.ID, Total: o.TotalAmount, Ledger: outcomes}, nil
}

// write inserts the order and reserves its stock in one transaction.
func (s *Service) write(ctx context.Context, o *model.Order) ([]store.StockChange, error) {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	defer tx.Rollback()

	if err := store.InsertOrder(ctx, tx, o); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	changes, err := s.Stock.Reserve(ctx, tx, o.Items)
	if err != nil {
		var conflict *inventory.ConflictError
		if errors.As(err, &conflict) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return changes, nil
}
