package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/erazemk/trgovina/internal/model"
)

// Sentinel errors for business refusals.
var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// StockChange reports a product's stock counter around a single change.
// Before and After are nil for products with unlimited stock.
type StockChange struct {
	ProductID string
	Before    *int
	After     *int
}

// DecrementStock removes qty units from a product's stock counter, but only
// if at least qty units are available. The check and the write are a single
// conditional UPDATE, so two concurrent callers can never both take the last
// unit. Products with unlimited stock are left untouched.
func DecrementStock(ctx context.Context, q sqlx.ExtContext, productID string, qty int, at time.Time) (StockChange, error) {
	change := StockChange{ProductID: productID}
	if qty <= 0 {
		return change, fmt.Errorf("quantity must be positive")
	}

	var after int
	err := q.QueryRowxContext(ctx,
		`UPDATE products
		 SET stock_quantity = stock_quantity - ?,
		     in_stock = CASE WHEN stock_quantity - ? > 0 THEN 1 ELSE 0 END,
		     updated_at = ?
		 WHERE id = ? AND deleted_at IS NULL
		   AND stock_quantity IS NOT NULL AND stock_quantity >= ?
		 RETURNING stock_quantity`,
		qty, qty, at, productID, qty,
	).Scan(&after)
	if err == nil {
		before := after + qty
		change.Before, change.After = &before, &after
		return change, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return change, fmt.Errorf("decrementing stock: %w", err)
	}

	// The condition failed: tell apart unlimited, missing and short products.
	var current sql.NullInt64
	err = sqlx.GetContext(ctx, q, &current,
		`SELECT stock_quantity FROM products WHERE id = ? AND deleted_at IS NULL`, productID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return change, ErrNotFound
	}
	if err != nil {
		return change, fmt.Errorf("checking stock: %w", err)
	}
	if !current.Valid {
		return change, nil
	}
	return change, fmt.Errorf("%w: have %d, need %d", ErrInsufficientStock, current.Int64, qty)
}

// IncrementStock adds qty units to a product's stock counter. A product with
// unlimited stock starts being tracked from zero.
func IncrementStock(ctx context.Context, q sqlx.ExtContext, productID string, qty int, at time.Time) (StockChange, error) {
	change := StockChange{ProductID: productID}
	if qty <= 0 {
		return change, fmt.Errorf("quantity must be positive")
	}

	var after int
	err := q.QueryRowxContext(ctx,
		`UPDATE products
		 SET stock_quantity = COALESCE(stock_quantity, 0) + ?, in_stock = 1, updated_at = ?
		 WHERE id = ? AND deleted_at IS NULL
		 RETURNING stock_quantity`,
		qty, at, productID,
	).Scan(&after)
	if errors.Is(err, sql.ErrNoRows) {
		return change, ErrNotFound
	}
	if err != nil {
		return change, fmt.Errorf("incrementing stock: %w", err)
	}

	before := after - qty
	change.Before, change.After = &before, &after
	return change, nil
}

// InsertMovement appends a ledger entry. The ID is generated when empty.
func InsertMovement(ctx context.Context, q sqlx.ExtContext, m *model.StockMovement) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	_, err := q.ExecContext(ctx,
		`INSERT INTO stock_movements (id, product_id, quantity_change, quantity_before, quantity_after,
		                              type, reason, reference_id, created_at, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ProductID, m.QuantityChange, m.QuantityBefore, m.QuantityAfter,
		m.Type, m.Reason, m.ReferenceID, m.CreatedAt.UTC(), m.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("recording stock movement: %w", err)
	}
	return nil
}

// MovementInput describes a manual stock change.
type MovementInput struct {
	ProductID string
	Change    int
	Type      string
	Reason    string
	At        time.Time
	Actor     *int64
}

// ApplyMovement changes a product's stock and appends the matching ledger
// entry in one transaction. Negative changes never take stock below zero.
func ApplyMovement(ctx context.Context, db *sqlx.DB, in MovementInput) (*model.StockMovement, error) {
	if in.Change == 0 {
		return nil, fmt.Errorf("change must be non-zero")
	}

	at := in.At
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var change StockChange
	if in.Change > 0 {
		change, err = IncrementStock(ctx, tx, in.ProductID, in.Change, time.Now().UTC())
	} else {
		change, err = DecrementStock(ctx, tx, in.ProductID, -in.Change, time.Now().UTC())
		if err == nil && change.After == nil {
			err = fmt.Errorf("%w: product has unlimited stock", ErrInsufficientStock)
		}
	}
	if err != nil {
		return nil, err
	}

	m := &model.StockMovement{
		ProductID:      in.ProductID,
		QuantityChange: in.Change,
		QuantityBefore: change.Before,
		QuantityAfter:  change.After,
		Type:           in.Type,
		Reason:         in.Reason,
		CreatedAt:      at,
		CreatedBy:      in.Actor,
	}
	if err := InsertMovement(ctx, tx, m); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing stock movement: %w", err)
	}
	return m, nil
}

// MovementFilter narrows ListMovements.
type MovementFilter struct {
	ProductID string
	Type      string
	Since     time.Time
	Limit     int
}

// ListMovements returns ledger entries, newest first.
func ListMovements(ctx context.Context, db *sqlx.DB, f MovementFilter) ([]model.StockMovement, error) {
	query := `SELECT m.id, m.product_id, m.quantity_change, m.quantity_before, m.quantity_after,
	                 m.type, m.reason, m.reference_id, m.created_at, m.created_by,
	                 p.name AS product_name
	          FROM stock_movements m
	          JOIN products p ON p.id = m.product_id
	          WHERE 1=1`
	var args []any

	if f.ProductID != "" {
		query += ` AND m.product_id = ?`
		args = append(args, f.ProductID)
	}
	if f.Type != "" {
		query += ` AND m.type = ?`
		args = append(args, f.Type)
	}
	if !f.Since.IsZero() {
		query += ` AND m.created_at >= ?`
		args = append(args, f.Since.UTC())
	}

	query += ` ORDER BY m.created_at DESC, m.rowid DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	var movements []model.StockMovement
	if err := db.SelectContext(ctx, &movements, query, args...); err != nil {
		return nil, fmt.Errorf("listing stock movements: %w", err)
	}
	return movements, nil
}

// LedgerBalances returns the sum of ledger changes per product, counting
// only entries written while the product's stock was tracked.
func LedgerBalances(ctx context.Context, db *sqlx.DB) (map[string]int, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT product_id, SUM(quantity_change) FROM stock_movements
		 WHERE quantity_after IS NOT NULL
		 GROUP BY product_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("summing ledger: %w", err)
	}
	defer rows.Close()

	balances := map[string]int{}
	for rows.Next() {
		var id string
		var sum int
		if err := rows.Scan(&id, &sum); err != nil {
			return nil, fmt.Errorf("scanning ledger sum: %w", err)
		}
		balances[id] = sum
	}
	return balances, rows.Err()
}
