package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/erazemk/trgovina/internal/model"
)

// ErrInvalidTransition is returned when an order status change is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// orderRow is the stored shape of an order; line items are kept as JSON.
type orderRow struct {
	ID           string          `db:"id"`
	CustomerName string          `db:"customer_name"`
	Phone        string          `db:"phone"`
	Address      string          `db:"address"`
	Notes        string          `db:"notes"`
	Items        string          `db:"items"`
	TotalAmount  decimal.Decimal `db:"total_amount"`
	Status       string          `db:"status"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

const orderColumns = `id, customer_name, phone, address, notes, items, total_amount, status, created_at, updated_at`

func (r *orderRow) toModel() (*model.Order, error) {
	o := &model.Order{
		ID:           r.ID,
		CustomerName: r.CustomerName,
		Phone:        r.Phone,
		Address:      r.Address,
		Notes:        r.Notes,
		TotalAmount:  r.TotalAmount,
		Status:       r.Status,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(r.Items), &o.Items); err != nil {
		return nil, fmt.Errorf("decoding order %s items: %w", r.ID, err)
	}
	return o, nil
}

// InsertOrder writes a new order row. The ID, status and timestamps are
// filled in when empty.
func InsertOrder(ctx context.Context, q sqlx.ExtContext, o *model.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = model.OrderStatusPending
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	o.UpdatedAt = o.CreatedAt

	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("encoding order items: %w", err)
	}

	_, err = q.ExecContext(ctx,
		`INSERT INTO orders (`+orderColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.CustomerName, o.Phone, o.Address, o.Notes, string(items), o.TotalAmount,
		o.Status, o.CreatedAt.UTC(), o.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating order: %w", err)
	}
	return nil
}

// GetOrder returns an order by ID.
func GetOrder(ctx context.Context, db *sqlx.DB, id string) (*model.Order, error) {
	var row orderRow
	err := db.GetContext(ctx, &row, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting order: %w", err)
	}
	return row.toModel()
}

// ListOrders returns orders, newest first, optionally filtered by status.
func ListOrders(ctx context.Context, db *sqlx.DB, status string, limit int) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []orderRow
	if err := db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}

	orders := make([]model.Order, 0, len(rows))
	for i := range rows {
		o, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, nil
}

// UpdateOrderStatus moves an order to a new status if the transition is
// allowed. The update is conditional on the status it was read with, so a
// concurrent change makes this call fail instead of skipping a step.
func UpdateOrderStatus(ctx context.Context, db *sqlx.DB, id, status string) (*model.Order, error) {
	var current string
	err := db.GetContext(ctx, &current, `SELECT status FROM orders WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting order status: %w", err)
	}

	if !model.CanTransition(current, status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current, status)
	}

	res, err := db.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		status, time.Now().UTC(), id, current,
	)
	if err != nil {
		return nil, fmt.Errorf("updating order status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: order changed concurrently", ErrInvalidTransition)
	}

	return GetOrder(ctx, db, id)
}

// CountOrdersByStatus returns the number of orders per status.
func CountOrdersByStatus(ctx context.Context, db *sqlx.DB) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting orders: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning order count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
