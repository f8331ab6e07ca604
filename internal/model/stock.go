package model

import "time"

// StockMovement is an append-only inventory ledger entry.
type StockMovement struct {
	ID             string    `db:"id" json:"id"`
	ProductID      string    `db:"product_id" json:"product_id"`
	QuantityChange int       `db:"quantity_change" json:"quantity_change"`
	QuantityBefore *int      `db:"quantity_before" json:"quantity_before"`
	QuantityAfter  *int      `db:"quantity_after" json:"quantity_after"`
	Type           string    `db:"type" json:"type"`
	Reason         string    `db:"reason" json:"reason"`
	ReferenceID    *string   `db:"reference_id" json:"reference_id,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	CreatedBy      *int64    `db:"created_by" json:"created_by,omitempty"`

	// Joined field (not always populated).
	ProductName string `db:"product_name" json:"product_name,omitempty"`
}

// Movement types.
const (
	MovementInitial  = "initial"
	MovementSale     = "sale"
	MovementStockIn  = "stock_in"
	MovementStockOut = "stock_out"
)
