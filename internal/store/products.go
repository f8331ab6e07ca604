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

const productColumns = `id, name, description, price, is_active, in_stock, stock_quantity,
	low_stock_threshold, image_mime, created_at, updated_at, deleted_at`

// CreateProduct creates a new product. If the product starts with a tracked
// stock quantity, an initial ledger entry is written in the same transaction
// so the ledger accounts for the baseline.
func CreateProduct(ctx context.Context, db *sqlx.DB, p *model.Product, actor *int64) (*model.Product, error) {
	if p.StockQuantity != nil && *p.StockQuantity < 0 {
		return nil, fmt.Errorf("stock quantity cannot be negative")
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	inStock := p.InStock
	if p.StockQuantity != nil {
		inStock = *p.StockQuantity > 0
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO products (id, name, description, price, is_active, in_stock, stock_quantity,
		                       low_stock_threshold, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, p.Name, p.Description, p.Price, p.IsActive, inStock, p.StockQuantity,
		p.LowStockThreshold, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating product: %w", err)
	}

	if p.StockQuantity != nil && *p.StockQuantity > 0 {
		zero, after := 0, *p.StockQuantity
		err = InsertMovement(ctx, tx, &model.StockMovement{
			ProductID:      id,
			QuantityChange: *p.StockQuantity,
			QuantityBefore: &zero,
			QuantityAfter:  &after,
			Type:           model.MovementInitial,
			Reason:         "initial stock",
			CreatedAt:      now,
			CreatedBy:      actor,
		})
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing product: %w", err)
	}

	return GetProduct(ctx, db, id)
}

// GetProduct returns a product by ID, including soft-deleted ones.
func GetProduct(ctx context.Context, db *sqlx.DB, id string) (*model.Product, error) {
	p := &model.Product{}
	err := db.GetContext(ctx, p, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting product: %w", err)
	}
	decorate(p)
	return p, nil
}

// ListProducts returns all non-deleted products, optionally only active ones.
func ListProducts(ctx context.Context, db *sqlx.DB, activeOnly bool) ([]model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE deleted_at IS NULL`
	if activeOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY name`

	var products []model.Product
	if err := db.SelectContext(ctx, &products, query); err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	for i := range products {
		decorate(&products[i])
	}
	return products, nil
}

// GetProductsByIDs fetches every non-deleted product whose id is in ids with a
// single query. Unknown ids are simply absent from the result.
func GetProductsByIDs(ctx context.Context, db *sqlx.DB, ids []string) ([]model.Product, error) {
	if len(ids) == 0 {
		return []model.Product{}, nil
	}

	query, args, err := sqlx.In(
		`SELECT `+productColumns+` FROM products WHERE deleted_at IS NULL AND id IN (?)`, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("building product lookup: %w", err)
	}

	var products []model.Product
	if err := db.SelectContext(ctx, &products, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("looking up products: %w", err)
	}
	for i := range products {
		decorate(&products[i])
	}
	return products, nil
}

// UpdateProduct updates a product's catalog fields. Stock quantity is only
// changed through stock movements; the in-stock flag is only taken from p for
// products without a tracked quantity.
func UpdateProduct(ctx context.Context, db *sqlx.DB, p *model.Product) error {
	res, err := db.ExecContext(ctx,
		`UPDATE products
		 SET name = ?, description = ?, price = ?, is_active = ?, low_stock_threshold = ?,
		     in_stock = CASE WHEN stock_quantity IS NULL THEN ? ELSE stock_quantity > 0 END,
		     updated_at = ?
		 WHERE id = ? AND deleted_at IS NULL`,
		p.Name, p.Description, p.Price, p.IsActive, p.LowStockThreshold, p.InStock,
		time.Now().UTC(), p.ID,
	)
	if err != nil {
		return fmt.Errorf("updating product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProduct soft-deletes a product. Orders keep their frozen line items.
func DeleteProduct(ctx context.Context, db *sqlx.DB, id string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE products SET deleted_at = ?, is_active = 0 WHERE id = ? AND deleted_at IS NULL`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("deleting product: %w", err)
	}
	return nil
}

// SetProductImage sets a product's image data.
func SetProductImage(ctx context.Context, db *sqlx.DB, id string, image []byte, mime string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE products SET image = ?, image_mime = ?, updated_at = ?
		 WHERE id = ? AND deleted_at IS NULL`,
		image, mime, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("setting product image: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetProductImage returns a product's image data and MIME type.
func GetProductImage(ctx context.Context, db *sqlx.DB, id string) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT image, image_mime FROM products WHERE id = ? AND deleted_at IS NULL`, id,
	).Scan(&image, &mime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting product image: %w", err)
	}
	return image, mime.String, nil
}

// ListLowStockProducts returns active tracked products at or below their
// low-stock threshold, emptiest first.
func ListLowStockProducts(ctx context.Context, db *sqlx.DB) ([]model.Product, error) {
	var products []model.Product
	err := db.SelectContext(ctx, &products,
		`SELECT `+productColumns+` FROM products
		 WHERE deleted_at IS NULL AND is_active = 1
		   AND stock_quantity IS NOT NULL AND stock_quantity <= low_stock_threshold
		 ORDER BY stock_quantity, name`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing low-stock products: %w", err)
	}
	for i := range products {
		decorate(&products[i])
	}
	return products, nil
}

// ProductCounts summarizes the catalog.
type ProductCounts struct {
	Total      int `db:"total" json:"total"`
	Active     int `db:"active" json:"active"`
	OutOfStock int `db:"out_of_stock" json:"out_of_stock"`
}

// CountProducts returns catalog counts for the dashboard.
func CountProducts(ctx context.Context, db *sqlx.DB) (ProductCounts, error) {
	var c ProductCounts
	err := db.GetContext(ctx, &c,
		`SELECT COUNT(*) AS total,
		        COALESCE(SUM(is_active), 0) AS active,
		        COALESCE(SUM(CASE WHEN is_active = 1 AND in_stock = 0 THEN 1 ELSE 0 END), 0) AS out_of_stock
		 FROM products WHERE deleted_at IS NULL`,
	)
	if err != nil {
		return c, fmt.Errorf("counting products: %w", err)
	}
	return c, nil
}

func decorate(p *model.Product) {
	if p.HasImage() {
		p.ImageURL = model.ImagePath(p.ID)
	}
}
