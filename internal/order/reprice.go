package order

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/erazemk/trgovina/internal/catalog"
	"github.com/erazemk/trgovina/internal/model"
)

// Repriced is the server's view of a cart.
type Repriced struct {
	Items      []model.LineItem
	Total      decimal.Decimal
	Rejections []string
}

// Reprice checks every cart line against the snapshot, in input order, and
// prices accepted lines from the snapshot. Client names and prices are
// ignored. All lines are evaluated even after a rejection.
func Reprice(lines []model.CartLine, snap catalog.Snapshot) Repriced {
	out := Repriced{Total: decimal.Zero}

	for _, line := range lines {
		p, ok := snap[line.ID]
		if !ok {
			out.Rejections = append(out.Rejections, fmt.Sprintf("product %q not found", line.ID))
			continue
		}
		if reason := check(line, p); reason != "" {
			out.Rejections = append(out.Rejections, reason)
			continue
		}

		item := model.LineItem{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  line.Quantity,
			ImageURL:  p.ImageURL,
		}
		out.Items = append(out.Items, item)
		out.Total = out.Total.Add(item.Subtotal())
	}

	return out
}

func check(line model.CartLine, p model.Product) string {
	switch {
	case !p.IsActive:
		return fmt.Sprintf("%s is inactive", p.Name)
	case !p.InStock:
		return fmt.Sprintf("insufficient stock for %s", p.Name)
	case p.StockQuantity != nil && *p.StockQuantity < line.Quantity:
		return fmt.Sprintf("insufficient stock for %s (requested %d, available %d)", p.Name, line.Quantity, *p.StockQuantity)
	case line.Quantity <= 0:
		return fmt.Sprintf("invalid quantity for %s", p.Name)
	}
	return ""
}
