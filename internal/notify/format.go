package notify

import (
	"fmt"
	"strings"

	"github.com/erazemk/trgovina/internal/model"
)

// FormatOrder renders a plain-text order summary for operators.
func FormatOrder(o model.Order) string {
	var b strings.Builder

	fmt.Fprintf(&b, "New order %s\n", o.ID)
	fmt.Fprintf(&b, "%s\n\n", o.CreatedAt.UTC().Format("2006-01-02 15:04 UTC"))
	fmt.Fprintf(&b, "Customer: %s\n", o.CustomerName)
	fmt.Fprintf(&b, "Phone: %s\n", o.Phone)
	fmt.Fprintf(&b, "Address: %s\n", o.Address)
	if o.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", o.Notes)
	}

	b.WriteString("\nItems:\n")
	for _, item := range o.Items {
		fmt.Fprintf(&b, "- %s × %d @ %s = %s\n",
			item.Name, item.Quantity, item.UnitPrice.StringFixed(2), item.Subtotal().StringFixed(2))
	}

	fmt.Fprintf(&b, "\nTotal: %s", o.TotalAmount.StringFixed(2))
	return b.String()
}
