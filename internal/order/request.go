package order

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/erazemk/trgovina/internal/model"
)

// Field limits, in characters.
const (
	MaxNameLength    = 100
	MaxPhoneLength   = 20
	MaxAddressLength = 500
	MaxNotesLength   = 1000
)

// DefaultMaxLines bounds the number of cart lines in one submission.
const DefaultMaxLines = 50

var phonePattern = regexp.MustCompile(`^[0-9+\-\s().]{6,20}$`)

// Request is an order submission as sent by the storefront.
type Request struct {
	CustomerName string           `json:"customerName"`
	Phone        string           `json:"phone"`
	Address      string           `json:"address"`
	Notes        string           `json:"notes,omitempty"`
	Products     []model.CartLine `json:"products"`
	TotalAmount  *decimal.Decimal `json:"totalAmount,omitempty"`
}

// Customer holds sanitized contact fields.
type Customer struct {
	Name    string
	Phone   string
	Address string
	Notes   string
}

// Sanitize trims and caps the contact fields and applies the abuse guards.
// It never touches the catalog.
func Sanitize(req *Request, maxLines int) (Customer, error) {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}

	c := Customer{
		Name:    truncate(strings.TrimSpace(req.CustomerName), MaxNameLength),
		Phone:   strings.TrimSpace(req.Phone),
		Address: truncate(strings.TrimSpace(req.Address), MaxAddressLength),
		Notes:   truncate(strings.TrimSpace(req.Notes), MaxNotesLength),
	}

	switch {
	case c.Name == "":
		return c, &InputError{Field: "customerName", Msg: "is required"}
	case c.Phone == "":
		return c, &InputError{Field: "phone", Msg: "is required"}
	case c.Address == "":
		return c, &InputError{Field: "address", Msg: "is required"}
	case !phonePattern.MatchString(c.Phone):
		return c, &InputError{Field: "phone", Msg: "invalid phone number"}
	case len(req.Products) > maxLines:
		return c, &InputError{Field: "products", Msg: "too many items in cart"}
	}

	return c, nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}
