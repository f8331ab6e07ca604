package model

import "github.com/shopspring/decimal"

func init() {
	// Prices and totals go over the wire as plain JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}
