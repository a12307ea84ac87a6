package model

import "github.com/shopspring/decimal"

// FormatCents renders an amount in minor units with two decimal places.
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
