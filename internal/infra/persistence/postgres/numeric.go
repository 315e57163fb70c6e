package postgres

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// decimalFromText parses a decimal rendered by the database as text.
func decimalFromText(value string) (decimal.Decimal, error) {
	out, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse decimal %q: %w", value, err)
	}
	return out, nil
}
