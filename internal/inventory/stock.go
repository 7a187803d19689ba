package inventory

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/pscheid92/stockpulse/internal/domain"
)

// ApplyOperation returns the stock level after applying op to current.
// Outflows larger than current return a *domain.InsufficientStockError.
func ApplyOperation(current float64, op domain.OperationType, qty float64) (float64, error) {
	if !op.Valid() {
		return current, fmt.Errorf("unknown operation type %q", op)
	}
	if !(qty > 0) || math.IsInf(qty, 0) {
		return current, fmt.Errorf("quantity must be positive, got %g", qty)
	}

	if math.IsNaN(current) || math.IsInf(current, 0) {
		return current, fmt.Errorf("current stock is not a finite number: %g", current)
	}

	cur := decimal.NewFromFloat(current)
	q := decimal.NewFromFloat(qty)

	if !op.IsOutflow() {
		return cur.Add(q).InexactFloat64(), nil
	}

	if cur.LessThan(q) {
		return current, &domain.InsufficientStockError{Available: current, Requested: qty}
	}
	return cur.Sub(q).InexactFloat64(), nil
}

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// FormatQuantity renders a quantity without trailing zeros.
func FormatQuantity(v float64) string {
	return decimal.NewFromFloat(v).Round(3).String()
}
