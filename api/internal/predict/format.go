package predict

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// FormatConfidence renders a fraction as a percentage with one decimal: 0.92 → "92.0%".
func FormatConfidence(c float64) string {
	return decimal.NewFromFloat(c).Mul(hundred).StringFixed(1) + "%"
}
