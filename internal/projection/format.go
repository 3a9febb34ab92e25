package projection

import (
	"math"

	"github.com/shopspring/decimal"
)

// formatNumber rounds to one decimal place and drops a trailing ".0", so
// 12 renders as "12" and 12.46 as "12.5".
func formatNumber(value float64) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "n/a"
	}
	return decimal.NewFromFloat(value).Round(1).String()
}

func formatFixed(value float64) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "n/a"
	}
	return decimal.NewFromFloat(value).StringFixed(1)
}

func formatUSDBillion(value float64) string {
	return "$" + formatNumber(value) + "B"
}

func formatPercent(value float64) string {
	return formatFixed(value) + "%"
}

func formatSignedPercent(value float64) string {
	switch {
	case math.IsNaN(value):
		return "n/a"
	case math.IsInf(value, 1):
		return "+∞%"
	case math.IsInf(value, -1):
		return "-∞%"
	case value > 0:
		return "+" + formatPercent(value)
	default:
		return formatPercent(value)
	}
}

func round1(value float64) float64 {
	rounded, _ := decimal.NewFromFloat(value).Round(1).Float64()
	return rounded
}
