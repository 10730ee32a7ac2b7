package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// WeightedAveragePrice recomputes the blended entry price after an
// additional fill. Falls back to the existing price when the combined
// quantity is zero.
func WeightedAveragePrice(price1, qty1, price2, qty2 float64) float64 {
	totalQty := qty1 + qty2
	if totalQty <= 0 {
		return price1
	}
	return (price1*qty1 + price2*qty2) / totalQty
}

// ApplySlippage adjusts a candle close to the modeled fill price: longs pay
// close*(1+s%), shorts receive close*(1-s%). The factor is computed in
// decimal arithmetic so tiny slippage percentages do not lose precision.
func ApplySlippage(price, slippagePct float64, side Side) (float64, error) {
	if price <= 0 {
		return 0, fmt.Errorf("slippage: price must be positive, got %v", price)
	}
	if slippagePct < 0 {
		return 0, fmt.Errorf("slippage: percentage must be non-negative, got %v", slippagePct)
	}

	slip := decimal.NewFromFloat(slippagePct).Div(decimal.NewFromInt(100))
	factor := decimal.NewFromInt(1)
	if side == SideLong {
		factor = factor.Add(slip)
	} else {
		factor = factor.Sub(slip)
	}

	adjusted, _ := decimal.NewFromFloat(price).Mul(factor).Float64()
	return adjusted, nil
}
