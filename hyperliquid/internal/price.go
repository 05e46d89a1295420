// Copyright (c) 2025 BVK Chaitanya

package internal

import (
	"github.com/shopspring/decimal"
)

const (
	maxPerpDecimals = 6
	maxSigFigures   = 5
)

// RoundPrice rounds a perpetuals price to at most five significant figures
// and at most 6-szDecimals decimal places. Integer prices are always valid.
func RoundPrice(px decimal.Decimal, szDecimals int) decimal.Decimal {
	if px.IsZero() {
		return px
	}
	// Order of magnitude of the most significant digit.
	mag := px.NumDigits() + int(px.Exponent()) - 1
	places := maxSigFigures - 1 - mag
	if places < 0 {
		places = 0
	}
	if limit := maxPerpDecimals - szDecimals; places > limit {
		places = max(limit, 0)
	}
	return px.Round(int32(places))
}

// RoundSize rounds a size to the asset's size decimals.
func RoundSize(sz decimal.Decimal, szDecimals int) decimal.Decimal {
	return sz.Round(int32(szDecimals))
}

// SlippagePrice returns a marketable limit price for an aggressive order.
func SlippagePrice(mid decimal.Decimal, isBuy bool, slippage decimal.Decimal, szDecimals int) decimal.Decimal {
	if isBuy {
		return RoundPrice(mid.Mul(decimal.NewFromInt(1).Add(slippage)), szDecimals)
	}
	return RoundPrice(mid.Mul(decimal.NewFromInt(1).Sub(slippage)), szDecimals)
}

// FormatDecimal formats a decimal without trailing zeros, which is the wire
// format for prices and sizes.
func FormatDecimal(v decimal.Decimal) string {
	return v.String()
}
