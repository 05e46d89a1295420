// Copyright (c) 2023 BVK Chaitanya

package exchange

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Balance returns the margin available for new positions.
func (v *MarginSummary) Balance() decimal.Decimal {
	return v.AccountValue.Sub(v.TotalMarginUsed)
}

// Position returns the position for the asset or nil.
func (v *AccountState) Position(asset string) *Position {
	for _, p := range v.Positions {
		if p.Asset == asset {
			return p
		}
	}
	return nil
}

func (v *Position) IsLong() bool {
	return v.Size.IsPositive()
}

func (v *Position) String() string {
	liq := "none"
	if v.LiquidationPrice.Valid {
		liq = v.LiquidationPrice.Decimal.String()
	}
	return fmt.Sprintf("{Asset %s Size %s Leverage %dx Entry %s Liquidation %s}", v.Asset, v.Size, v.Leverage, v.EntryPrice, liq)
}

func (v *Account) String() string {
	if v.Name != "" {
		return v.Name
	}
	return v.Address
}
