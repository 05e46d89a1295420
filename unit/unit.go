// Copyright (c) 2025 BVK Chaitanya

// Package unit derives units, the matched positions held by the accounts of
// a batch, from per-account venue snapshots.
//
// Units are never persisted. They are recomputed from the account states on
// every poll.
package unit

import (
	"fmt"
	"slices"
	"strings"

	"github.com/bvk/unitbot/exchange"
	"github.com/shopspring/decimal"
)

// Leg is one account's position in a unit.
type Leg struct {
	AccountID string

	// Size is the signed position size.
	Size decimal.Decimal

	LiquidationPrice decimal.NullDecimal
}

type Unit struct {
	Asset string

	// Size is the nominal per-account size, i.e., the position size before
	// leverage, computed from the first leg.
	Size decimal.Decimal

	Leverage int

	Legs []*Leg
}

// Project groups positions from all account states by asset. Nominal size
// and leverage are taken from the first position seen for an asset. Assets
// held by fewer accounts than the batch size still produce a unit. Output
// is sorted by asset.
func Project(states []*exchange.AccountState) []*Unit {
	byAsset := make(map[string]*Unit)
	for _, s := range states {
		if s == nil {
			continue
		}
		for _, p := range s.Positions {
			u, ok := byAsset[p.Asset]
			if !ok {
				u = &Unit{
					Asset:    p.Asset,
					Leverage: p.Leverage,
					Size:     nominalSize(p.Size, p.Leverage),
				}
				byAsset[p.Asset] = u
			}
			u.Legs = append(u.Legs, &Leg{
				AccountID:        s.AccountID,
				Size:             p.Size,
				LiquidationPrice: p.LiquidationPrice,
			})
		}
	}
	units := make([]*Unit, 0, len(byAsset))
	for _, u := range byAsset {
		units = append(units, u)
	}
	slices.SortFunc(units, func(a, b *Unit) int {
		return strings.Compare(a.Asset, b.Asset)
	})
	return units
}

func nominalSize(szi decimal.Decimal, leverage int) decimal.Decimal {
	if leverage <= 0 {
		return szi.Abs().Floor()
	}
	return szi.Abs().Div(decimal.NewFromInt(int64(leverage))).Floor()
}

// IsDrifted returns true when the unit is not held by every account of the
// batch.
func (u *Unit) IsDrifted(naccounts int) bool {
	return len(u.Legs) != naccounts
}

func (u *Unit) Params(sizeDecimals int, smartBalance bool) *exchange.UnitParams {
	return &exchange.UnitParams{
		Asset:             u.Asset,
		Size:              u.Size,
		Leverage:          u.Leverage,
		SizeDecimals:      sizeDecimals,
		SmartBalanceUsage: smartBalance,
	}
}

func (u *Unit) String() string {
	return fmt.Sprintf("{Asset %s Size %s Leverage %dx Legs %d}", u.Asset, u.Size, u.Leverage, len(u.Legs))
}
