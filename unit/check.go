// Copyright (c) 2025 BVK Chaitanya

package unit

import (
	"fmt"
	"os"
	"time"

	"github.com/bvk/unitbot/gobs"
	"github.com/shopspring/decimal"
)

var (
	minThinLegValue = decimal.NewFromInt(10)
	thinLegFraction = decimal.RequireFromString("0.1")
)

// CheckSizing rejects units whose smallest split leg would fall below the
// venue's minimum order value. Only batches with more than two accounts
// split the notional unevenly, so two account batches are always accepted.
func CheckSizing(naccounts int, price, size decimal.Decimal, leverage int) error {
	if naccounts <= 2 {
		return nil
	}
	value := price.Mul(size).Mul(decimal.NewFromInt(int64(leverage))).Mul(thinLegFraction)
	if value.LessThan(minThinLegValue) {
		return fmt.Errorf("unit value %s is too small for %d accounts; increase size or leverage: %w", value.StringFixed(2), naccounts, os.ErrInvalid)
	}
	return nil
}

// Reason describes why a unit needs recreation. Empty value means no action.
type Reason string

const (
	ReasonNone    Reason = ""
	ReasonDrift   Reason = "drift"
	ReasonExpired Reason = "expired"
)

// NeedsRecreate decides if a unit must be closed and recreated. A unit whose
// position count differs from the account count always needs recreation.
// Otherwise the unit expires when now - interval - openedTiming reaches the
// recreate timing. Units without timing information are only checked for
// drift.
func NeedsRecreate(u *Unit, naccounts int, timing *gobs.UnitTiming, now time.Time, interval time.Duration) Reason {
	if u.IsDrifted(naccounts) {
		return ReasonDrift
	}
	if timing == nil || timing.OpenedTiming.IsZero() || timing.RecreateTiming <= 0 {
		return ReasonNone
	}
	elapsed := now.Sub(timing.OpenedTiming) - interval
	if elapsed >= timing.RecreateTiming {
		return ReasonExpired
	}
	return ReasonNone
}
