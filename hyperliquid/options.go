// Copyright (c) 2025 BVK Chaitanya

package hyperliquid

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
)

type Options struct {
	// Testnet selects the testnet endpoint and signing source.
	Testnet bool

	// RestURL overrides the default endpoint.
	RestURL string

	// Slippage is the fractional distance from the mid price for the
	// marketable limit orders.
	Slippage decimal.Decimal

	// Fees is the fractional taker fee used in the balance check.
	Fees decimal.Decimal

	// MetaCacheTimeout is the lifetime of the cached asset metadata.
	MetaCacheTimeout time.Duration

	// CloseAttempts limits the number of orders used to flatten a position.
	CloseAttempts int

	// CloseRetryInterval is the wait time between close attempts.
	CloseRetryInterval time.Duration

	HttpClientTimeout time.Duration

	// RequestsPerSecond limits requests per client, i.e., per network path.
	RequestsPerSecond float64
}

func (v *Options) setDefaults() {
	if v.Slippage.IsZero() {
		v.Slippage = decimal.RequireFromString("0.001")
	}
	if v.Fees.IsZero() {
		v.Fees = decimal.RequireFromString("0.000336")
	}
	if v.MetaCacheTimeout == 0 {
		v.MetaCacheTimeout = 5 * time.Minute
	}
	if v.CloseAttempts == 0 {
		v.CloseAttempts = 10
	}
	if v.CloseRetryInterval == 0 {
		v.CloseRetryInterval = time.Second
	}
	if v.HttpClientTimeout == 0 {
		v.HttpClientTimeout = 30 * time.Second
	}
}

func (v *Options) Check() error {
	if v.Slippage.IsNegative() || v.Slippage.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("slippage must be within [0, 1): %w", os.ErrInvalid)
	}
	if v.Fees.IsNegative() {
		return fmt.Errorf("fees cannot be negative: %w", os.ErrInvalid)
	}
	if v.CloseAttempts < 1 {
		return fmt.Errorf("close attempts must be positive: %w", os.ErrInvalid)
	}
	if v.CloseRetryInterval < 0 {
		return fmt.Errorf("close retry interval cannot be negative: %w", os.ErrInvalid)
	}
	return nil
}
