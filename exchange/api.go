// Copyright (c) 2023 BVK Chaitanya

// Package exchange defines the venue facing types and the Venue interface
// used by the batch controller.
package exchange

import (
	"context"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// Account holds the credentials needed to trade on behalf of one venue
// account. PrivateKey is the hex encoded secp256k1 key and is never
// persisted in this form.
type Account struct {
	ID      string
	Name    string
	Address string

	PrivateKey string

	// ProxyURL is nil when the account uses the default network path.
	ProxyURL *url.URL
}

type Position struct {
	Asset string

	// Size is the signed position size. Positive values are longs.
	Size decimal.Decimal

	Leverage int

	EntryPrice decimal.Decimal

	// LiquidationPrice is not valid when the venue does not report one.
	LiquidationPrice decimal.NullDecimal
}

type MarginSummary struct {
	AccountValue    decimal.Decimal
	TotalMarginUsed decimal.Decimal
}

type AccountState struct {
	AccountID string
	Address   string

	Positions []*Position
	Margin    MarginSummary

	Time time.Time
}

// UnitParams describes a unit to be opened on a set of accounts. Size is the
// nominal per-account size before leverage.
type UnitParams struct {
	Asset    string
	Size     decimal.Decimal
	Leverage int

	// SizeDecimals is the number of decimals the leg sizes are rounded to.
	SizeDecimals int

	// SmartBalanceUsage places the larger legs on the accounts with more
	// available balance.
	SmartBalanceUsage bool
}

type Venue interface {
	VenueName() string

	GetUnitUserStates(ctx context.Context, accounts []*Account) ([]*AccountState, error)

	GetAssetPrice(ctx context.Context, account *Account, asset string) (decimal.Decimal, error)
	GetAssetSizeDecimals(ctx context.Context, account *Account, asset string) (int, error)

	CreateUnit(ctx context.Context, accounts []*Account, params *UnitParams) error
	CloseUnit(ctx context.Context, accounts []*Account, asset string) error
	CloseAndRecreateUnit(ctx context.Context, accounts []*Account, params *UnitParams) error
}
