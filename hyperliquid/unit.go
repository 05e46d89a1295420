// Copyright (c) 2025 BVK Chaitanya

package hyperliquid

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/bvk/unitbot/ctxutil"
	"github.com/bvk/unitbot/exchange"
	"github.com/bvk/unitbot/hyperliquid/internal"
	"github.com/bvk/unitbot/idgen"
	"github.com/shopspring/decimal"
)

const frontendMarket = "FrontendMarket"

func checkUnitParams(accounts []*exchange.Account, params *exchange.UnitParams) error {
	switch len(accounts) {
	case 2, 4, 6:
	default:
		return fmt.Errorf("units need 2, 4 or 6 accounts, got %d: %w", len(accounts), os.ErrInvalid)
	}
	if params.Asset == "" {
		return fmt.Errorf("asset cannot be empty: %w", os.ErrInvalid)
	}
	if !params.Size.IsPositive() {
		return fmt.Errorf("unit size must be positive, got %s: %w", params.Size, os.ErrInvalid)
	}
	if params.Leverage <= 0 {
		return fmt.Errorf("leverage must be positive, got %d: %w", params.Leverage, os.ErrInvalid)
	}
	if params.SizeDecimals < 0 {
		return fmt.Errorf("size decimals cannot be negative, got %d: %w", params.SizeDecimals, os.ErrInvalid)
	}
	return nil
}

func (v *Venue) randLegs(total decimal.Decimal, szDecimals int, balances []decimal.Decimal, n int) ([]*leg, error) {
	v.rngMu.Lock()
	defer v.rngMu.Unlock()
	return planLegs(v.rng, total, szDecimals, balances, n)
}

// CreateUnit opens matched positions for the asset on all accounts. Total
// position size on each side is the unit size multiplied by the leverage.
// Leg sizes are rounded to params.SizeDecimals. If any leg fails, positions
// opened by the other legs are closed.
func (v *Venue) CreateUnit(ctx context.Context, accounts []*exchange.Account, params *exchange.UnitParams) error {
	if err := checkUnitParams(accounts, params); err != nil {
		return err
	}
	log := v.logger(accounts, params.Asset)
	log.Info("creating unit", "size", params.Size, "leverage", params.Leverage)

	info, err := v.getAssetInfo(ctx, accounts[0], params.Asset)
	if err != nil {
		return err
	}
	if info.maxLeverage > 0 && params.Leverage > info.maxLeverage {
		return fmt.Errorf("leverage %d exceeds max leverage %d for %s: %w", params.Leverage, info.maxLeverage, params.Asset, os.ErrInvalid)
	}

	states, err := v.GetUnitUserStates(ctx, accounts)
	if err != nil {
		return err
	}
	for i, s := range states {
		if p := s.Position(params.Asset); p != nil {
			return fmt.Errorf("account %s already holds %s position %s: %w", accounts[i], params.Asset, p.Size, os.ErrExist)
		}
	}

	mid, err := v.GetAssetPrice(ctx, accounts[0], params.Asset)
	if err != nil {
		return err
	}

	total := params.Size.Mul(decimal.NewFromInt(int64(params.Leverage)))
	var balances []decimal.Decimal
	if params.SmartBalanceUsage {
		for _, s := range states {
			balances = append(balances, s.Margin.Balance())
		}
	}
	legs, err := v.randLegs(total, params.SizeDecimals, balances, len(accounts))
	if err != nil {
		return err
	}

	// Every account must be able to pay the margin for its leg.
	one := decimal.NewFromInt(1)
	lev := decimal.NewFromInt(int64(params.Leverage))
	for _, l := range legs {
		need := l.size.Mul(one.Sub(v.opts.Fees)).Mul(mid).Mul(one.Add(v.opts.Slippage)).Div(lev)
		if have := states[l.account].Margin.Balance(); have.LessThan(need) {
			return fmt.Errorf("account %s has balance %s, needs %s for %s %s: %w", accounts[l.account], have.StringFixed(2), need.StringFixed(2), l.size, params.Asset, os.ErrInvalid)
		}
	}

	if err := v.forEach(accounts, func(i int, a *exchange.Account) error {
		return v.updateLeverage(ctx, a, info, params.Leverage)
	}); err != nil {
		return fmt.Errorf("could not update leverage: %w", err)
	}

	openErr := v.forEach(accounts, func(i int, a *exchange.Account) error {
		l := legs[i]
		price := internal.SlippagePrice(mid, l.isBuy, v.opts.Slippage, info.szDecimals)
		_, err := v.placeOrder(ctx, a, info, params.Asset, l.isBuy, l.size, price, false)
		return err
	})
	if openErr != nil {
		log.Error("could not open all legs of the unit; closing opened legs", "err", openErr)
		if err := v.CloseUnit(context.WithoutCancel(ctx), accounts, params.Asset); err != nil {
			return fmt.Errorf("could not open unit (%w) and could not close partial unit: %w", openErr, err)
		}
		return fmt.Errorf("could not open unit: %w", openErr)
	}
	log.Info("created unit", "size", params.Size, "leverage", params.Leverage)
	return nil
}

// CloseUnit closes the asset positions on all accounts with reduce-only
// orders. Positions that are not closed fully are retried a bounded number of
// times.
func (v *Venue) CloseUnit(ctx context.Context, accounts []*exchange.Account, asset string) error {
	if asset == "" {
		return fmt.Errorf("asset cannot be empty: %w", os.ErrInvalid)
	}
	log := v.logger(accounts, asset)
	log.Info("closing unit")

	info, err := v.getAssetInfo(ctx, accounts[0], asset)
	if err != nil {
		return err
	}
	if err := v.forEach(accounts, func(i int, a *exchange.Account) error {
		return v.closePosition(ctx, a, info, asset)
	}); err != nil {
		return err
	}
	log.Info("closed unit")
	return nil
}

// CloseAndRecreateUnit closes the unit and opens it again with the same
// parameters. Parameters are validated before closing.
func (v *Venue) CloseAndRecreateUnit(ctx context.Context, accounts []*exchange.Account, params *exchange.UnitParams) error {
	if err := checkUnitParams(accounts, params); err != nil {
		return err
	}
	if err := v.CloseUnit(ctx, accounts, params.Asset); err != nil {
		return fmt.Errorf("could not close unit before recreating: %w", err)
	}
	if err := v.CreateUnit(ctx, accounts, params); err != nil {
		return fmt.Errorf("unit is closed, but could not recreate it: %w", err)
	}
	return nil
}

// forEach runs f for every account concurrently and joins the errors.
func (v *Venue) forEach(accounts []*exchange.Account, f func(int, *exchange.Account) error) error {
	errs := make([]error, len(accounts))
	var wg sync.WaitGroup
	for i, a := range accounts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f(i, a); err != nil {
				errs[i] = fmt.Errorf("account %s: %w", a, err)
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (v *Venue) updateLeverage(ctx context.Context, account *exchange.Account, info *assetInfo, leverage int) error {
	c, err := v.client(account)
	if err != nil {
		return err
	}
	key, err := v.privateKey(account)
	if err != nil {
		return err
	}
	return c.UpdateLeverage(ctx, key, info.index, true /* isCross */, leverage)
}

func (v *Venue) placeOrder(ctx context.Context, account *exchange.Account, info *assetInfo, asset string, isBuy bool, size, price decimal.Decimal, reduceOnly bool) (*internal.FilledStatus, error) {
	c, err := v.client(account)
	if err != nil {
		return nil, err
	}
	key, err := v.privateKey(account)
	if err != nil {
		return nil, err
	}
	nonce := c.NextNonce()
	cloid := idgen.New(fmt.Sprintf("%s/%s/%d", account.Address, asset, nonce), 0).NextCloid()
	order := &internal.OrderWire{
		Asset:      info.index,
		IsBuy:      isBuy,
		LimitPx:    internal.FormatDecimal(price),
		Size:       internal.FormatDecimal(internal.RoundSize(size, info.szDecimals)),
		ReduceOnly: reduceOnly,
		OrderType:  internal.OrderType{Limit: &internal.LimitOrderType{Tif: frontendMarket}},
		Cloid:      cloid,
	}
	statuses, err := c.PlaceOrders(ctx, key, []*internal.OrderWire{order})
	if err != nil {
		return nil, err
	}
	st := statuses[0]
	if st.Error != "" {
		return nil, fmt.Errorf("order %s for %s %s was rejected: %s", cloid, size, asset, st.Error)
	}
	if st.Filled == nil {
		return nil, fmt.Errorf("order %s for %s %s was not filled", cloid, size, asset)
	}
	return st.Filled, nil
}

func (v *Venue) closePosition(ctx context.Context, account *exchange.Account, info *assetInfo, asset string) error {
	var lastErr error
	for attempt := 0; attempt < v.opts.CloseAttempts; attempt++ {
		if attempt > 0 {
			ctxutil.Sleep(ctx, v.opts.CloseRetryInterval)
			if err := context.Cause(ctx); err != nil {
				return err
			}
		}
		state, err := v.getAccountState(ctx, account)
		if err != nil {
			lastErr = err
			continue
		}
		p := state.Position(asset)
		if p == nil {
			return nil
		}
		mid, err := v.GetAssetPrice(ctx, account, asset)
		if err != nil {
			lastErr = err
			continue
		}
		isBuy := !p.IsLong()
		price := internal.SlippagePrice(mid, isBuy, v.opts.Slippage, info.szDecimals)
		filled, err := v.placeOrder(ctx, account, info, asset, isBuy, p.Size.Abs(), price, true /* reduceOnly */)
		if err != nil {
			v.logger([]*exchange.Account{account}, asset).Warn("could not close position (will retry)", "attempt", attempt, "err", err)
			lastErr = err
			continue
		}
		if filled.TotalSz.Equal(p.Size.Abs()) {
			return nil
		}
		lastErr = fmt.Errorf("position %s was filled partially by %s", p.Size, filled.TotalSz)
	}
	return fmt.Errorf("could not close %s position after %d attempts: %w", asset, v.opts.CloseAttempts, lastErr)
}

