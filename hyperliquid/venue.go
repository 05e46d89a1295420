// Copyright (c) 2025 BVK Chaitanya

// Package hyperliquid implements the exchange.Venue interface for the
// Hyperliquid perpetuals exchange.
package hyperliquid

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bvk/unitbot/exchange"
	"github.com/bvk/unitbot/hyperliquid/internal"
	"github.com/bvk/unitbot/syncmap"
	"github.com/shopspring/decimal"
)

type assetInfo struct {
	index       int
	szDecimals  int
	maxLeverage int
}

type Venue struct {
	opts Options

	// clients holds one client per network path, keyed by the proxy url.
	clients syncmap.Map[string, *internal.Client]

	keys syncmap.Map[string, *ecdsa.PrivateKey]

	metaMu     sync.Mutex
	metaTime   time.Time
	assetInfos map[string]*assetInfo

	rngMu sync.Mutex
	rng   *rand.Rand
}

var _ exchange.Venue = &Venue{}

func New(opts *Options) (*Venue, error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, err
	}
	seed := uint64(time.Now().UnixNano())
	v := &Venue{
		opts: *opts,
		rng:  rand.New(rand.NewPCG(seed, seed>>32)),
	}
	return v, nil
}

func (v *Venue) Close() error {
	v.clients.Range(func(_ string, c *internal.Client) bool {
		c.Close()
		return true
	})
	return nil
}

func (v *Venue) VenueName() string {
	if v.opts.Testnet {
		return "hyperliquid-testnet"
	}
	return "hyperliquid"
}

func (v *Venue) client(account *exchange.Account) (*internal.Client, error) {
	key := ""
	if account.ProxyURL != nil {
		key = account.ProxyURL.String()
	}
	if c, ok := v.clients.Load(key); ok {
		return c, nil
	}
	c, err := internal.New(&internal.Options{
		RestURL:           v.opts.RestURL,
		Testnet:           v.opts.Testnet,
		ProxyURL:          account.ProxyURL,
		HttpClientTimeout: v.opts.HttpClientTimeout,
		RequestsPerSecond: v.opts.RequestsPerSecond,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create client for account %s: %w", account, err)
	}
	if actual, loaded := v.clients.LoadOrStore(key, c); loaded {
		c.Close()
		return actual, nil
	}
	return c, nil
}

func (v *Venue) privateKey(account *exchange.Account) (*ecdsa.PrivateKey, error) {
	if k, ok := v.keys.Load(account.ID); ok {
		return k, nil
	}
	k, err := internal.ParsePrivateKey(account.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", account, err)
	}
	v.keys.Store(account.ID, k)
	return k, nil
}

func (v *Venue) getAssetInfo(ctx context.Context, account *exchange.Account, asset string) (*assetInfo, error) {
	v.metaMu.Lock()
	defer v.metaMu.Unlock()

	if v.assetInfos == nil || time.Since(v.metaTime) > v.opts.MetaCacheTimeout {
		c, err := v.client(account)
		if err != nil {
			return nil, err
		}
		meta, err := c.GetMeta(ctx)
		if err != nil {
			return nil, fmt.Errorf("could not fetch asset metadata: %w", err)
		}
		infos := make(map[string]*assetInfo, len(meta.Universe))
		for i, m := range meta.Universe {
			infos[m.Name] = &assetInfo{index: i, szDecimals: m.SzDecimals, maxLeverage: m.MaxLeverage}
		}
		v.assetInfos, v.metaTime = infos, time.Now()
	}
	info, ok := v.assetInfos[asset]
	if !ok {
		return nil, fmt.Errorf("asset %q is not listed: %w", asset, os.ErrNotExist)
	}
	return info, nil
}

func (v *Venue) getAccountState(ctx context.Context, account *exchange.Account) (*exchange.AccountState, error) {
	c, err := v.client(account)
	if err != nil {
		return nil, err
	}
	resp, err := c.GetClearinghouseState(ctx, account.Address)
	if err != nil {
		return nil, fmt.Errorf("could not get state for account %s: %w", account, err)
	}
	state := &exchange.AccountState{
		AccountID: account.ID,
		Address:   account.Address,
		Margin: exchange.MarginSummary{
			AccountValue:    resp.MarginSummary.AccountValue,
			TotalMarginUsed: resp.MarginSummary.TotalMarginUsed,
		},
		Time: time.UnixMilli(resp.Time),
	}
	for _, ap := range resp.AssetPositions {
		p := &ap.Position
		if p.Szi.IsZero() {
			continue
		}
		state.Positions = append(state.Positions, &exchange.Position{
			Asset:            p.Coin,
			Size:             p.Szi,
			Leverage:         p.Leverage.Value,
			EntryPrice:       p.EntryPx.Decimal,
			LiquidationPrice: p.LiquidationPx,
		})
	}
	return state, nil
}

// GetUnitUserStates fetches the states of all accounts concurrently. States
// are returned in the same order as the accounts.
func (v *Venue) GetUnitUserStates(ctx context.Context, accounts []*exchange.Account) ([]*exchange.AccountState, error) {
	states := make([]*exchange.AccountState, len(accounts))
	errs := make([]error, len(accounts))

	var wg sync.WaitGroup
	for i, a := range accounts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			states[i], errs[i] = v.getAccountState(ctx, a)
		}()
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return states, nil
}

func (v *Venue) GetAssetPrice(ctx context.Context, account *exchange.Account, asset string) (decimal.Decimal, error) {
	c, err := v.client(account)
	if err != nil {
		return decimal.Zero, err
	}
	mids, err := c.GetAllMids(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("could not fetch mid prices: %w", err)
	}
	s, ok := mids[asset]
	if !ok {
		return decimal.Zero, fmt.Errorf("no mid price for asset %q: %w", asset, os.ErrNotExist)
	}
	price, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("could not parse mid price %q for %s: %w", s, asset, err)
	}
	return price, nil
}

func (v *Venue) GetAssetSizeDecimals(ctx context.Context, account *exchange.Account, asset string) (int, error) {
	info, err := v.getAssetInfo(ctx, account, asset)
	if err != nil {
		return 0, err
	}
	return info.szDecimals, nil
}

func (v *Venue) logger(accounts []*exchange.Account, asset string) *slog.Logger {
	names := make([]string, 0, len(accounts))
	for _, a := range accounts {
		names = append(names, a.String())
	}
	return slog.With("venue", v.VenueName(), "accounts", strings.Join(names, ","), "asset", asset)
}
