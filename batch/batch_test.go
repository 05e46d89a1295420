// Copyright (c) 2025 BVK Chaitanya

package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/bvk/unitbot/exchange"
	"github.com/bvk/unitbot/gobs"
	"github.com/bvk/unitbot/timing"
	"github.com/bvk/unitbot/unit"
	"github.com/shopspring/decimal"
)

type fakeVenue struct {
	mu sync.Mutex

	// positions holds asset positions per account id.
	positions map[string]map[string]*exchange.Position

	price       decimal.Decimal
	decimals    int
	decimalsErr error
	createErr   error
	recreateErr error

	// closeErr, when not nil, fails CloseUnit after closing the first
	// account's position.
	closeErr error

	// failAssets fails CreateUnit for the listed assets.
	failAssets map[string]error

	// block, when not nil, holds CloseAndRecreateUnit until it is closed.
	block chan struct{}

	creates, closes, recreates int

	lastParams *exchange.UnitParams
}

func newFakeVenue() *fakeVenue {
	return &fakeVenue{
		positions: make(map[string]map[string]*exchange.Position),
		price:     decimal.NewFromInt(100),
		decimals:  4,
	}
}

func (v *fakeVenue) VenueName() string { return "fake" }

func (v *fakeVenue) setPosition(accountID, asset string, size int64, leverage int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.positions[accountID]; !ok {
		v.positions[accountID] = make(map[string]*exchange.Position)
	}
	v.positions[accountID][asset] = &exchange.Position{
		Asset:    asset,
		Size:     decimal.NewFromInt(size),
		Leverage: leverage,
	}
}

func (v *fakeVenue) counts() (creates, closes, recreates int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.creates, v.closes, v.recreates
}

func (v *fakeVenue) GetUnitUserStates(ctx context.Context, accounts []*exchange.Account) ([]*exchange.AccountState, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var states []*exchange.AccountState
	for _, a := range accounts {
		s := &exchange.AccountState{
			AccountID: a.ID,
			Address:   a.Address,
			Margin:    exchange.MarginSummary{AccountValue: decimal.NewFromInt(1000)},
			Time:      time.Now(),
		}
		for _, p := range v.positions[a.ID] {
			x := *p
			s.Positions = append(s.Positions, &x)
		}
		states = append(states, s)
	}
	return states, nil
}

func (v *fakeVenue) GetAssetPrice(ctx context.Context, account *exchange.Account, asset string) (decimal.Decimal, error) {
	return v.price, nil
}

func (v *fakeVenue) GetAssetSizeDecimals(ctx context.Context, account *exchange.Account, asset string) (int, error) {
	if v.decimalsErr != nil {
		return 0, v.decimalsErr
	}
	return v.decimals, nil
}

func (v *fakeVenue) open(accounts []*exchange.Account, params *exchange.UnitParams) error {
	for _, a := range accounts {
		if _, ok := v.positions[a.ID][params.Asset]; ok {
			return os.ErrExist
		}
	}
	size := params.Size.Mul(decimal.NewFromInt(int64(params.Leverage)))
	for i, a := range accounts {
		if _, ok := v.positions[a.ID]; !ok {
			v.positions[a.ID] = make(map[string]*exchange.Position)
		}
		sz := size
		if i%2 == 1 {
			sz = size.Neg()
		}
		v.positions[a.ID][params.Asset] = &exchange.Position{
			Asset:    params.Asset,
			Size:     sz,
			Leverage: params.Leverage,
		}
	}
	v.lastParams = params
	return nil
}

func (v *fakeVenue) close(accounts []*exchange.Account, asset string) {
	for _, a := range accounts {
		delete(v.positions[a.ID], asset)
	}
}

func (v *fakeVenue) CreateUnit(ctx context.Context, accounts []*exchange.Account, params *exchange.UnitParams) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.creates++
	if v.createErr != nil {
		return v.createErr
	}
	if err := v.failAssets[params.Asset]; err != nil {
		return err
	}
	return v.open(accounts, params)
}

func (v *fakeVenue) CloseUnit(ctx context.Context, accounts []*exchange.Account, asset string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closes++
	if v.closeErr != nil {
		v.close(accounts[:1], asset)
		return v.closeErr
	}
	v.close(accounts, asset)
	return nil
}

func (v *fakeVenue) CloseAndRecreateUnit(ctx context.Context, accounts []*exchange.Account, params *exchange.UnitParams) error {
	v.mu.Lock()
	block := v.block
	v.mu.Unlock()

	if block != nil {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case <-block:
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.recreates++
	if v.recreateErr != nil {
		return v.recreateErr
	}
	v.close(accounts, params.Asset)
	return v.open(accounts, params)
}

type memTimings struct {
	mu     sync.Mutex
	merges int
	data   map[string]*gobs.UnitTiming
}

func (m *memTimings) GetUnitTimings(ctx context.Context, batchID string) (map[string]*gobs.UnitTiming, error) {
	return nil, nil
}

func (m *memTimings) MergeUnitTimings(ctx context.Context, batchID string, timings map[string]*gobs.UnitTiming) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.merges++
	if m.data == nil {
		m.data = make(map[string]*gobs.UnitTiming)
	}
	for k, v := range timings {
		m.data[k] = v
	}
	return nil
}

func newTestController(t *testing.T, naccounts int, venue exchange.Venue) *Controller {
	t.Helper()

	b := &gobs.Batch{
		ID:                    "batch-id",
		Name:                  "test",
		DefaultRecreateTiming: time.Hour,
		CreateTime:            time.Now(),
	}
	var accounts []*exchange.Account
	for i := 0; i < naccounts; i++ {
		id := fmt.Sprintf("account-%d", i)
		b.AccountIDs = append(b.AccountIDs, id)
		accounts = append(accounts, &exchange.Account{ID: id, Name: id, Address: fmt.Sprintf("0x%040d", i)})
	}

	timings, err := timing.NewEmpty(b.ID, new(memTimings), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { timings.Close() })

	c, err := New(b, accounts, venue, timings, &Options{PollInterval: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestDriftRecreate(t *testing.T) {
	ctx := context.Background()
	venue := newFakeVenue()
	c := newTestController(t, 2, venue)

	// Only one account holds the asset.
	venue.setPosition("account-0", "BTC", 10, 2)

	c.poll(ctx)
	c.wg.Wait()

	if _, _, recreates := venue.counts(); recreates != 1 {
		t.Fatalf("wanted 1 recreate, got %d", recreates)
	}
	if v := venue.lastParams.Size; !v.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("wanted nominal size 5, got %s", v)
	}
	if v := venue.lastParams.SizeDecimals; v != 4 {
		t.Fatalf("wanted size decimals 4 for recreate, got %d", v)
	}
	units := c.Units()
	if len(units) != 1 || len(units[0].Legs) != 2 {
		t.Fatalf("wanted one unit with two legs, got %v", units)
	}
	tm, ok := c.timings.Get("BTC")
	if !ok {
		t.Fatalf("wanted timing for BTC after recreate")
	}
	if tm.RecreateTiming != time.Hour {
		t.Fatalf("wanted batch default recreate timing, got %s", tm.RecreateTiming)
	}

	// Re-polling a healthy unit is a no-op.
	c.poll(ctx)
	c.wg.Wait()
	if _, _, recreates := venue.counts(); recreates != 1 {
		t.Fatalf("wanted no more recreates, got %d", recreates)
	}
}

func TestTimingRecreate(t *testing.T) {
	ctx := context.Background()
	venue := newFakeVenue()
	c := newTestController(t, 2, venue)

	venue.setPosition("account-0", "ETH", 4, 2)
	venue.setPosition("account-1", "ETH", -4, 2)

	c.timings.SetUnitTiming("ETH", &gobs.UnitTiming{
		OpenedTiming:   time.Now(),
		RecreateTiming: time.Minute,
	})
	c.poll(ctx)
	c.wg.Wait()
	if _, _, recreates := venue.counts(); recreates != 0 {
		t.Fatalf("wanted no recreate before the timing, got %d", recreates)
	}

	c.timings.SetUnitTiming("ETH", &gobs.UnitTiming{
		OpenedTiming:   time.Now().Add(-time.Minute - 2*time.Second),
		RecreateTiming: time.Minute,
	})
	c.poll(ctx)
	c.wg.Wait()
	if _, _, recreates := venue.counts(); recreates != 1 {
		t.Fatalf("wanted 1 recreate after the timing, got %d", recreates)
	}

	tm, _ := c.timings.Get("ETH")
	if tm.RecreateTiming != time.Minute {
		t.Fatalf("wanted recreate timing to be preserved, got %s", tm.RecreateTiming)
	}
	if time.Since(tm.OpenedTiming) > time.Minute {
		t.Fatalf("wanted opened timing to be replaced, got %s", tm.OpenedTiming)
	}
}

func TestMutualExclusion(t *testing.T) {
	ctx := context.Background()
	venue := newFakeVenue()
	venue.block = make(chan struct{})
	c := newTestController(t, 2, venue)

	venue.setPosition("account-0", "SOL", 10, 1)

	c.poll(ctx)
	if s := c.Status("SOL"); s != StatusRecreating {
		t.Fatalf("wanted %s, got %s", StatusRecreating, s)
	}

	// Next tick must skip the asset.
	c.poll(ctx)

	if err := c.CloseUnit(ctx, "SOL"); !errors.Is(err, os.ErrExist) {
		t.Fatalf("wanted ErrExist for close, got %v", err)
	}
	if err := c.CreateUnit(ctx, &unit.Request{Asset: "SOL", Size: decimal.NewFromInt(1), Leverage: 1}); !errors.Is(err, os.ErrExist) {
		t.Fatalf("wanted ErrExist for create, got %v", err)
	}
	if err := c.CanClose(ctx); !errors.Is(err, os.ErrExist) {
		t.Fatalf("wanted ErrExist for close batch, got %v", err)
	}

	close(venue.block)
	c.wg.Wait()

	if _, closes, recreates := venue.counts(); recreates != 1 || closes != 0 {
		t.Fatalf("wanted 1 recreate and 0 closes, got %d and %d", recreates, closes)
	}
	if s := c.Status("SOL"); s != StatusOpen {
		t.Fatalf("wanted %s, got %s", StatusOpen, s)
	}
}

func TestCreateCloseUnit(t *testing.T) {
	ctx := context.Background()
	venue := newFakeVenue()
	venue.decimalsErr = os.ErrNotExist
	c := newTestController(t, 2, venue)

	events, err := c.Notifications()
	if err != nil {
		t.Fatal(err)
	}
	defer events.Close()

	req := &unit.Request{Asset: "doge", Size: decimal.RequireFromString("2.7"), Leverage: 3, RecreateTiming: 30 * time.Minute}
	if err := c.CreateUnit(ctx, req); err != nil {
		t.Fatal(err)
	}
	// Decimals lookup failure truncates to whole units.
	if v := venue.lastParams.Size; !v.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("wanted size 2, got %s", v)
	}
	if v := venue.lastParams.SizeDecimals; v != 0 {
		t.Fatalf("wanted size decimals 0, got %d", v)
	}
	if tm, ok := c.timings.Get("DOGE"); !ok || tm.RecreateTiming != 30*time.Minute {
		t.Fatalf("wanted 30m recreate timing, got %v", tm)
	}

	for _, want := range []string{EventPending, EventSuccess} {
		e, err := events.Receive()
		if err != nil {
			t.Fatal(err)
		}
		if e.Status != want || e.Asset != "DOGE" || e.Action != ActionCreate {
			t.Fatalf("wanted %s create event for DOGE, got %#v", want, e)
		}
	}

	if err := c.CanClose(ctx); !errors.Is(err, os.ErrExist) {
		t.Fatalf("wanted ErrExist with an open unit, got %v", err)
	}
	if err := c.CreateUnit(ctx, req); !errors.Is(err, os.ErrExist) {
		t.Fatalf("wanted ErrExist for duplicate unit, got %v", err)
	}

	if err := c.CloseUnit(ctx, "DOGE"); err != nil {
		t.Fatal(err)
	}
	if err := c.CloseUnit(ctx, "DOGE"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("wanted ErrNotExist, got %v", err)
	}
	if err := c.CanClose(ctx); err != nil {
		t.Fatalf("wanted batch to be closable, got %v", err)
	}
}

func TestCreateUnitFailure(t *testing.T) {
	ctx := context.Background()
	venue := newFakeVenue()
	venue.createErr = errors.New("insufficient margin")
	c := newTestController(t, 2, venue)

	req := &unit.Request{Asset: "BTC", Size: decimal.NewFromInt(1), Leverage: 1, RecreateTiming: time.Minute}
	if err := c.CreateUnit(ctx, req); err == nil {
		t.Fatalf("wanted create to fail")
	}
	if s := c.Status("BTC"); s != StatusIdle {
		t.Fatalf("wanted %s, got %s", StatusIdle, s)
	}
	if _, ok := c.timings.Get("BTC"); ok {
		t.Fatalf("wanted no timing after a failed create")
	}
	if creates, _, _ := venue.counts(); creates != 1 {
		t.Fatalf("wanted no retries, got %d creates", creates)
	}
}

func TestSizing(t *testing.T) {
	ctx := context.Background()

	// price*size*leverage*0.1 = 100*0.1*5*0.1 = 5
	req := func() *unit.Request {
		return &unit.Request{Asset: "BTC", Size: decimal.RequireFromString("0.1"), Leverage: 5, RecreateTiming: time.Minute}
	}

	venue4 := newFakeVenue()
	c4 := newTestController(t, 4, venue4)
	if err := c4.CreateUnit(ctx, req()); !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("wanted ErrInvalid for four accounts, got %v", err)
	}
	if creates, _, _ := venue4.counts(); creates != 0 {
		t.Fatalf("wanted no venue create, got %d", creates)
	}

	venue2 := newFakeVenue()
	c2 := newTestController(t, 2, venue2)
	if err := c2.CreateUnit(ctx, req()); err != nil {
		t.Fatalf("wanted two accounts to skip the sizing guard, got %v", err)
	}
}

func TestImportUnits(t *testing.T) {
	ctx := context.Background()
	venue := newFakeVenue()
	c := newTestController(t, 2, venue)

	reqs, err := c.ImportUnits(ctx, "BTC:0.5:3:60\ninvalid-line\nETH:2:1:30")
	if err != nil {
		t.Fatal(err)
	}
	if len(reqs) != 2 {
		t.Fatalf("wanted 2 dispatched requests, got %d", len(reqs))
	}
	c.wg.Wait()

	units := c.Units()
	if len(units) != 2 || units[0].Asset != "BTC" || units[1].Asset != "ETH" {
		t.Fatalf("wanted BTC and ETH units, got %v", units)
	}
	if tm, ok := c.timings.Get("ETH"); !ok || tm.RecreateTiming != 30*time.Minute {
		t.Fatalf("wanted 30m timing for ETH, got %v", tm)
	}

	if _, err := c.ImportUnits(ctx, "garbage"); !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("wanted ErrInvalid, got %v", err)
	}
}

func TestSetTiming(t *testing.T) {
	ctx := context.Background()
	venue := newFakeVenue()
	c := newTestController(t, 2, venue)

	opened := time.Now().Add(-time.Minute)
	c.timings.SetUnitTiming("BTC", &gobs.UnitTiming{OpenedTiming: opened, RecreateTiming: time.Hour})

	if err := c.SetTiming(ctx, "btc", 10*time.Minute); err != nil {
		t.Fatal(err)
	}
	tm, _ := c.timings.Get("BTC")
	if tm.RecreateTiming != 10*time.Minute || !tm.OpenedTiming.Equal(opened) {
		t.Fatalf("wanted 10m timing with the old opened time, got %v", tm)
	}
	if err := c.SetTiming(ctx, "BTC", 0); !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("wanted ErrInvalid, got %v", err)
	}
}

func TestImportUnitsPartialFailure(t *testing.T) {
	ctx := context.Background()
	venue := newFakeVenue()
	venue.failAssets = map[string]error{"ETH": errors.New("order rejected")}
	c := newTestController(t, 2, venue)

	events, err := c.Notifications()
	if err != nil {
		t.Fatal(err)
	}
	defer events.Close()

	reqs, err := c.ImportUnits(ctx, "BTC:1:1:60\nETH:1:1:30\nSOL:1:1:10")
	if err != nil {
		t.Fatal(err)
	}
	if len(reqs) != 3 {
		t.Fatalf("wanted 3 dispatched requests, got %d", len(reqs))
	}
	c.wg.Wait()

	units := c.Units()
	if len(units) != 2 || units[0].Asset != "BTC" || units[1].Asset != "SOL" {
		t.Fatalf("wanted BTC and SOL units, got %v", units)
	}
	if _, ok := c.timings.Get("ETH"); ok {
		t.Fatalf("wanted no timing for the failed ETH unit")
	}

	got := make(map[string][]string)
	for i := 0; i < 6; i++ {
		e, err := events.Receive()
		if err != nil {
			t.Fatal(err)
		}
		got[e.Asset] = append(got[e.Asset], e.Status)
	}
	want := map[string]string{"BTC": EventSuccess, "ETH": EventError, "SOL": EventSuccess}
	for asset, status := range want {
		if v := got[asset]; len(v) != 2 || v[0] != EventPending || v[1] != status {
			t.Fatalf("wanted pending and %s events for %s, got %v", status, asset, v)
		}
	}
}

func TestRecreateFailureRetried(t *testing.T) {
	ctx := context.Background()
	venue := newFakeVenue()
	venue.recreateErr = errors.New("venue unavailable")
	c := newTestController(t, 2, venue)

	venue.setPosition("account-0", "ETH", 4, 2)
	venue.setPosition("account-1", "ETH", -4, 2)

	opened := time.Now().Add(-2 * time.Minute)
	c.timings.SetUnitTiming("ETH", &gobs.UnitTiming{OpenedTiming: opened, RecreateTiming: time.Minute})

	c.poll(ctx)
	c.wg.Wait()
	if _, _, recreates := venue.counts(); recreates != 1 {
		t.Fatalf("wanted 1 recreate attempt, got %d", recreates)
	}
	if tm, _ := c.timings.Get("ETH"); !tm.OpenedTiming.Equal(opened) {
		t.Fatalf("wanted stale opened timing after a failed recreate, got %s", tm.OpenedTiming)
	}
	if s := c.Status("ETH"); s != StatusOpen {
		t.Fatalf("wanted %s, got %s", StatusOpen, s)
	}

	// Next tick evaluates the unit again.
	venue.mu.Lock()
	venue.recreateErr = nil
	venue.mu.Unlock()

	c.poll(ctx)
	c.wg.Wait()
	if _, _, recreates := venue.counts(); recreates != 2 {
		t.Fatalf("wanted a second recreate attempt, got %d", recreates)
	}
	if tm, _ := c.timings.Get("ETH"); !tm.OpenedTiming.After(opened) || tm.RecreateTiming != time.Minute {
		t.Fatalf("wanted new opened timing with the same recreate timing, got %v", tm)
	}
}

func TestUnrecreatableUnitIsReported(t *testing.T) {
	ctx := context.Background()
	venue := newFakeVenue()
	c := newTestController(t, 2, venue)

	// Nominal size floor(1/3) is zero.
	venue.setPosition("account-0", "BTC", 1, 3)

	events, err := c.Notifications()
	if err != nil {
		t.Fatal(err)
	}
	defer events.Close()

	c.poll(ctx)
	c.wg.Wait()

	if _, closes, recreates := venue.counts(); closes != 1 || recreates != 0 {
		t.Fatalf("wanted 1 close and no recreates, got %d and %d", closes, recreates)
	}
	var got []string
	for i := 0; i < 3; i++ {
		e, err := events.Receive()
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, e.Action+"/"+e.Status)
	}
	want := []string{ActionRecreate + "/" + EventError, ActionClose + "/" + EventPending, ActionClose + "/" + EventSuccess}
	if !slices.Equal(got, want) {
		t.Fatalf("wanted events %v, got %v", want, got)
	}
}

func TestCloseUnitFailureRefreshes(t *testing.T) {
	ctx := context.Background()
	venue := newFakeVenue()
	c := newTestController(t, 2, venue)

	venue.setPosition("account-0", "ETH", 4, 2)
	venue.setPosition("account-1", "ETH", -4, 2)
	venue.closeErr = errors.New("partially closed")

	if err := c.CloseUnit(ctx, "ETH"); err == nil {
		t.Fatalf("wanted close to fail")
	}
	units := c.Units()
	if len(units) != 1 || len(units[0].Legs) != 1 {
		t.Fatalf("wanted the refreshed unit with one leg, got %v", units)
	}
}

func TestCloseWaitsForActions(t *testing.T) {
	ctx := context.Background()
	venue := newFakeVenue()
	venue.block = make(chan struct{})
	c := newTestController(t, 2, venue)

	venue.setPosition("account-0", "SOL", 10, 1)

	c.poll(ctx)
	if s := c.Status("SOL"); s != StatusRecreating {
		t.Fatalf("wanted %s, got %s", StatusRecreating, s)
	}

	time.AfterFunc(100*time.Millisecond, func() { close(venue.block) })
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	if _, _, recreates := venue.counts(); recreates != 1 {
		t.Fatalf("wanted the in-flight recreate to complete, got %d", recreates)
	}
	states, err := venue.GetUnitUserStates(ctx, c.accounts)
	if err != nil {
		t.Fatal(err)
	}
	for i, s := range states {
		if len(s.Positions) != 1 {
			t.Fatalf("wanted SOL position on account %d, got %v", i, s.Positions)
		}
	}
	if tm, ok := c.timings.Get("SOL"); !ok || time.Since(tm.OpenedTiming) > time.Minute {
		t.Fatalf("wanted fresh timing after the recreate, got %v", tm)
	}

	err = c.CreateUnit(ctx, &unit.Request{Asset: "ETH", Size: decimal.NewFromInt(1), Leverage: 1})
	if !errors.Is(err, os.ErrClosed) {
		t.Fatalf("wanted os.ErrClosed after close, got %v", err)
	}
}
