// Copyright (c) 2025 BVK Chaitanya

package hyperliquid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/bvk/unitbot/exchange"
	"github.com/bvk/unitbot/hyperliquid/internal"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

var testKeys = []string{
	"4c0883a69102937d6231471b5dbb6204fe512961708279f3c5e2ad9b4d8e1f01",
	"4c0883a69102937d6231471b5dbb6204fe512961708279f3c5e2ad9b4d8e1f02",
	"4c0883a69102937d6231471b5dbb6204fe512961708279f3c5e2ad9b4d8e1f03",
	"4c0883a69102937d6231471b5dbb6204fe512961708279f3c5e2ad9b4d8e1f04",
}

// fakeExchange keeps per-address positions and fills every order fully.
type fakeExchange struct {
	mu sync.Mutex

	positions map[string]map[string]decimal.Decimal
	leverage  map[string]int
	balance   decimal.Decimal

	// reject holds addresses whose opening orders are rejected.
	reject map[string]bool

	orders int
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		positions: make(map[string]map[string]decimal.Decimal),
		leverage:  make(map[string]int),
		balance:   decimal.NewFromInt(100000),
		reject:    make(map[string]bool),
	}
}

func recoverSigner(action any, nonce uint64, sig *internal.Signature) (string, error) {
	connectionID, err := internal.ActionHash(action, nonce)
	if err != nil {
		return "", err
	}
	r, err := hexutil.DecodeBig(sig.R)
	if err != nil {
		return "", err
	}
	s, err := hexutil.DecodeBig(sig.S)
	if err != nil {
		return "", err
	}
	raw := make([]byte, 65)
	r.FillBytes(raw[:32])
	s.FillBytes(raw[32:64])
	raw[64] = byte(sig.V - 27)
	pub, err := crypto.SigToPub(internal.AgentDigest(connectionID, false), raw)
	if err != nil {
		return "", err
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}

func (f *fakeExchange) handleInfo(w http.ResponseWriter, r *http.Request) {
	req := new(internal.InfoRequest)
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	switch req.Type {
	case "meta":
		fmt.Fprint(w, `{"universe":[{"name":"BTC","szDecimals":5,"maxLeverage":50},{"name":"ETH","szDecimals":4,"maxLeverage":25}]}`)
	case "allMids":
		fmt.Fprint(w, `{"BTC":"65000","ETH":"2000"}`)
	case "clearinghouseState":
		resp := &internal.ClearinghouseState{
			MarginSummary: internal.MarginSummary{AccountValue: f.balance},
		}
		for coin, szi := range f.positions[req.User] {
			resp.AssetPositions = append(resp.AssetPositions, &internal.AssetPosition{
				Type: "oneWay",
				Position: internal.Position{
					Coin:     coin,
					Szi:      szi,
					Leverage: internal.Leverage{Type: "cross", Value: f.leverage[req.User]},
				},
			})
		}
		json.NewEncoder(w).Encode(resp)
	}
}

func (f *fakeExchange) handleExchange(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action    json.RawMessage     `json:"action"`
		Nonce     uint64              `json:"nonce"`
		Signature *internal.Signature `json:"signature"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var kind struct{ Type string }
	json.Unmarshal(req.Action, &kind)

	f.mu.Lock()
	defer f.mu.Unlock()

	switch kind.Type {
	case "updateLeverage":
		action := new(internal.UpdateLeverageAction)
		json.Unmarshal(req.Action, action)
		user, err := recoverSigner(action, req.Nonce, req.Signature)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.leverage[user] = action.Leverage
		fmt.Fprint(w, `{"status":"ok","response":{"type":"default"}}`)

	case "order":
		action := new(internal.OrderAction)
		json.Unmarshal(req.Action, action)
		user, err := recoverSigner(action, req.Nonce, req.Signature)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp := new(internal.OrderResponse)
		resp.Type = "order"
		for _, o := range action.Orders {
			f.orders++
			if f.reject[user] && !o.ReduceOnly {
				resp.Data.Statuses = append(resp.Data.Statuses, &internal.OrderStatus{Error: "Insufficient margin to place order."})
				continue
			}
			coin := []string{"BTC", "ETH"}[o.Asset]
			sz := decimal.RequireFromString(o.Size)
			if f.positions[user] == nil {
				f.positions[user] = make(map[string]decimal.Decimal)
			}
			cur := f.positions[user][coin]
			if o.IsBuy {
				cur = cur.Add(sz)
			} else {
				cur = cur.Sub(sz)
			}
			if cur.IsZero() {
				delete(f.positions[user], coin)
			} else {
				f.positions[user][coin] = cur
			}
			resp.Data.Statuses = append(resp.Data.Statuses, &internal.OrderStatus{
				Filled: &internal.FilledStatus{TotalSz: sz, AvgPx: decimal.NewFromInt(2000), Oid: int64(f.orders)},
			})
		}
		data, _ := json.Marshal(resp)
		fmt.Fprintf(w, `{"status":"ok","response":%s}`, data)
	}
}

func newTestVenue(t *testing.T, n int) (*Venue, *fakeExchange, []*exchange.Account) {
	f := newFakeExchange()
	mux := http.NewServeMux()
	mux.HandleFunc("/info", f.handleInfo)
	mux.HandleFunc("/exchange", f.handleExchange)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	v, err := New(&Options{RestURL: srv.URL, CloseRetryInterval: 1, RequestsPerSecond: 1000})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { v.Close() })

	var accounts []*exchange.Account
	for i := 0; i < n; i++ {
		key, err := internal.ParsePrivateKey(testKeys[i])
		if err != nil {
			t.Fatal(err)
		}
		accounts = append(accounts, &exchange.Account{
			ID:         fmt.Sprintf("account-%d", i),
			Name:       fmt.Sprintf("a%d", i),
			Address:    internal.KeyAddress(key),
			PrivateKey: testKeys[i],
		})
	}
	return v, f, accounts
}

func TestCreateCloseUnit(t *testing.T) {
	ctx := context.Background()
	v, f, accounts := newTestVenue(t, 4)

	params := &exchange.UnitParams{Asset: "ETH", Size: decimal.NewFromInt(2), Leverage: 3, SizeDecimals: 4}
	if err := v.CreateUnit(ctx, accounts, params); err != nil {
		t.Fatal(err)
	}
	states, err := v.GetUnitUserStates(ctx, accounts)
	if err != nil {
		t.Fatal(err)
	}
	var sum, gross decimal.Decimal
	for i, s := range states {
		p := s.Position("ETH")
		if p == nil {
			t.Fatalf("wanted ETH position on account %d", i)
		}
		if p.Leverage != 3 {
			t.Fatalf("wanted leverage 3, got %d", p.Leverage)
		}
		sum = sum.Add(p.Size)
		gross = gross.Add(p.Size.Abs())
	}
	if !sum.IsZero() || !gross.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("wanted a neutral unit with gross size 12, got net %s gross %s", sum, gross)
	}

	if err := v.CreateUnit(ctx, accounts, params); !errors.Is(err, os.ErrExist) {
		t.Fatalf("wanted os.ErrExist for an existing unit, got %v", err)
	}

	if err := v.CloseAndRecreateUnit(ctx, accounts, params); err != nil {
		t.Fatal(err)
	}

	if err := v.CloseUnit(ctx, accounts, "ETH"); err != nil {
		t.Fatal(err)
	}
	f.mu.Lock()
	for addr, ps := range f.positions {
		if len(ps) != 0 {
			t.Fatalf("wanted no positions for %s, got %v", addr, ps)
		}
	}
	f.mu.Unlock()
}

func TestCreateUnitRollback(t *testing.T) {
	ctx := context.Background()
	v, f, accounts := newTestVenue(t, 2)
	f.reject[accounts[1].Address] = true

	err := v.CreateUnit(ctx, accounts, &exchange.UnitParams{Asset: "BTC", Size: decimal.RequireFromString("0.01"), Leverage: 2, SizeDecimals: 5})
	if err == nil || !strings.Contains(err.Error(), "Insufficient margin") {
		t.Fatalf("wanted order rejection error, got %v", err)
	}
	states, err := v.GetUnitUserStates(ctx, accounts)
	if err != nil {
		t.Fatal(err)
	}
	for i, s := range states {
		if len(s.Positions) != 0 {
			t.Fatalf("wanted rolled back positions on account %d, got %v", i, s.Positions)
		}
	}
}

func TestCreateUnitSizeDecimals(t *testing.T) {
	ctx := context.Background()
	v, _, accounts := newTestVenue(t, 2)

	params := &exchange.UnitParams{Asset: "ETH", Size: decimal.RequireFromString("1.23456"), Leverage: 1, SizeDecimals: 2}
	if err := v.CreateUnit(ctx, accounts, params); err != nil {
		t.Fatal(err)
	}
	states, err := v.GetUnitUserStates(ctx, accounts)
	if err != nil {
		t.Fatal(err)
	}
	want := decimal.RequireFromString("1.23")
	for i, s := range states {
		p := s.Position("ETH")
		if p == nil {
			t.Fatalf("wanted ETH position on account %d", i)
		}
		if !p.Size.Abs().Equal(want) {
			t.Fatalf("wanted leg size %s on account %d, got %s", want, i, p.Size)
		}
	}
}

func TestCreateUnitChecks(t *testing.T) {
	ctx := context.Background()
	v, f, accounts := newTestVenue(t, 2)

	params := &exchange.UnitParams{Asset: "ETH", Size: decimal.NewFromInt(1), Leverage: 30}
	if err := v.CreateUnit(ctx, accounts, params); !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("wanted os.ErrInvalid for leverage above max, got %v", err)
	}

	f.mu.Lock()
	f.balance = decimal.NewFromInt(10)
	f.mu.Unlock()
	params = &exchange.UnitParams{Asset: "ETH", Size: decimal.NewFromInt(1), Leverage: 2}
	if err := v.CreateUnit(ctx, accounts, params); !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("wanted os.ErrInvalid for insufficient balance, got %v", err)
	}

	if err := v.CloseAndRecreateUnit(ctx, accounts, &exchange.UnitParams{Asset: "ETH", Size: decimal.Zero, Leverage: 2}); !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("wanted os.ErrInvalid for zero size, got %v", err)
	}
	f.mu.Lock()
	if f.orders != 0 {
		t.Fatalf("wanted no orders, got %d", f.orders)
	}
	f.mu.Unlock()

	if _, err := v.GetAssetPrice(ctx, accounts[0], "DOGE"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("wanted os.ErrNotExist, got %v", err)
	}
	if d, err := v.GetAssetSizeDecimals(ctx, accounts[0], "BTC"); err != nil || d != 5 {
		t.Fatalf("wanted 5 size decimals, got %d (%v)", d, err)
	}
}
