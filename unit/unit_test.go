// Copyright (c) 2025 BVK Chaitanya

package unit

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/bvk/unitbot/exchange"
	"github.com/bvk/unitbot/gobs"
	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestProject(t *testing.T) {
	states := []*exchange.AccountState{
		{
			AccountID: "a1",
			Positions: []*exchange.Position{
				{Asset: "ETH", Size: d("10"), Leverage: 3},
				{Asset: "BTC", Size: d("7.5"), Leverage: 2},
			},
		},
		{
			AccountID: "a2",
			Positions: []*exchange.Position{
				{Asset: "ETH", Size: d("-10"), Leverage: 3, LiquidationPrice: decimal.NewNullDecimal(d("4100.5"))},
			},
		},
		nil,
	}
	units := Project(states)
	if len(units) != 2 {
		t.Fatalf("wanted 2 units, got %d", len(units))
	}
	btc, eth := units[0], units[1]
	if btc.Asset != "BTC" || eth.Asset != "ETH" {
		t.Fatalf("wanted BTC and ETH sorted, got %s and %s", btc.Asset, eth.Asset)
	}
	if !eth.Size.Equal(d("3")) || eth.Leverage != 3 {
		t.Fatalf("wanted ETH size 3 at 3x, got %s at %dx", eth.Size, eth.Leverage)
	}
	if !btc.Size.Equal(d("3")) {
		t.Fatalf("wanted BTC size 3, got %s", btc.Size)
	}
	if len(eth.Legs) != 2 || len(btc.Legs) != 1 {
		t.Fatalf("wanted 2 ETH legs and 1 BTC leg, got %d and %d", len(eth.Legs), len(btc.Legs))
	}
	if leg := eth.Legs[1]; leg.AccountID != "a2" || !leg.Size.Equal(d("-10")) || !leg.LiquidationPrice.Valid {
		t.Fatalf("unexpected second ETH leg %+v", leg)
	}
	if !btc.IsDrifted(2) || eth.IsDrifted(2) {
		t.Fatalf("wanted only BTC to be drifted")
	}

	if units := Project(nil); len(units) != 0 {
		t.Fatalf("wanted no units, got %d", len(units))
	}
}

func TestParseImport(t *testing.T) {
	reqs := ParseImport("BTC:0.5:3:60\ninvalid-line\nETH:2:1:30")
	if len(reqs) != 2 {
		t.Fatalf("wanted 2 requests, got %d", len(reqs))
	}
	if reqs[0].Asset != "BTC" || !reqs[0].Size.Equal(d("0.5")) || reqs[0].Leverage != 3 || reqs[0].RecreateTiming != time.Hour {
		t.Fatalf("unexpected BTC request %+v", reqs[0])
	}
	if reqs[1].Asset != "ETH" || reqs[1].RecreateTiming != 30*time.Minute {
		t.Fatalf("unexpected ETH request %+v", reqs[1])
	}

	reqs = ParseImport(" sol : 1 : 2 : 0.5 \n\nDOGE:0:1:10\nXRP:1:x:10\nAVAX:1:1:-1\n:1:1:1")
	if len(reqs) != 1 {
		t.Fatalf("wanted 1 request, got %d", len(reqs))
	}
	if reqs[0].Asset != "SOL" || reqs[0].RecreateTiming != 30*time.Second {
		t.Fatalf("unexpected SOL request %+v", reqs[0])
	}
}

func TestCheckSizing(t *testing.T) {
	// 20 * 2 * 2 * 0.1 = 8 < 10
	if err := CheckSizing(4, d("20"), d("2"), 2); !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("wanted os.ErrInvalid for 4 accounts, got %v", err)
	}
	if err := CheckSizing(2, d("20"), d("2"), 2); err != nil {
		t.Fatalf("wanted nil for 2 accounts, got %v", err)
	}
	// 25 * 2 * 2 * 0.1 = 10
	if err := CheckSizing(6, d("25"), d("2"), 2); err != nil {
		t.Fatalf("wanted nil at the threshold, got %v", err)
	}
}

func TestNeedsRecreate(t *testing.T) {
	const interval = 2500 * time.Millisecond
	opened := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	timing := &gobs.UnitTiming{OpenedTiming: opened, RecreateTiming: time.Minute}
	u := &Unit{Asset: "ETH", Legs: []*Leg{{AccountID: "a1"}, {AccountID: "a2"}}}

	if r := NeedsRecreate(u, 2, timing, opened.Add(time.Minute), interval); r != ReasonNone {
		t.Fatalf("wanted no action before the interval grace, got %q", r)
	}
	if r := NeedsRecreate(u, 2, timing, opened.Add(time.Minute+interval), interval); r != ReasonExpired {
		t.Fatalf("wanted expired at exactly recreate timing, got %q", r)
	}
	if r := NeedsRecreate(u, 2, timing, opened.Add(time.Minute+interval-time.Millisecond), interval); r != ReasonNone {
		t.Fatalf("wanted no action just below recreate timing, got %q", r)
	}
	if r := NeedsRecreate(u, 4, timing, opened, interval); r != ReasonDrift {
		t.Fatalf("wanted drift, got %q", r)
	}
	if r := NeedsRecreate(u, 2, nil, opened.Add(24*time.Hour), interval); r != ReasonNone {
		t.Fatalf("wanted no action without timing, got %q", r)
	}
}
