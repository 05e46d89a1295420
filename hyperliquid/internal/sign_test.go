// Copyright (c) 2025 BVK Chaitanya

package internal

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const testKey = "0x4c0883a69102937d6231471b5dbb6204fe512961708279f3c5e2ad9b4d8e1f01"

func testOrderAction() *OrderAction {
	return &OrderAction{
		Type: "order",
		Orders: []*OrderWire{{
			Asset:     1,
			IsBuy:     true,
			LimitPx:   "3456.8",
			Size:      "0.25",
			OrderType: OrderType{Limit: &LimitOrderType{Tif: "FrontendMarket"}},
		}},
		Grouping: "na",
	}
}

func TestActionHash(t *testing.T) {
	a, err := ActionHash(testOrderAction(), 1700000000000)
	if err != nil {
		t.Fatal(err)
	}
	b, err := ActionHash(testOrderAction(), 1700000000000)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) || len(a) != 32 {
		t.Fatalf("wanted a stable 32 byte hash, got %x and %x", a, b)
	}
	c, err := ActionHash(testOrderAction(), 1700000000001)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a, c) {
		t.Fatalf("wanted different hashes for different nonces")
	}
}

func TestSignAction(t *testing.T) {
	key, err := ParsePrivateKey(testKey)
	if err != nil {
		t.Fatal(err)
	}
	action := testOrderAction()
	const nonce = 1700000000000

	for _, testnet := range []bool{false, true} {
		sig, err := SignAction(key, action, nonce, testnet)
		if err != nil {
			t.Fatal(err)
		}
		if sig.V != 27 && sig.V != 28 {
			t.Fatalf("wanted v in {27, 28}, got %d", sig.V)
		}
		r, err := hexutil.DecodeBig(sig.R)
		if err != nil {
			t.Fatal(err)
		}
		s, err := hexutil.DecodeBig(sig.S)
		if err != nil {
			t.Fatal(err)
		}
		raw := make([]byte, 65)
		r.FillBytes(raw[:32])
		s.FillBytes(raw[32:64])
		raw[64] = byte(sig.V - 27)

		connectionID, err := ActionHash(action, nonce)
		if err != nil {
			t.Fatal(err)
		}
		pub, err := crypto.SigToPub(AgentDigest(connectionID, testnet), raw)
		if err != nil {
			t.Fatal(err)
		}
		if got, want := crypto.PubkeyToAddress(*pub).Hex(), KeyAddress(key); got != want {
			t.Fatalf("wanted signer %s, got %s", want, got)
		}
	}

	if bytes.Equal(AgentDigest(make([]byte, 32), false), AgentDigest(make([]byte, 32), true)) {
		t.Fatalf("wanted mainnet and testnet digests to differ")
	}
}
