// Copyright (c) 2025 BVK Chaitanya

package hyperliquid

import (
	"cmp"
	"fmt"
	"math/rand/v2"
	"os"
	"slices"

	"github.com/shopspring/decimal"
)

const minThinShare = 20

// leg is the planned order for one account of a unit.
type leg struct {
	account int
	isBuy   bool
	share   int
	size    decimal.Decimal
}

// fatShares returns the percentages of the legs on the larger side.
func fatShares(rng *rand.Rand, n int) []int {
	switch n {
	case 1:
		return []int{100}
	case 2:
		k := 40 + rng.IntN(21)
		return []int{k, 100 - k}
	}
	return nil
}

// thinShares returns n percentages, each at least minThinShare, that sum to
// 100.
func thinShares(rng *rand.Rand, n int) []int {
	shares := make([]int, 0, n)
	remaining := 100
	for i := 0; i < n-1; i++ {
		upper := remaining - minThinShare*(n-1-i)
		k := minThinShare + rng.IntN(upper-minThinShare+1)
		shares = append(shares, k)
		remaining -= k
	}
	return append(shares, remaining)
}

// planLegs splits the total unit size across the accounts. Two account units
// are a plain long/short pair with the first account buying. Larger units
// put one or two fat legs against the remaining thin legs; the fat side is
// picked randomly. When balances are non-nil, larger shares are placed on the
// accounts with larger balances, otherwise the shares are shuffled.
func planLegs(rng *rand.Rand, total decimal.Decimal, szDecimals int, balances []decimal.Decimal, naccounts int) ([]*leg, error) {
	var nfat int
	switch naccounts {
	case 2, 4:
		nfat = 1
	case 6:
		nfat = 2
	default:
		return nil, fmt.Errorf("unsupported number of accounts %d: %w", naccounts, os.ErrInvalid)
	}

	fatIsBuy := true
	if naccounts > 2 {
		fatIsBuy = rng.IntN(2) == 0
	}
	var legs []*leg
	for _, k := range fatShares(rng, nfat) {
		legs = append(legs, &leg{isBuy: fatIsBuy, share: k})
	}
	for _, k := range thinShares(rng, naccounts-nfat) {
		legs = append(legs, &leg{isBuy: !fatIsBuy, share: k})
	}

	accounts := make([]int, naccounts)
	for i := range accounts {
		accounts[i] = i
	}
	if naccounts > 2 {
		if balances != nil {
			slices.SortStableFunc(legs, func(a, b *leg) int { return cmp.Compare(b.share, a.share) })
			slices.SortStableFunc(accounts, func(a, b int) int { return balances[b].Cmp(balances[a]) })
		} else {
			rng.Shuffle(len(legs), func(i, j int) { legs[i], legs[j] = legs[j], legs[i] })
		}
	}

	hundred := decimal.NewFromInt(100)
	for i, l := range legs {
		l.account = accounts[i]
		l.size = total.Mul(decimal.NewFromInt(int64(l.share))).Div(hundred).Round(int32(szDecimals))
		if !l.size.IsPositive() {
			return nil, fmt.Errorf("leg size for %d%% of %s rounds to zero: %w", l.share, total, os.ErrInvalid)
		}
	}
	slices.SortFunc(legs, func(a, b *leg) int { return cmp.Compare(a.account, b.account) })
	return legs, nil
}
