// Copyright (c) 2023 BVK Chaitanya

package server

import (
	"context"
	"fmt"
	"time"

	"github.com/bvk/unitbot/batch"
	"github.com/shopspring/decimal"
)

func (s *Server) checkLowBalances(ctx context.Context, m *monitor, snap *batch.Snapshot) {
	if !s.opts.LowBalanceLimit.IsPositive() {
		return
	}
	for id, amount := range snap.Balances {
		name := m.accountNames[id]
		if name == "" {
			name = id
		}
		s.alertOnLowBalance(ctx, m.batch.Name, name, amount)
	}
}

func (s *Server) alertOnLowBalance(ctx context.Context, batchName, account string, amount decimal.Decimal) bool {
	now := time.Now()
	key := fmt.Sprintf("alerts/low-balance-alert/%s/%s", batchName, account)

	s.alertMu.Lock()
	defer s.alertMu.Unlock()

	if deadline, ok := s.alertFreezeDeadlineMap[key]; ok {
		if now.Before(deadline) {
			return false
		}
		delete(s.alertFreezeDeadlineMap, key)
	}

	limit := s.opts.LowBalanceLimit
	if amount.GreaterThan(limit) {
		return false
	}
	s.SendMessage(ctx, now,
		"Account value %s of %q in batch %s is below the limit %s.",
		amount.StringFixed(2), account, batchName, limit)
	s.alertFreezeDeadlineMap[key] = now.Add(s.opts.AlertFreezeInterval)
	return true
}
