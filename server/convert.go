// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"github.com/bvk/unitbot/api"
	"github.com/bvk/unitbot/batch"
	"github.com/bvk/unitbot/gobs"
	"github.com/shopspring/decimal"
)

func toProxyInfo(p *gobs.Proxy, account string) *api.ProxyInfo {
	return &api.ProxyInfo{
		ID:       p.ID,
		Name:     p.Name,
		Host:     p.Host,
		Port:     p.Port,
		Username: p.Username,
		Account:  account,
	}
}

func toAccountInfo(a *gobs.Account, proxyNames, batchNames map[string]string) *api.AccountInfo {
	return &api.AccountInfo{
		ID:         a.ID,
		Name:       a.Name,
		Address:    a.Address,
		Proxy:      proxyNames[a.ProxyID],
		Batch:      batchNames[a.BatchID],
		CreateTime: a.CreateTime,
	}
}

func toBatchInfo(b *gobs.Batch, accountNames map[string]string, state string) *api.BatchInfo {
	info := &api.BatchInfo{
		ID:                    b.ID,
		Name:                  b.Name,
		DefaultRecreateTiming: b.DefaultRecreateTiming,
		SmartBalanceUsage:     b.SmartBalanceUsage,
		State:                 state,
		CreateTime:            b.CreateTime,
	}
	for _, id := range b.AccountIDs {
		if name, ok := accountNames[id]; ok {
			info.Accounts = append(info.Accounts, name)
		} else {
			info.Accounts = append(info.Accounts, id)
		}
	}
	return info
}

func toAPISnapshot(snap *batch.Snapshot, accountNames map[string]string) *api.Snapshot {
	name := func(id string) string {
		if v, ok := accountNames[id]; ok {
			return v
		}
		return id
	}

	v := &api.Snapshot{
		BatchID:   snap.BatchID,
		BatchName: snap.BatchName,
		Time:      snap.Time,
		Statuses:  make(map[string]string),
		Balances:  make(map[string]decimal.Decimal),
	}
	held := make(map[string]bool)
	for _, u := range snap.Units {
		held[u.Asset] = true
		info := &api.UnitInfo{
			Asset:    u.Asset,
			Size:     u.Size,
			Leverage: u.Leverage,
			Status:   string(snap.Statuses[u.Asset]),
		}
		if t, ok := snap.Timings[u.Asset]; ok && t != nil {
			info.OpenedTime = t.OpenedTiming
			info.RecreateTiming = t.RecreateTiming
		}
		for _, leg := range u.Legs {
			info.Legs = append(info.Legs, &api.LegInfo{
				Account:          name(leg.AccountID),
				Size:             leg.Size,
				LiquidationPrice: leg.LiquidationPrice,
			})
		}
		v.Units = append(v.Units, info)
	}
	for asset, st := range snap.Statuses {
		if !held[asset] {
			v.Statuses[asset] = string(st)
		}
	}
	for id, amount := range snap.Balances {
		v.Balances[name(id)] = amount
	}
	return v
}
