// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bvk/unitbot/api"
	"github.com/bvk/unitbot/gobs"
	"github.com/bvk/unitbot/timerange"
	"github.com/bvk/unitbot/unit"
)

type nameMaps struct {
	proxies  map[string]string
	accounts map[string]string
	batches  map[string]string

	// proxyUsers maps proxy ids to account names.
	proxyUsers map[string]string
}

func (s *Server) loadNames(ctx context.Context) (*nameMaps, error) {
	v := &nameMaps{
		proxies:    make(map[string]string),
		accounts:   make(map[string]string),
		batches:    make(map[string]string),
		proxyUsers: make(map[string]string),
	}
	proxies, err := s.store.ListProxies(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range proxies {
		v.proxies[p.ID] = p.Name
	}
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		v.accounts[a.ID] = a.Name
		if a.ProxyID != "" {
			v.proxyUsers[a.ProxyID] = a.Name
		}
	}
	batches, err := s.store.ListBatches(ctx)
	if err != nil {
		return nil, err
	}
	for _, b := range batches {
		v.batches[b.ID] = b.Name
	}
	return v, nil
}

func (s *Server) getMonitor(ctx context.Context, nameOrID string) (*monitor, error) {
	b, err := s.store.GetBatch(ctx, nameOrID)
	if err != nil {
		return nil, err
	}
	m, ok := s.monitors.Load(b.ID)
	if !ok {
		return nil, fmt.Errorf("batch %q is not loaded: %w", b.Name, os.ErrNotExist)
	}
	return m, nil
}

func (s *Server) batchState(ctx context.Context, batchID string) string {
	jd, err := s.runner.Get(ctx, nil, batchID)
	if err != nil {
		return ""
	}
	return string(jd.State)
}

func (s *Server) batchInfo(ctx context.Context, b *gobs.Batch) (*api.BatchInfo, error) {
	names, err := s.loadNames(ctx)
	if err != nil {
		return nil, err
	}
	return toBatchInfo(b, names.accounts, s.batchState(ctx, b.ID)), nil
}

func (s *Server) doStatus(ctx context.Context, req *api.StatusRequest) (*api.StatusResponse, error) {
	batches, err := s.doBatchList(ctx, &api.BatchListRequest{})
	if err != nil {
		return nil, err
	}
	resp := &api.StatusResponse{
		Version: version(),
		Uptime:  time.Since(s.startTime),
	}
	for _, b := range batches.Batches {
		st := &api.BatchStatus{Batch: b}
		if m, ok := s.monitors.Load(b.ID); ok {
			st.Snapshot = toAPISnapshot(m.ctl.Snapshot(), m.accountNames)
		}
		resp.Batches = append(resp.Batches, st)
	}
	return resp, nil
}

func (s *Server) doProxyAdd(ctx context.Context, req *api.ProxyAddRequest) (*api.ProxyAddResponse, error) {
	p := &gobs.Proxy{
		Name:     req.Name,
		Host:     req.Host,
		Port:     req.Port,
		Username: req.Username,
		Password: req.Password,
	}
	np, err := s.store.AddProxy(ctx, p)
	if err != nil {
		return nil, err
	}
	return &api.ProxyAddResponse{Proxy: toProxyInfo(np, "")}, nil
}

func (s *Server) doProxyImport(ctx context.Context, req *api.ProxyImportRequest) (*api.ProxyImportResponse, error) {
	proxies, err := s.store.ImportProxies(ctx, req.Text)
	if err != nil {
		return nil, err
	}
	resp := new(api.ProxyImportResponse)
	for _, p := range proxies {
		resp.Proxies = append(resp.Proxies, toProxyInfo(p, ""))
	}
	return resp, nil
}

func (s *Server) doProxyList(ctx context.Context, req *api.ProxyListRequest) (*api.ProxyListResponse, error) {
	names, err := s.loadNames(ctx)
	if err != nil {
		return nil, err
	}
	proxies, err := s.store.ListProxies(ctx)
	if err != nil {
		return nil, err
	}
	resp := new(api.ProxyListResponse)
	for _, p := range proxies {
		resp.Proxies = append(resp.Proxies, toProxyInfo(p, names.proxyUsers[p.ID]))
	}
	return resp, nil
}

func (s *Server) doProxyDelete(ctx context.Context, req *api.ProxyDeleteRequest) (*api.ProxyDeleteResponse, error) {
	p, err := s.store.GetProxy(ctx, req.Proxy)
	if err != nil {
		return nil, err
	}
	names, err := s.loadNames(ctx)
	if err != nil {
		return nil, err
	}
	user := names.proxyUsers[p.ID]

	if err := s.store.DeleteProxy(ctx, p.ID); err != nil {
		return nil, err
	}
	// Account falls back to the default network path.
	if user != "" {
		if err := s.reloadAccountBatch(ctx, user); err != nil {
			slog.Warn("could not reload batch after proxy delete (ignored)", "account", user, "err", err)
		}
	}
	return &api.ProxyDeleteResponse{}, nil
}

func (s *Server) doAccountAdd(ctx context.Context, req *api.AccountAddRequest) (*api.AccountAddResponse, error) {
	a, err := s.store.AddAccount(ctx, req.Name, req.Address, req.PrivateKey, req.Proxy)
	if err != nil {
		return nil, err
	}
	names, err := s.loadNames(ctx)
	if err != nil {
		return nil, err
	}
	return &api.AccountAddResponse{Account: toAccountInfo(a, names.proxies, names.batches)}, nil
}

func (s *Server) doAccountList(ctx context.Context, req *api.AccountListRequest) (*api.AccountListResponse, error) {
	names, err := s.loadNames(ctx)
	if err != nil {
		return nil, err
	}
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	resp := new(api.AccountListResponse)
	for _, a := range accounts {
		resp.Accounts = append(resp.Accounts, toAccountInfo(a, names.proxies, names.batches))
	}
	return resp, nil
}

func (s *Server) doAccountDelete(ctx context.Context, req *api.AccountDeleteRequest) (*api.AccountDeleteResponse, error) {
	if err := s.store.DeleteAccount(ctx, req.Account); err != nil {
		return nil, err
	}
	return &api.AccountDeleteResponse{}, nil
}

func (s *Server) doAccountSetProxy(ctx context.Context, req *api.AccountSetProxyRequest) (*api.AccountSetProxyResponse, error) {
	a, err := s.store.SetAccountProxy(ctx, req.Account, req.Proxy)
	if err != nil {
		return nil, err
	}
	if err := s.reloadAccountBatch(ctx, a.ID); err != nil {
		return nil, fmt.Errorf("proxy is updated, but could not reload the batch: %w", err)
	}
	names, err := s.loadNames(ctx)
	if err != nil {
		return nil, err
	}
	return &api.AccountSetProxyResponse{Account: toAccountInfo(a, names.proxies, names.batches)}, nil
}

func (s *Server) doBatchCreate(ctx context.Context, req *api.BatchCreateRequest) (*api.BatchCreateResponse, error) {
	recreate := unit.MinutesToDuration(req.RecreateMinutes)
	b, err := s.createBatch(ctx, req.Name, req.Accounts, recreate, req.SmartBalanceUsage)
	if err != nil {
		return nil, err
	}
	info, err := s.batchInfo(ctx, b)
	if err != nil {
		return nil, err
	}
	return &api.BatchCreateResponse{Batch: info}, nil
}

func (s *Server) doBatchList(ctx context.Context, req *api.BatchListRequest) (*api.BatchListResponse, error) {
	names, err := s.loadNames(ctx)
	if err != nil {
		return nil, err
	}
	batches, err := s.store.ListBatches(ctx)
	if err != nil {
		return nil, err
	}
	resp := new(api.BatchListResponse)
	for _, b := range batches {
		resp.Batches = append(resp.Batches, toBatchInfo(b, names.accounts, s.batchState(ctx, b.ID)))
	}
	return resp, nil
}

func (s *Server) doBatchGet(ctx context.Context, req *api.BatchGetRequest) (*api.BatchGetResponse, error) {
	m, err := s.getMonitor(ctx, req.Batch)
	if err != nil {
		return nil, err
	}
	info, err := s.batchInfo(ctx, m.batch)
	if err != nil {
		return nil, err
	}
	resp := &api.BatchGetResponse{
		Batch:    info,
		Snapshot: toAPISnapshot(m.ctl.Snapshot(), m.accountNames),
	}
	return resp, nil
}

func (s *Server) doBatchClose(ctx context.Context, req *api.BatchCloseRequest) (*api.BatchCloseResponse, error) {
	if err := s.closeBatch(ctx, req.Batch); err != nil {
		return nil, err
	}
	return &api.BatchCloseResponse{}, nil
}

func (s *Server) doBatchPause(ctx context.Context, req *api.BatchPauseRequest) (*api.BatchPauseResponse, error) {
	b, err := s.store.GetBatch(ctx, req.Batch)
	if err != nil {
		return nil, err
	}
	if err := s.runner.Pause(ctx, b.ID); err != nil {
		return nil, err
	}
	return &api.BatchPauseResponse{FinalState: s.batchState(ctx, b.ID)}, nil
}

func (s *Server) doBatchResume(ctx context.Context, req *api.BatchResumeRequest) (*api.BatchResumeResponse, error) {
	m, err := s.getMonitor(ctx, req.Batch)
	if err != nil {
		return nil, err
	}
	if err := s.runner.Resume(ctx, m.batch.ID, s.makeJobFunc(m.batch.ID), s.lifeCtx); err != nil {
		return nil, err
	}
	return &api.BatchResumeResponse{FinalState: s.batchState(ctx, m.batch.ID)}, nil
}

func (s *Server) doBatchEvents(ctx context.Context, req *api.BatchEventsRequest) (*api.BatchEventsResponse, error) {
	b, err := s.store.GetBatch(ctx, req.Batch)
	if err != nil {
		return nil, err
	}
	r, err := timerange.Parse(req.Range, time.Local)
	if err != nil {
		return nil, err
	}
	events, err := s.store.ListEvents(ctx, b.ID, r)
	if err != nil {
		return nil, err
	}
	return &api.BatchEventsResponse{Events: events}, nil
}

func (s *Server) doBatchSetTiming(ctx context.Context, req *api.BatchSetTimingRequest) (*api.BatchSetTimingResponse, error) {
	m, err := s.getMonitor(ctx, req.Batch)
	if err != nil {
		return nil, err
	}
	if err := m.ctl.SetTiming(ctx, req.Asset, unit.MinutesToDuration(req.Minutes)); err != nil {
		return nil, err
	}
	return &api.BatchSetTimingResponse{}, nil
}

func (s *Server) doUnitList(ctx context.Context, req *api.UnitListRequest) (*api.UnitListResponse, error) {
	m, err := s.getMonitor(ctx, req.Batch)
	if err != nil {
		return nil, err
	}
	snap := toAPISnapshot(m.ctl.Snapshot(), m.accountNames)
	return &api.UnitListResponse{Units: snap.Units}, nil
}

func (s *Server) doUnitCreate(ctx context.Context, req *api.UnitCreateRequest) (*api.UnitCreateResponse, error) {
	m, err := s.getMonitor(ctx, req.Batch)
	if err != nil {
		return nil, err
	}
	if req.Minutes.IsNegative() {
		return nil, fmt.Errorf("minutes cannot be negative: %w", os.ErrInvalid)
	}
	ureq := &unit.Request{
		Asset:          req.Asset,
		Size:           req.Size,
		Leverage:       req.Leverage,
		RecreateTiming: unit.MinutesToDuration(req.Minutes),
	}
	if err := m.ctl.CreateUnit(ctx, ureq); err != nil {
		return nil, err
	}
	return &api.UnitCreateResponse{}, nil
}

func (s *Server) doUnitClose(ctx context.Context, req *api.UnitCloseRequest) (*api.UnitCloseResponse, error) {
	m, err := s.getMonitor(ctx, req.Batch)
	if err != nil {
		return nil, err
	}
	if err := m.ctl.CloseUnit(ctx, req.Asset); err != nil {
		return nil, err
	}
	return &api.UnitCloseResponse{}, nil
}

func (s *Server) doUnitImport(ctx context.Context, req *api.UnitImportRequest) (*api.UnitImportResponse, error) {
	m, err := s.getMonitor(ctx, req.Batch)
	if err != nil {
		return nil, err
	}
	reqs, err := m.ctl.ImportUnits(ctx, req.Text)
	if err != nil {
		return nil, err
	}
	resp := new(api.UnitImportResponse)
	for _, r := range reqs {
		resp.Assets = append(resp.Assets, r.Asset)
	}
	return resp, nil
}

