// Copyright (c) 2023 BVK Chaitanya

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/bvk/unitbot/api"
	"github.com/bvk/unitbot/exchange"
	"github.com/bvk/unitbot/job"
	"github.com/bvk/unitbot/store"
	"github.com/bvkgo/kv/kvmemdb"
	"github.com/shopspring/decimal"
)

const testPrivateKey = "0x4c0883a69102937d6231471b5dbb6204fe512961708279f3c5e2ad9b4d8e1f01"

type fakeVenue struct {
	mu sync.Mutex

	// positions holds asset positions per account id.
	positions map[string]map[string]*exchange.Position
}

func (v *fakeVenue) VenueName() string { return "fake" }

func (v *fakeVenue) GetUnitUserStates(ctx context.Context, accounts []*exchange.Account) ([]*exchange.AccountState, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var states []*exchange.AccountState
	for _, a := range accounts {
		s := &exchange.AccountState{
			AccountID: a.ID,
			Address:   a.Address,
			Margin:    exchange.MarginSummary{AccountValue: decimal.NewFromInt(500)},
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
	return decimal.NewFromInt(10), nil
}

func (v *fakeVenue) GetAssetSizeDecimals(ctx context.Context, account *exchange.Account, asset string) (int, error) {
	return 2, nil
}

func (v *fakeVenue) CreateUnit(ctx context.Context, accounts []*exchange.Account, params *exchange.UnitParams) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	size := params.Size.Mul(decimal.NewFromInt(int64(params.Leverage)))
	for i, a := range accounts {
		if _, ok := v.positions[a.ID]; !ok {
			v.positions[a.ID] = make(map[string]*exchange.Position)
		}
		sz := size
		if i%2 == 1 {
			sz = size.Neg()
		}
		v.positions[a.ID][params.Asset] = &exchange.Position{Asset: params.Asset, Size: sz, Leverage: params.Leverage}
	}
	return nil
}

func (v *fakeVenue) CloseUnit(ctx context.Context, accounts []*exchange.Account, asset string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, a := range accounts {
		delete(v.positions[a.ID], asset)
	}
	return nil
}

func (v *fakeVenue) CloseAndRecreateUnit(ctx context.Context, accounts []*exchange.Account, params *exchange.UnitParams) error {
	if err := v.CloseUnit(ctx, accounts, params.Asset); err != nil {
		return err
	}
	return v.CreateUnit(ctx, accounts, params)
}

func newTestServer(t *testing.T) *Server {
	ctx := context.Background()
	st := store.New(kvmemdb.New())
	if err := st.Unlock(ctx, "passphrase"); err != nil {
		t.Fatal(err)
	}
	venue := &fakeVenue{positions: make(map[string]map[string]*exchange.Position)}
	s, err := New(ctx, nil, st, venue, &Options{PollInterval: 100 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Fatal(err)
		}
	})
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	return s
}

func addTestAccounts(t *testing.T, s *Server, n int) []string {
	var names []string
	for i := 0; i < n; i++ {
		req := &api.AccountAddRequest{
			Name:       fmt.Sprintf("acc%d", i),
			Address:    fmt.Sprintf("0x%040x", i+1),
			PrivateKey: testPrivateKey,
		}
		if _, err := s.doAccountAdd(context.Background(), req); err != nil {
			t.Fatal(err)
		}
		names = append(names, req.Name)
	}
	return names
}

func TestBatchLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)
	accounts := addTestAccounts(t, s, 2)

	createReq := &api.BatchCreateRequest{
		Name:            "alpha",
		Accounts:        accounts,
		RecreateMinutes: decimal.NewFromInt(60),
	}
	created, err := s.doBatchCreate(ctx, createReq)
	if err != nil {
		t.Fatal(err)
	}
	if created.Batch.State != string(job.RUNNING) {
		t.Fatalf("wanted batch state RUNNING, got %q", created.Batch.State)
	}
	if _, err := s.doBatchCreate(ctx, &api.BatchCreateRequest{Name: "beta", Accounts: accounts, RecreateMinutes: decimal.NewFromInt(60)}); !errors.Is(err, os.ErrExist) {
		t.Fatalf("wanted ErrExist for accounts used by another batch, got %v", err)
	}

	unitReq := &api.UnitCreateRequest{
		Batch:    "alpha",
		Asset:    "btc",
		Size:     decimal.NewFromInt(10),
		Leverage: 2,
	}
	if _, err := s.doUnitCreate(ctx, unitReq); err != nil {
		t.Fatal(err)
	}
	units, err := s.doUnitList(ctx, &api.UnitListRequest{Batch: "alpha"})
	if err != nil {
		t.Fatal(err)
	}
	if len(units.Units) != 1 || units.Units[0].Asset != "BTC" {
		t.Fatalf("wanted one BTC unit, got %v", units.Units)
	}
	if v := units.Units[0].RecreateTiming; v != time.Hour {
		t.Fatalf("wanted batch default recreate timing, got %s", v)
	}

	if _, err := s.doBatchClose(ctx, &api.BatchCloseRequest{Batch: "alpha"}); !errors.Is(err, os.ErrExist) {
		t.Fatalf("wanted ErrExist for a batch with units, got %v", err)
	}
	if state := s.batchState(ctx, created.Batch.ID); state != string(job.RUNNING) {
		t.Fatalf("wanted batch to keep running after a failed close, got %q", state)
	}

	if _, err := s.doUnitClose(ctx, &api.UnitCloseRequest{Batch: "alpha", Asset: "BTC"}); err != nil {
		t.Fatal(err)
	}

	// Events are saved asynchronously.
	var events []string
	for deadline := time.Now().Add(5 * time.Second); time.Now().Before(deadline); time.Sleep(50 * time.Millisecond) {
		resp, err := s.doBatchEvents(ctx, &api.BatchEventsRequest{Batch: "alpha"})
		if err != nil {
			t.Fatal(err)
		}
		events = events[:0]
		for _, e := range resp.Events {
			events = append(events, e.Action+"/"+e.Status)
		}
		if len(events) == 4 {
			break
		}
	}
	want := []string{"create/PENDING", "create/SUCCESS", "close/PENDING", "close/SUCCESS"}
	if fmt.Sprint(events) != fmt.Sprint(want) {
		t.Fatalf("wanted events %v, got %v", want, events)
	}

	if _, err := s.doBatchClose(ctx, &api.BatchCloseRequest{Batch: "alpha"}); err != nil {
		t.Fatal(err)
	}
	list, err := s.doBatchList(ctx, &api.BatchListRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Batches) != 0 {
		t.Fatalf("wanted no batches, got %d", len(list.Batches))
	}
	accs, err := s.doAccountList(ctx, &api.AccountListRequest{})
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range accs.Accounts {
		if a.Batch != "" {
			t.Fatalf("wanted account %q to be free, got batch %q", a.Name, a.Batch)
		}
	}
}

func TestReloadKeepsUnitTimings(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)
	accounts := addTestAccounts(t, s, 2)

	if _, err := s.doBatchCreate(ctx, &api.BatchCreateRequest{Name: "alpha", Accounts: accounts, RecreateMinutes: decimal.NewFromInt(60)}); err != nil {
		t.Fatal(err)
	}
	unitReq := &api.UnitCreateRequest{
		Batch:    "alpha",
		Asset:    "BTC",
		Size:     decimal.NewFromInt(10),
		Leverage: 2,
		Minutes:  decimal.NewFromInt(30),
	}
	if _, err := s.doUnitCreate(ctx, unitReq); err != nil {
		t.Fatal(err)
	}

	// Timing update of the create is still in the write queue.
	if err := s.reloadAccountBatch(ctx, accounts[0]); err != nil {
		t.Fatal(err)
	}
	m, err := s.getMonitor(ctx, "alpha")
	if err != nil {
		t.Fatal(err)
	}
	tm, ok := m.timings.Get("BTC")
	if !ok {
		t.Fatalf("wanted BTC timing after reload")
	}
	if tm.RecreateTiming != 30*time.Minute || time.Since(tm.OpenedTiming) > time.Minute {
		t.Fatalf("wanted fresh 30m timing after reload, got %v", tm)
	}
	if state := s.batchState(ctx, m.batch.ID); state != string(job.RUNNING) {
		t.Fatalf("wanted batch to keep running after reload, got %q", state)
	}
}

func TestPauseResume(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)
	accounts := addTestAccounts(t, s, 2)

	if _, err := s.doBatchCreate(ctx, &api.BatchCreateRequest{Name: "alpha", Accounts: accounts, RecreateMinutes: decimal.NewFromInt(5)}); err != nil {
		t.Fatal(err)
	}
	paused, err := s.doBatchPause(ctx, &api.BatchPauseRequest{Batch: "alpha"})
	if err != nil {
		t.Fatal(err)
	}
	if paused.FinalState != string(job.PAUSED) {
		t.Fatalf("wanted PAUSED, got %q", paused.FinalState)
	}
	resumed, err := s.doBatchResume(ctx, &api.BatchResumeRequest{Batch: "alpha"})
	if err != nil {
		t.Fatal(err)
	}
	if resumed.FinalState != string(job.RUNNING) {
		t.Fatalf("wanted RUNNING, got %q", resumed.FinalState)
	}
	if _, err := s.doBatchResume(ctx, &api.BatchResumeRequest{Batch: "alpha"}); !errors.Is(err, os.ErrExist) {
		t.Fatalf("wanted ErrExist for a running batch, got %v", err)
	}
}

func TestHandlerStatusCodes(t *testing.T) {
	s := newTestServer(t)

	mux := http.NewServeMux()
	for path, handler := range s.HandlerMap() {
		mux.Handle(path, handler)
	}
	hs := httptest.NewServer(mux)
	defer hs.Close()

	post := func(path string, req any) int {
		data, err := json.Marshal(req)
		if err != nil {
			t.Fatal(err)
		}
		resp, err := http.Post(hs.URL+path, "application/json", bytes.NewReader(data))
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		return resp.StatusCode
	}

	if code := post(api.StatusPath, &api.StatusRequest{}); code != http.StatusOK {
		t.Fatalf("wanted %d, got %d", http.StatusOK, code)
	}
	if code := post(api.BatchGetPath, &api.BatchGetRequest{Batch: "missing"}); code != http.StatusNotFound {
		t.Fatalf("wanted %d, got %d", http.StatusNotFound, code)
	}
	if code := post(api.AccountAddPath, &api.AccountAddRequest{Name: "acc", Address: "bad"}); code != http.StatusBadRequest {
		t.Fatalf("wanted %d, got %d", http.StatusBadRequest, code)
	}
}

func TestLowBalanceAlert(t *testing.T) {
	s := newTestServer(t)
	s.opts.LowBalanceLimit = decimal.NewFromInt(100)

	ctx := context.Background()
	if !s.alertOnLowBalance(ctx, "alpha", "acc0", decimal.NewFromInt(50)) {
		t.Fatalf("wanted an alert for a low balance")
	}
	if s.alertOnLowBalance(ctx, "alpha", "acc0", decimal.NewFromInt(40)) {
		t.Fatalf("wanted the alert to be frozen")
	}
	if s.alertOnLowBalance(ctx, "alpha", "acc1", decimal.NewFromInt(150)) {
		t.Fatalf("wanted no alert above the limit")
	}
}
