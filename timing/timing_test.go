// Copyright (c) 2025 BVK Chaitanya

package timing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bvk/unitbot/gobs"
)

type fakePersister struct {
	mu sync.Mutex

	failures int
	writes   []map[string]*gobs.UnitTiming
	stored   map[string]*gobs.UnitTiming
}

func (f *fakePersister) GetUnitTimings(ctx context.Context, batchID string) (map[string]*gobs.UnitTiming, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return map[string]*gobs.UnitTiming{
		"SOL": {OpenedTiming: time.Unix(100, 0), RecreateTiming: time.Hour},
	}, nil
}

func (f *fakePersister) MergeUnitTimings(ctx context.Context, batchID string, timings map[string]*gobs.UnitTiming) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("database is unavailable")
	}
	f.writes = append(f.writes, timings)
	if f.stored == nil {
		f.stored = make(map[string]*gobs.UnitTiming)
	}
	for k, v := range timings {
		f.stored[k] = v
	}
	return nil
}

func (f *fakePersister) numWrites() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for condition")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCoalescedWrite(t *testing.T) {
	ctx := context.Background()
	db := new(fakePersister)
	s, err := New(ctx, "batch1", db, &Options{QuietPeriod: 100 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if v, ok := s.Get("SOL"); !ok || v.RecreateTiming != time.Hour {
		t.Fatalf("wanted loaded SOL timing, got %v", v)
	}

	now := time.Now()
	s.SetUnitTiming("BTC", &gobs.UnitTiming{OpenedTiming: now, RecreateTiming: time.Hour})
	s.SetUnitTiming("ETH", &gobs.UnitTiming{OpenedTiming: now, RecreateTiming: 30 * time.Minute})
	s.SetUnitTiming("BTC", &gobs.UnitTiming{OpenedTiming: now.Add(time.Second), RecreateTiming: time.Hour})

	waitFor(t, func() bool { return db.numWrites() > 0 })
	time.Sleep(300 * time.Millisecond)

	db.mu.Lock()
	defer db.mu.Unlock()
	if len(db.writes) != 1 {
		t.Fatalf("wanted exactly one merged write, got %d", len(db.writes))
	}
	w := db.writes[0]
	if len(w) != 2 {
		t.Fatalf("wanted 2 assets in the merged write, got %d", len(w))
	}
	if !w["BTC"].OpenedTiming.Equal(now.Add(time.Second)) {
		t.Fatalf("wanted latest BTC timing to be written, got %v", w["BTC"].OpenedTiming)
	}
}

func TestFlushRetry(t *testing.T) {
	db := &fakePersister{failures: 2}
	s, err := NewEmpty("batch1", db, &Options{
		QuietPeriod:   10 * time.Millisecond,
		RetryInterval: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	s.SetUnitTiming("ETH", &gobs.UnitTiming{OpenedTiming: time.Now(), RecreateTiming: time.Minute})
	waitFor(t, func() bool { return db.numWrites() == 1 })
	if n := s.Pending(); n != 0 {
		t.Fatalf("wanted no pending changes, got %d", n)
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.stored["ETH"]; !ok {
		t.Fatalf("wanted ETH timing to be stored after retries")
	}
}

func TestCloseFlushes(t *testing.T) {
	db := new(fakePersister)
	s, err := NewEmpty("batch1", db, &Options{QuietPeriod: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	s.SetUnitTiming("BTC", &gobs.UnitTiming{OpenedTiming: time.Now(), RecreateTiming: time.Minute})
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if n := db.numWrites(); n != 1 {
		t.Fatalf("wanted pending change to be written on close, got %d writes", n)
	}
}
