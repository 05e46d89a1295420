// Copyright (c) 2025 BVK Chaitanya

package kvutil

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"
	"testing"

	"github.com/bvk/unitbot/gobs"
	"github.com/bvkgo/kv"
	"github.com/bvkgo/kv/kvmemdb"
	"github.com/vmihailenco/msgpack/v5"
)

func TestUpdateDB(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()

	key := "/timings/batch-1"
	add := func(asset string) func(*gobs.UnitTimings) (*gobs.UnitTimings, error) {
		return func(v *gobs.UnitTimings) (*gobs.UnitTimings, error) {
			if v == nil {
				v = &gobs.UnitTimings{Timings: make(map[string]*gobs.UnitTiming)}
			}
			v.Timings[asset] = &gobs.UnitTiming{}
			return v, nil
		}
	}
	if err := UpdateDB(ctx, db, key, add("BTC")); err != nil {
		t.Fatal(err)
	}
	if err := UpdateDB(ctx, db, key, add("ETH")); err != nil {
		t.Fatal(err)
	}

	v, err := GetDB[gobs.UnitTimings](ctx, db, key)
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Timings) != 2 {
		t.Fatalf("wanted 2 timings, got %d", len(v.Timings))
	}

	if _, err := GetDB[gobs.UnitTimings](ctx, db, "/timings/missing"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("wanted os.ErrNotExist, got %v", err)
	}
}

func TestRanges(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()

	names := []string{"a", "b", "c"}
	for _, n := range names {
		if err := SetDB(ctx, db, path.Join("/proxies", n), &gobs.Proxy{Name: n}); err != nil {
			t.Fatal(err)
		}
	}
	if err := SetDB(ctx, db, "/accounts/x", &gobs.Account{Name: "x"}); err != nil {
		t.Fatal(err)
	}

	var got []string
	collect := func(_ context.Context, _ kv.Reader, _ string, v *gobs.Proxy) error {
		got = append(got, v.Name)
		return nil
	}
	begin, end := PathRange("/proxies")
	if err := AscendDB(ctx, db, begin, end, collect); err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Fatalf("wanted [a b c], got %v", got)
	}

	if err := kv.WithReadWriter(ctx, db, func(ctx context.Context, rw kv.ReadWriter) error {
		return DeleteRange(ctx, rw, begin, end)
	}); err != nil {
		t.Fatal(err)
	}

	file := filepath.Join(t.TempDir(), "backup")
	if err := BackupDB(ctx, db, file); err != nil {
		t.Fatal(err)
	}
	fp, err := os.Open(file)
	if err != nil {
		t.Fatal(err)
	}
	defer fp.Close()

	restored := kvmemdb.New()
	if err := kv.WithReadWriter(ctx, restored, func(ctx context.Context, rw kv.ReadWriter) error {
		return ReadBackup(ctx, fp, rw)
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := GetDB[gobs.Account](ctx, restored, "/accounts/x"); err != nil {
		t.Fatal(err)
	}
	if _, err := GetDB[gobs.Proxy](ctx, restored, "/proxies/a"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("wanted os.ErrNotExist for a deleted key, got %v", err)
	}
}

func TestReadBackupRejectsOtherStreams(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()

	var buf bytes.Buffer
	if err := msgpack.NewEncoder(&buf).Encode(&gobs.KeyValue{Key: "/a", Value: []byte("b")}); err != nil {
		t.Fatal(err)
	}
	err := kv.WithReadWriter(ctx, db, func(ctx context.Context, rw kv.ReadWriter) error {
		return ReadBackup(ctx, &buf, rw)
	})
	if err == nil {
		t.Fatalf("wanted error for a stream without backup header")
	}
}
