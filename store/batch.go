// Copyright (c) 2025 BVK Chaitanya

package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"slices"
	"time"

	"github.com/bvk/unitbot/gobs"
	"github.com/bvk/unitbot/kvutil"
	"github.com/bvk/unitbot/namer"
	"github.com/bvkgo/kv"
	"github.com/google/uuid"
)

// CreateBatch saves a new batch and claims its accounts. Accounts can be
// names or ids and must not be used by any other batch.
func (s *Store) CreateBatch(ctx context.Context, name string, accounts []string, defaultRecreate time.Duration, smartBalance bool) (*gobs.Batch, error) {
	if name == "" {
		return nil, fmt.Errorf("batch name cannot be empty: %w", os.ErrInvalid)
	}
	switch len(accounts) {
	case 2, 4, 6:
	default:
		return nil, fmt.Errorf("batch needs 2, 4 or 6 accounts, got %d: %w", len(accounts), os.ErrInvalid)
	}
	if defaultRecreate <= 0 {
		return nil, fmt.Errorf("default recreate timing must be positive: %w", os.ErrInvalid)
	}
	b := &gobs.Batch{
		ID:                    uuid.New().String(),
		Name:                  name,
		DefaultRecreateTiming: defaultRecreate,
		SmartBalanceUsage:     smartBalance,
		CreateTime:            time.Now(),
	}
	if err := kv.WithReadWriter(ctx, s.db, func(ctx context.Context, rw kv.ReadWriter) error {
		for _, v := range accounts {
			a, err := getAccount(ctx, rw, v)
			if err != nil {
				return err
			}
			if slices.Contains(b.AccountIDs, a.ID) {
				return fmt.Errorf("account %q is listed more than once: %w", a.Name, os.ErrInvalid)
			}
			if a.BatchID != "" {
				return fmt.Errorf("account %q is already used by batch %s: %w", a.Name, a.BatchID, os.ErrExist)
			}
			a.BatchID = b.ID
			if err := kvutil.Set(ctx, rw, path.Join(AccountsKeyspace, a.ID), a); err != nil {
				return err
			}
			b.AccountIDs = append(b.AccountIDs, a.ID)
		}
		if err := namer.SetName(ctx, rw, b.Name, b.ID, batchTypename); err != nil {
			return err
		}
		return kvutil.Set(ctx, rw, path.Join(BatchesKeyspace, b.ID), b)
	}); err != nil {
		return nil, fmt.Errorf("could not create batch %q: %w", name, err)
	}
	return b, nil
}

func (s *Store) ListBatches(ctx context.Context) ([]*gobs.Batch, error) {
	var batches []*gobs.Batch
	begin, end := kvutil.PathRange(BatchesKeyspace)
	collect := func(ctx context.Context, r kv.Reader, k string, b *gobs.Batch) error {
		batches = append(batches, b)
		return nil
	}
	if err := kvutil.AscendDB(ctx, s.db, begin, end, collect); err != nil {
		return nil, fmt.Errorf("could not list batches: %w", err)
	}
	return batches, nil
}

func getBatch(ctx context.Context, r kv.Reader, nameOrID string) (*gobs.Batch, error) {
	id, err := namer.ResolveID(ctx, r, nameOrID, batchTypename)
	if err != nil {
		return nil, fmt.Errorf("could not resolve batch %q: %w", nameOrID, err)
	}
	return kvutil.Get[gobs.Batch](ctx, r, path.Join(BatchesKeyspace, id))
}

func (s *Store) GetBatch(ctx context.Context, nameOrID string) (b *gobs.Batch, err error) {
	err = kv.WithReader(ctx, s.db, func(ctx context.Context, r kv.Reader) error {
		b, err = getBatch(ctx, r, nameOrID)
		return err
	})
	return b, err
}

// DeleteBatch removes the batch with its unit timings and releases the
// accounts. Callers must make sure that the batch has no units.
func (s *Store) DeleteBatch(ctx context.Context, nameOrID string) error {
	return kv.WithReadWriter(ctx, s.db, func(ctx context.Context, rw kv.ReadWriter) error {
		b, err := getBatch(ctx, rw, nameOrID)
		if err != nil {
			return err
		}
		for _, id := range b.AccountIDs {
			key := path.Join(AccountsKeyspace, id)
			a, err := kvutil.Get[gobs.Account](ctx, rw, key)
			if err != nil {
				return fmt.Errorf("could not load batch account %s: %w", id, err)
			}
			if a.BatchID == b.ID {
				a.BatchID = ""
				if err := kvutil.Set(ctx, rw, key, a); err != nil {
					return err
				}
			}
		}
		if err := rw.Delete(ctx, path.Join(TimingsKeyspace, b.ID)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("could not delete unit timings: %w", err)
		}
		if err := namer.Delete(ctx, rw, b.ID); err != nil {
			return err
		}
		return rw.Delete(ctx, path.Join(BatchesKeyspace, b.ID))
	})
}

// GetUnitTimings returns the saved unit timings of a batch. Returns an empty
// map when the batch has no timings.
func (s *Store) GetUnitTimings(ctx context.Context, batchID string) (map[string]*gobs.UnitTiming, error) {
	v, err := kvutil.GetDB[gobs.UnitTimings](ctx, s.db, path.Join(TimingsKeyspace, batchID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]*gobs.UnitTiming), nil
		}
		return nil, err
	}
	if v.Timings == nil {
		v.Timings = make(map[string]*gobs.UnitTiming)
	}
	return v.Timings, nil
}

// MergeUnitTimings replaces the timings for the given assets and keeps the
// timings for other assets.
func (s *Store) MergeUnitTimings(ctx context.Context, batchID string, timings map[string]*gobs.UnitTiming) error {
	key := path.Join(TimingsKeyspace, batchID)
	return kvutil.UpdateDB(ctx, s.db, key, func(v *gobs.UnitTimings) (*gobs.UnitTimings, error) {
		if v == nil {
			v = &gobs.UnitTimings{BatchID: batchID}
		}
		if v.Timings == nil {
			v.Timings = make(map[string]*gobs.UnitTiming)
		}
		for asset, t := range timings {
			v.Timings[asset] = t
		}
		return v, nil
	})
}
