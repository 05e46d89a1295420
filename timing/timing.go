// Copyright (c) 2025 BVK Chaitanya

// Package timing keeps per-asset unit timings of a batch in memory and writes
// changes to the database through a coalescing queue.
package timing

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"sync"
	"time"

	"github.com/bvk/unitbot/ctxutil"
	"github.com/bvk/unitbot/gobs"
)

// Persister is the database side of the timing store.
type Persister interface {
	GetUnitTimings(ctx context.Context, batchID string) (map[string]*gobs.UnitTiming, error)
	MergeUnitTimings(ctx context.Context, batchID string, timings map[string]*gobs.UnitTiming) error
}

type Store struct {
	lifeCtx    context.Context
	lifeCancel context.CancelCauseFunc

	wg sync.WaitGroup

	opts Options

	batchID string

	db Persister

	kickCh chan struct{}

	mu sync.Mutex

	cache map[string]*gobs.UnitTiming

	// pending holds the changes that are not yet written to the database.
	pending map[string]*gobs.UnitTiming
}

// New loads the timings for a batch and starts the background writer. A
// failure to load timings is returned, but callers may continue with an
// empty store through NewEmpty.
func New(ctx context.Context, batchID string, db Persister, opts *Options) (*Store, error) {
	s, err := NewEmpty(batchID, db, opts)
	if err != nil {
		return nil, err
	}
	timings, err := db.GetUnitTimings(ctx, batchID)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("could not load unit timings for batch %s: %w", batchID, err)
	}
	for asset, t := range timings {
		if t != nil {
			s.cache[asset] = t
		}
	}
	return s, nil
}

// NewEmpty creates a timing store without loading existing timings.
func NewEmpty(batchID string, db Persister, opts *Options) (*Store, error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, err
	}
	if len(batchID) == 0 {
		return nil, fmt.Errorf("batch id cannot be empty: %w", os.ErrInvalid)
	}
	lifeCtx, lifeCancel := context.WithCancelCause(context.Background())
	s := &Store{
		lifeCtx:    lifeCtx,
		lifeCancel: lifeCancel,
		opts:       *opts,
		batchID:    batchID,
		db:         db,
		kickCh:     make(chan struct{}, 1),
		cache:      make(map[string]*gobs.UnitTiming),
		pending:    make(map[string]*gobs.UnitTiming),
	}
	s.wg.Add(1)
	go s.goWrite(lifeCtx)
	return s, nil
}

// Close stops the background writer after a final attempt to write the
// pending changes.
func (s *Store) Close() error {
	s.lifeCancel(os.ErrClosed)
	s.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.FlushTimeout)
	defer cancel()
	return s.Flush(ctx)
}

// Get returns a copy of the timing for an asset.
func (s *Store) Get(asset string) (*gobs.UnitTiming, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.cache[asset]
	if !ok {
		return nil, false
	}
	v := *t
	return &v, true
}

// All returns a copy of all timings.
func (s *Store) All() map[string]*gobs.UnitTiming {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make(map[string]*gobs.UnitTiming, len(s.cache))
	for asset, t := range s.cache {
		v := *t
		all[asset] = &v
	}
	return all
}

// SetUnitTiming replaces the timing for an asset in memory and schedules a
// database write.
func (s *Store) SetUnitTiming(asset string, timing *gobs.UnitTiming) {
	v := *timing

	s.mu.Lock()
	s.cache[asset] = &v
	s.pending[asset] = &v
	s.mu.Unlock()

	select {
	case s.kickCh <- struct{}{}:
	default:
	}
}

// Pending returns the number of assets with changes not yet written.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Flush writes all pending changes to the database in one merged write. On
// failure, the changes are put back so that newer updates take precedence.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return nil
	}
	batch := s.pending
	s.pending = make(map[string]*gobs.UnitTiming)
	s.mu.Unlock()

	if err := s.db.MergeUnitTimings(ctx, s.batchID, batch); err != nil {
		s.mu.Lock()
		maps.Copy(batch, s.pending)
		s.pending = batch
		s.mu.Unlock()
		return fmt.Errorf("could not write %d unit timings: %w", len(batch), err)
	}
	return nil
}

func (s *Store) goWrite(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.kickCh:
		}

		// Wait for a quiet period without new updates.
		timer := time.NewTimer(s.opts.QuietPeriod)
	quiet:
		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-s.kickCh:
				timer.Reset(s.opts.QuietPeriod)
			case <-timer.C:
				break quiet
			}
		}

		for ctx.Err() == nil {
			fctx, fcancel := context.WithTimeout(ctx, s.opts.FlushTimeout)
			err := s.Flush(fctx)
			fcancel()
			if err == nil {
				break
			}
			slog.Error("could not flush unit timings (will retry)", "batch", s.batchID, "err", err)
			ctxutil.Sleep(ctx, s.opts.RetryInterval)
		}
	}
}
