// Copyright (c) 2025 BVK Chaitanya

package store

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/bvk/unitbot/gobs"
	"github.com/bvk/unitbot/kvutil"
	"github.com/bvk/unitbot/timerange"
	"github.com/bvkgo/kv"
)

func eventKey(batchID string, nanos int64) string {
	return path.Join(EventsKeyspace, batchID, fmt.Sprintf("%020d", nanos))
}

// AppendEvent saves an event under the batch. Events with the same timestamp
// are disambiguated by incrementing the key.
func (s *Store) AppendEvent(ctx context.Context, e *gobs.Event) error {
	return kv.WithReadWriter(ctx, s.db, func(ctx context.Context, rw kv.ReadWriter) error {
		nanos := e.Time.UnixNano()
		for {
			key := eventKey(e.BatchID, nanos)
			if ok, err := kvutil.Exists(ctx, rw, key); err != nil {
				return err
			} else if !ok {
				return kvutil.Set(ctx, rw, key, e)
			}
			nanos++
		}
	})
}

// ListEvents returns the events of a batch in the time range in the
// chronological order.
func (s *Store) ListEvents(ctx context.Context, batchID string, r *timerange.Range) ([]*gobs.Event, error) {
	if r == nil {
		r = new(timerange.Range)
	}
	// Keys of events sharing a timestamp are shifted forward by a few
	// nanoseconds, so key bounds are widened and event times are filtered.
	begin, end := kvutil.PathRange(path.Join(EventsKeyspace, batchID))
	if !r.Begin.IsZero() {
		begin = eventKey(batchID, r.Begin.UnixNano())
	}
	if !r.End.IsZero() {
		end = eventKey(batchID, r.End.Add(time.Second).UnixNano())
	}
	var events []*gobs.Event
	collect := func(ctx context.Context, _ kv.Reader, k string, e *gobs.Event) error {
		if r.InRange(e.Time) {
			events = append(events, e)
		}
		return nil
	}
	if err := kvutil.AscendDB(ctx, s.db, begin, end, collect); err != nil {
		return nil, fmt.Errorf("could not list events for batch %s: %w", batchID, err)
	}
	return events, nil
}

// DeleteEvents removes all events of a batch.
func (s *Store) DeleteEvents(ctx context.Context, batchID string) error {
	begin, end := kvutil.PathRange(path.Join(EventsKeyspace, batchID))
	return kv.WithReadWriter(ctx, s.db, func(ctx context.Context, rw kv.ReadWriter) error {
		return kvutil.DeleteRange(ctx, rw, begin, end)
	})
}
