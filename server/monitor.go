// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/bvk/unitbot/api"
	"github.com/bvk/unitbot/batch"
	"github.com/bvk/unitbot/ctxutil"
	"github.com/bvk/unitbot/gobs"
	"github.com/bvk/unitbot/timing"
	"github.com/visvasity/topic"
)

// monitor is a batch controller with its timing store and the goroutines
// that forward its notifications.
type monitor struct {
	cg ctxutil.CloseGroup

	batch *gobs.Batch

	// accountNames maps account ids to names.
	accountNames map[string]string

	timings *timing.Store

	ctl *batch.Controller
}

func (m *monitor) Close() {
	// Controller waits for the in-flight actions, so forwarders must be alive
	// till it returns. Timings written by those actions are flushed last.
	m.ctl.Close()
	m.cg.Close()
	if err := m.timings.Close(); err != nil {
		slog.Error("could not flush unit timings on close", "batch", m.batch.Name, "err", err)
	}
}

// openMonitor creates a monitor for the batch and replaces the old monitor,
// if any. Old monitor is closed before the timings are loaded, so that its
// pending timing updates are visible to the new monitor. Caller must hold the
// batchMu lock.
func (s *Server) openMonitor(ctx context.Context, b *gobs.Batch) (_ *monitor, status error) {
	if old, ok := s.monitors.LoadAndDelete(b.ID); ok {
		old.Close()
	}

	accounts, err := s.store.OpenAccounts(ctx, b.AccountIDs)
	if err != nil {
		return nil, fmt.Errorf("could not open accounts of batch %q: %w", b.Name, err)
	}

	timings, err := timing.New(ctx, b.ID, s.store, nil)
	if err != nil {
		slog.Warn("could not load unit timings (continuing with empty timings)", "batch", b.Name, "err", err)
		if timings, err = timing.NewEmpty(b.ID, s.store, nil); err != nil {
			return nil, err
		}
	}
	defer func() {
		if status != nil {
			timings.Close()
		}
	}()

	ctl, err := batch.New(b, accounts, s.venue, timings, &batch.Options{PollInterval: s.opts.PollInterval})
	if err != nil {
		return nil, fmt.Errorf("could not create batch controller: %w", err)
	}

	m := &monitor{
		batch:        b,
		accountNames: make(map[string]string),
		timings:      timings,
		ctl:          ctl,
	}
	for _, a := range accounts {
		m.accountNames[a.ID] = a.Name
	}

	events, err := ctl.Notifications()
	if err != nil {
		ctl.Close()
		return nil, err
	}
	snapshots, err := ctl.Snapshots()
	if err != nil {
		events.Close()
		ctl.Close()
		return nil, err
	}
	m.cg.Go(func(ctx context.Context) { s.forwardEvents(ctx, m, events) })
	m.cg.Go(func(ctx context.Context) { s.forwardSnapshots(ctx, m, snapshots) })

	s.monitors.Store(b.ID, m)
	return m, nil
}

func (s *Server) forwardEvents(ctx context.Context, m *monitor, receiver *topic.Receiver[*gobs.Event]) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("CAUGHT PANIC", "panic", r)
			slog.Error(string(debug.Stack()))
			panic(r)
		}
	}()

	defer receiver.Close()
	stopf := context.AfterFunc(ctx, receiver.Close)
	defer stopf()

	for ctx.Err() == nil {
		e, err := receiver.Receive()
		if err != nil {
			return
		}
		s.handleEvent(ctx, e)
	}
}

func (s *Server) handleEvent(ctx context.Context, e *gobs.Event) {
	slog.Info("batch event", "batch", e.BatchName, "asset", e.Asset, "action", e.Action, "status", e.Status, "message", e.Message)

	// Events must be saved even when the monitor is closing.
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.NotifyTimeout)
	defer cancel()

	if err := s.store.AppendEvent(sctx, e); err != nil {
		slog.Error("could not save batch event (ignored)", "batch", e.BatchName, "err", err)
	}
	s.streamTopic.Send(&api.StreamMessage{Event: e})

	if e.Status != batch.EventPending {
		s.SendMessage(sctx, e.Time, "[%s] %s %s %s: %s", e.BatchName, e.Asset, e.Action, e.Status, e.Message)
	}
}

func (s *Server) forwardSnapshots(ctx context.Context, m *monitor, receiver *topic.Receiver[*batch.Snapshot]) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("CAUGHT PANIC", "panic", r)
			slog.Error(string(debug.Stack()))
			panic(r)
		}
	}()

	defer receiver.Close()
	stopf := context.AfterFunc(ctx, receiver.Close)
	defer stopf()

	for ctx.Err() == nil {
		snap, err := receiver.Receive()
		if err != nil {
			return
		}
		s.streamTopic.Send(&api.StreamMessage{Snapshot: toAPISnapshot(snap, m.accountNames)})
		s.checkLowBalances(ctx, m, snap)
	}
}

// SendMessage sends a formatted message to all configured messengers.
func (s *Server) SendMessage(ctx context.Context, at time.Time, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if s.telegramClient != nil {
		if err := s.telegramClient.SendMessage(ctx, at, msg); err != nil {
			slog.Warn("could not send telegram message (ignored)", "err", err)
		}
	}
	if s.pushoverClient != nil {
		if err := s.pushoverClient.SendMessage(ctx, at, msg); err != nil {
			slog.Warn("could not send pushover message (ignored)", "err", err)
		}
	}
}
