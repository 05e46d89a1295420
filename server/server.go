// Copyright (c) 2023 BVK Chaitanya

// Package server implements the unitbot daemon. It owns the database, the
// venue client and one reconciliation loop (a monitor) per batch, and
// exposes them through a JSON api.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/bvk/unitbot/api"
	"github.com/bvk/unitbot/exchange"
	"github.com/bvk/unitbot/httputil"
	"github.com/bvk/unitbot/job"
	"github.com/bvk/unitbot/pushover"
	"github.com/bvk/unitbot/store"
	"github.com/bvk/unitbot/syncmap"
	"github.com/bvk/unitbot/telegram"
	"github.com/bvkgo/kv"
	"github.com/visvasity/topic"
)

const batchTypename = "Batch"

type Server struct {
	lifeCtx    context.Context
	lifeCancel context.CancelCauseFunc

	wg sync.WaitGroup

	opts Options

	db kv.Database

	store *store.Store

	venue exchange.Venue

	runner *job.Runner

	telegramClient *telegram.Client
	pushoverClient *pushover.Client

	// batchMu serializes the batch lifecycle operations.
	batchMu sync.Mutex

	// monitors holds the reconciliation loops per batch id.
	monitors syncmap.Map[string, *monitor]

	streamTopic *topic.Topic[*api.StreamMessage]

	alertMu                sync.Mutex
	alertFreezeDeadlineMap map[string]time.Time

	startTime time.Time
}

// New creates a server. Store must be unlocked so that account keys can be
// opened for the venue.
func New(ctx context.Context, secrets *Secrets, st *store.Store, venue exchange.Venue, opts *Options) (_ *Server, status error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, err
	}
	if secrets == nil {
		secrets = new(Secrets)
	}

	lifeCtx, lifeCancel := context.WithCancelCause(context.Background())
	defer func() {
		if status != nil {
			lifeCancel(status)
		}
	}()

	s := &Server{
		lifeCtx:                lifeCtx,
		lifeCancel:             lifeCancel,
		opts:                   *opts,
		db:                     st.Database(),
		store:                  st,
		venue:                  venue,
		runner:                 job.NewRunner(st.Database()),
		streamTopic:            topic.New[*api.StreamMessage](),
		alertFreezeDeadlineMap: make(map[string]time.Time),
		startTime:              time.Now(),
	}

	if secrets.Pushover != nil {
		client, err := pushover.New(secrets.Pushover)
		if err != nil {
			return nil, fmt.Errorf("could not create pushover client: %w", err)
		}
		s.pushoverClient = client
	}

	if secrets.Telegram != nil {
		client, err := telegram.New(ctx, s.db, secrets.Telegram)
		if err != nil {
			return nil, fmt.Errorf("could not create telegram client: %w", err)
		}
		s.telegramClient = client
	}
	return s, nil
}

func (s *Server) Close() error {
	s.lifeCancel(os.ErrClosed)
	s.runner.StopAll(context.Background())

	for id, m := range s.monitors.Range {
		m.Close()
		s.monitors.Delete(id)
	}
	s.wg.Wait()

	if s.telegramClient != nil {
		s.telegramClient.Close()
	}
	s.streamTopic.Close()
	return nil
}

// Start opens a monitor for every batch and resumes the batches that were
// running before the last shutdown.
func (s *Server) Start(ctx context.Context) error {
	if err := s.AddTelegramCommand(ctx, "batches", "Lists batches and their units", s.batchesTelegramCmd); err != nil {
		slog.Warn("could not add telegram command (ignored)", "err", err)
	}
	if err := s.AddTelegramCommand(ctx, "events", "Prints today's events of a batch", s.eventsTelegramCmd); err != nil {
		slog.Warn("could not add telegram command (ignored)", "err", err)
	}
	if err := s.AddTelegramCommand(ctx, "version", "Prints unitbot version", versionTelegramCmd); err != nil {
		slog.Warn("could not add telegram command (ignored)", "err", err)
	}

	batches, err := s.store.ListBatches(ctx)
	if err != nil {
		return fmt.Errorf("could not list batches: %w", err)
	}

	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	for _, b := range batches {
		if _, err := s.runner.Get(ctx, nil, b.ID); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("could not load job for batch %q: %w", b.Name, err)
			}
			if err := s.runner.Add(ctx, nil, b.ID, batchTypename); err != nil {
				return fmt.Errorf("could not add job for batch %q: %w", b.Name, err)
			}
		}
		if _, err := s.openMonitor(ctx, b); err != nil {
			slog.Error("could not open batch monitor (skipped)", "batch", b.Name, "err", err)
			continue
		}
	}

	if s.opts.NoResume {
		return nil
	}
	resume := func(ctx context.Context, jd *job.JobData) error {
		if jd.State != job.RUNNING {
			return nil
		}
		if _, ok := s.monitors.Load(jd.UID); !ok {
			return nil
		}
		if err := s.runner.Resume(ctx, jd.UID, s.makeJobFunc(jd.UID), s.lifeCtx); err != nil {
			slog.Error("could not resume batch (skipped)", "batch", jd.UID, "err", err)
			return nil
		}
		slog.Info("resumed batch", "batch", jd.UID)
		return nil
	}
	if err := s.runner.Scan(ctx, resume); err != nil {
		return fmt.Errorf("could not resume batches: %w", err)
	}
	return nil
}

// Stop stops all running batches without changing their saved state, so
// that they are resumed on the next start.
func (s *Server) Stop(ctx context.Context) error {
	s.runner.StopAll(ctx)
	return nil
}

func (s *Server) makeJobFunc(batchID string) job.Func {
	return func(ctx context.Context) error {
		m, ok := s.monitors.Load(batchID)
		if !ok {
			return fmt.Errorf("batch %s has no monitor: %w", batchID, os.ErrNotExist)
		}
		return m.ctl.Run(ctx)
	}
}

// HandlerMap returns the api handlers of the server.
func (s *Server) HandlerMap() map[string]http.Handler {
	return map[string]http.Handler{
		api.StatusPath: httputil.HandlerFunc(s.doStatus),

		api.ProxyAddPath:    httputil.HandlerFunc(s.doProxyAdd),
		api.ProxyImportPath: httputil.HandlerFunc(s.doProxyImport),
		api.ProxyListPath:   httputil.HandlerFunc(s.doProxyList),
		api.ProxyDeletePath: httputil.HandlerFunc(s.doProxyDelete),

		api.AccountAddPath:      httputil.HandlerFunc(s.doAccountAdd),
		api.AccountListPath:     httputil.HandlerFunc(s.doAccountList),
		api.AccountDeletePath:   httputil.HandlerFunc(s.doAccountDelete),
		api.AccountSetProxyPath: httputil.HandlerFunc(s.doAccountSetProxy),

		api.BatchCreatePath:    httputil.HandlerFunc(s.doBatchCreate),
		api.BatchListPath:      httputil.HandlerFunc(s.doBatchList),
		api.BatchGetPath:       httputil.HandlerFunc(s.doBatchGet),
		api.BatchClosePath:     httputil.HandlerFunc(s.doBatchClose),
		api.BatchPausePath:     httputil.HandlerFunc(s.doBatchPause),
		api.BatchResumePath:    httputil.HandlerFunc(s.doBatchResume),
		api.BatchEventsPath:    httputil.HandlerFunc(s.doBatchEvents),
		api.BatchSetTimingPath: httputil.HandlerFunc(s.doBatchSetTiming),

		api.UnitListPath:   httputil.HandlerFunc(s.doUnitList),
		api.UnitCreatePath: httputil.HandlerFunc(s.doUnitCreate),
		api.UnitClosePath:  httputil.HandlerFunc(s.doUnitClose),
		api.UnitImportPath: httputil.HandlerFunc(s.doUnitImport),

		api.EventsPath: http.HandlerFunc(s.serveEvents),
	}
}
