// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bvk/unitbot/gobs"
	"github.com/bvk/unitbot/job"
)

// createBatch saves a new batch, opens its monitor and starts the
// reconciliation loop.
func (s *Server) createBatch(ctx context.Context, name string, accounts []string, recreate time.Duration, smartBalance bool) (_ *gobs.Batch, status error) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	b, err := s.store.CreateBatch(ctx, name, accounts, recreate, smartBalance)
	if err != nil {
		return nil, err
	}
	defer func() {
		if status != nil {
			if err := s.store.DeleteBatch(context.WithoutCancel(ctx), b.ID); err != nil {
				slog.Error("could not rollback batch creation", "batch", b.Name, "err", err)
			}
		}
	}()

	if err := s.runner.Add(ctx, nil, b.ID, batchTypename); err != nil {
		return nil, fmt.Errorf("could not add job for batch %q: %w", b.Name, err)
	}
	defer func() {
		if status != nil {
			s.runner.Remove(context.WithoutCancel(ctx), nil, b.ID)
		}
	}()

	if _, err := s.openMonitor(ctx, b); err != nil {
		return nil, err
	}
	if err := s.runner.Resume(ctx, b.ID, s.makeJobFunc(b.ID), s.lifeCtx); err != nil {
		slog.Warn("could not start batch (will remain paused)", "batch", b.Name, "err", err)
	}
	slog.Info("created batch", "batch", b.Name, "id", b.ID, "accounts", len(b.AccountIDs))
	return b, nil
}

// closeBatch deletes a batch that holds no units and has no actions in
// flight.
func (s *Server) closeBatch(ctx context.Context, nameOrID string) error {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	m, err := s.getMonitor(ctx, nameOrID)
	if err != nil {
		return err
	}
	id := m.batch.ID

	if err := m.ctl.CanClose(ctx); err != nil {
		return err
	}

	wasRunning := s.batchState(ctx, id) == string(job.RUNNING)
	resume := func() {
		if wasRunning {
			if err := s.runner.Resume(ctx, id, s.makeJobFunc(id), s.lifeCtx); err != nil {
				slog.Error("could not resume batch after failed close", "batch", m.batch.Name, "err", err)
			}
		}
	}

	if err := s.runner.Pause(ctx, id); err != nil {
		return err
	}
	// Poll loop may have dispatched an action before it was paused.
	if err := m.ctl.CanClose(ctx); err != nil {
		resume()
		return err
	}

	m.Close()
	s.monitors.Delete(id)

	// Manual actions racing with the close may have opened a unit.
	if units := m.ctl.Units(); len(units) > 0 {
		if _, err := s.openMonitor(ctx, m.batch); err != nil {
			slog.Error("could not reopen batch monitor", "batch", m.batch.Name, "err", err)
		}
		resume()
		return fmt.Errorf("batch %q holds %d units: %w", m.batch.Name, len(units), os.ErrExist)
	}

	if err := s.store.DeleteBatch(ctx, id); err != nil {
		return fmt.Errorf("could not delete batch %q: %w", m.batch.Name, err)
	}
	if err := s.runner.Remove(ctx, nil, id); err != nil {
		slog.Warn("could not remove batch job (ignored)", "batch", m.batch.Name, "err", err)
	}
	slog.Info("closed batch", "batch", m.batch.Name, "id", id)
	return nil
}

// reloadAccountBatch reopens the monitor of the batch that uses the account,
// so that account changes, like the proxy, take effect.
func (s *Server) reloadAccountBatch(ctx context.Context, account string) error {
	a, err := s.store.GetAccount(ctx, account)
	if err != nil {
		return err
	}
	if a.BatchID == "" {
		return nil
	}

	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	b, err := s.store.GetBatch(ctx, a.BatchID)
	if err != nil {
		return err
	}

	wasRunning := s.batchState(ctx, b.ID) == string(job.RUNNING)
	if wasRunning {
		if err := s.runner.Pause(ctx, b.ID); err != nil {
			return err
		}
	}
	if _, err := s.openMonitor(ctx, b); err != nil {
		return err
	}
	if wasRunning {
		if err := s.runner.Resume(ctx, b.ID, s.makeJobFunc(b.ID), s.lifeCtx); err != nil {
			return err
		}
	}
	slog.Info("reloaded batch after account change", "batch", b.Name, "account", a.Name)
	return nil
}
