// Copyright (c) 2025 BVK Chaitanya

package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/bvk/unitbot/exchange"
	"github.com/bvk/unitbot/gobs"
	"github.com/bvk/unitbot/unit"
)

// CreateUnit opens a new unit on all accounts of the batch. Failures are not
// retried. Request size is truncated to the asset's size precision.
func (c *Controller) CreateUnit(ctx context.Context, req *unit.Request) error {
	if err := c.checkRequest(req); err != nil {
		return err
	}
	if c.hasUnit(req.Asset) {
		return fmt.Errorf("batch %s already holds a unit for %s: %w", c.batch.Name, req.Asset, os.ErrExist)
	}
	return c.do(ctx, req.Asset, StatusCreating, ActionCreate, func(ctx context.Context) error {
		return c.createUnit(ctx, req)
	})
}

// CloseUnit closes the unit of an asset on all accounts of the batch.
func (c *Controller) CloseUnit(ctx context.Context, asset string) error {
	asset = strings.ToUpper(strings.TrimSpace(asset))
	if asset == "" {
		return fmt.Errorf("asset name cannot be empty: %w", os.ErrInvalid)
	}
	if _, err := c.refresh(ctx); err != nil {
		return fmt.Errorf("could not refresh batch %s: %w", c.batch.Name, err)
	}
	if !c.hasUnit(asset) && c.Status(asset) == StatusIdle {
		return fmt.Errorf("batch %s has no unit for %s: %w", c.batch.Name, asset, os.ErrNotExist)
	}
	return c.do(ctx, asset, StatusClosing, ActionClose, func(ctx context.Context) error {
		return c.closeUnit(ctx, asset, fmt.Sprintf("closing unit %s", asset))
	})
}

// ImportUnits creates units from `asset:size:leverage:minutes` lines in the
// background. Malformed lines are dropped. Every unit is created
// independently and reports its own notifications. Returns the requests that
// were dispatched.
func (c *Controller) ImportUnits(ctx context.Context, text string) ([]*unit.Request, error) {
	reqs := unit.ParseImport(text)
	if len(reqs) == 0 {
		return nil, fmt.Errorf("no valid asset:size:leverage:minutes lines found: %w", os.ErrInvalid)
	}
	if err := c.lifeCtx.Err(); err != nil {
		return nil, context.Cause(c.lifeCtx)
	}

	var dispatched []*unit.Request
	for _, req := range reqs {
		if err := c.checkRequest(req); err != nil {
			c.notify(req.Asset, ActionCreate, EventError, err.Error())
			continue
		}
		if c.hasUnit(req.Asset) {
			c.notify(req.Asset, ActionCreate, EventError, fmt.Sprintf("unit for %s already exists", req.Asset))
			continue
		}
		if !c.acquire(req.Asset, StatusCreating) {
			if err := c.lifeCtx.Err(); err != nil {
				return dispatched, context.Cause(c.lifeCtx)
			}
			c.notify(req.Asset, ActionCreate, EventError, c.busyError(req.Asset).Error())
			continue
		}
		go c.goAction(req.Asset, ActionCreate, func(ctx context.Context) error {
			return c.createUnit(ctx, req)
		}, nil)
		dispatched = append(dispatched, req)
	}
	slog.Info("imported units", "batch", c.batch.Name, "lines", len(reqs), "dispatched", len(dispatched))
	return dispatched, nil
}

// SetTiming changes the recreate timing of an asset. The opened timing is
// kept when the asset already has one.
func (c *Controller) SetTiming(ctx context.Context, asset string, recreate time.Duration) error {
	asset = strings.ToUpper(strings.TrimSpace(asset))
	if asset == "" {
		return fmt.Errorf("asset name cannot be empty: %w", os.ErrInvalid)
	}
	if recreate <= 0 {
		return fmt.Errorf("recreate timing must be positive: %w", os.ErrInvalid)
	}

	t := &gobs.UnitTiming{RecreateTiming: recreate}
	if old, ok := c.timings.Get(asset); ok {
		t.OpenedTiming = old.OpenedTiming
	} else if c.hasUnit(asset) {
		t.OpenedTiming = time.Now()
	}
	c.timings.SetUnitTiming(asset, t)

	c.mu.Lock()
	c.snapshotTopic.Send(c.snapshotLocked())
	c.mu.Unlock()

	slog.InfoContext(ctx, "updated unit recreate timing", "batch", c.batch.Name, "asset", asset, "recreate", recreate)
	return nil
}

func (c *Controller) checkRequest(req *unit.Request) error {
	if req == nil {
		return fmt.Errorf("unit request cannot be nil: %w", os.ErrInvalid)
	}
	req.Asset = strings.ToUpper(strings.TrimSpace(req.Asset))
	if req.Asset == "" {
		return fmt.Errorf("asset name cannot be empty: %w", os.ErrInvalid)
	}
	if !req.Size.IsPositive() {
		return fmt.Errorf("unit size must be positive: %w", os.ErrInvalid)
	}
	if req.Leverage <= 0 {
		return fmt.Errorf("leverage must be positive: %w", os.ErrInvalid)
	}
	if req.RecreateTiming < 0 {
		return fmt.Errorf("recreate timing cannot be negative: %w", os.ErrInvalid)
	}
	if req.RecreateTiming == 0 {
		req.RecreateTiming = c.batch.DefaultRecreateTiming
	}
	return nil
}

func (c *Controller) hasUnit(asset string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, u := range c.units {
		if u.Asset == asset {
			return true
		}
	}
	return false
}

// do runs a manual action in the background and waits for its result. The
// action is not canceled when ctx is canceled.
func (c *Controller) do(ctx context.Context, asset string, status Status, action string, f func(context.Context) error) error {
	if err := c.lifeCtx.Err(); err != nil {
		return context.Cause(c.lifeCtx)
	}
	if !c.acquire(asset, status) {
		if err := c.lifeCtx.Err(); err != nil {
			return context.Cause(c.lifeCtx)
		}
		return c.busyError(asset)
	}
	errCh := make(chan error, 1)
	go c.goAction(asset, action, f, errCh)

	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case err := <-errCh:
		return err
	}
}

func (c *Controller) createUnit(ctx context.Context, req *unit.Request) error {
	c.notify(req.Asset, ActionCreate, EventPending, fmt.Sprintf("creating unit %s size %s leverage %dx", req.Asset, req.Size, req.Leverage))
	defer c.refreshAfter(ctx, req.Asset, ActionCreate)

	if err := c.openUnit(ctx, req); err != nil {
		c.notify(req.Asset, ActionCreate, EventError, fmt.Sprintf("could not create unit %s: %v", req.Asset, err))
		return err
	}
	c.notify(req.Asset, ActionCreate, EventSuccess, fmt.Sprintf("created unit %s size %s leverage %dx", req.Asset, req.Size, req.Leverage))
	return nil
}

func (c *Controller) openUnit(ctx context.Context, req *unit.Request) error {
	first := c.accounts[0]

	decimals := c.sizeDecimals(ctx, req.Asset)
	size := req.Size.Truncate(int32(decimals))
	if !size.IsPositive() {
		return fmt.Errorf("size %s rounds down to zero with %d decimals: %w", req.Size, decimals, os.ErrInvalid)
	}

	if len(c.accounts) > 2 {
		price, err := c.venue.GetAssetPrice(ctx, first, req.Asset)
		if err != nil {
			return fmt.Errorf("could not get %s price: %w", req.Asset, err)
		}
		if err := unit.CheckSizing(len(c.accounts), price, size, req.Leverage); err != nil {
			return err
		}
	}

	params := &exchange.UnitParams{
		Asset:             req.Asset,
		Size:              size,
		Leverage:          req.Leverage,
		SizeDecimals:      decimals,
		SmartBalanceUsage: c.batch.SmartBalanceUsage,
	}
	if err := c.venue.CreateUnit(ctx, c.accounts, params); err != nil {
		return err
	}

	c.timings.SetUnitTiming(req.Asset, &gobs.UnitTiming{
		OpenedTiming:   time.Now(),
		RecreateTiming: req.RecreateTiming,
	})
	return nil
}

func (c *Controller) closeUnit(ctx context.Context, asset, msg string) error {
	c.notify(asset, ActionClose, EventPending, msg)
	defer c.refreshAfter(ctx, asset, ActionClose)

	if err := c.venue.CloseUnit(ctx, c.accounts, asset); err != nil {
		c.notify(asset, ActionClose, EventError, fmt.Sprintf("could not close unit %s: %v", asset, err))
		return fmt.Errorf("could not close unit %s: %w", asset, err)
	}
	c.notify(asset, ActionClose, EventSuccess, fmt.Sprintf("closed unit %s", asset))
	return nil
}
