// Copyright (c) 2025 BVK Chaitanya

package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bvk/unitbot/gobs"
	"github.com/bvk/unitbot/unit"
)

// poll is a single tick of the reconciliation loop.
func (c *Controller) poll(ctx context.Context) {
	if c.lifeCtx.Err() != nil {
		return
	}

	start := time.Now()
	units, err := c.refresh(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("could not refresh account states (will retry)", "batch", c.batch.Name, "err", err)
		}
		return
	}

	now := time.Now()
	for _, u := range units {
		t, _ := c.timings.Get(u.Asset)
		reason := unit.NeedsRecreate(u, len(c.accounts), t, now, c.opts.PollInterval)
		if reason == unit.ReasonNone {
			continue
		}

		// Legs too small to derive a whole nominal size cannot be recreated.
		if !u.Size.IsPositive() {
			if !c.acquireSince(u.Asset, StatusClosing, start) {
				continue
			}
			go c.goAction(u.Asset, ActionRecreate, func(ctx context.Context) error {
				return c.dropUnit(ctx, u, reason)
			}, nil)
			continue
		}

		if !c.acquireSince(u.Asset, StatusRecreating, start) {
			continue
		}
		go c.goAction(u.Asset, ActionRecreate, func(ctx context.Context) error {
			return c.recreateUnit(ctx, u, reason)
		}, nil)
	}
}

func (c *Controller) recreateUnit(ctx context.Context, u *unit.Unit, reason unit.Reason) error {
	c.notify(u.Asset, ActionRecreate, EventPending, fmt.Sprintf("recreating unit %s (%s)", u, reason))
	defer c.refreshAfter(ctx, u.Asset, ActionRecreate)

	params := u.Params(c.sizeDecimals(ctx, u.Asset), c.batch.SmartBalanceUsage)
	if err := c.venue.CloseAndRecreateUnit(ctx, c.accounts, params); err != nil {
		c.notify(u.Asset, ActionRecreate, EventError, fmt.Sprintf("could not recreate unit %s: %v", u, err))
		return fmt.Errorf("could not recreate unit %s: %w", u, err)
	}

	c.timings.SetUnitTiming(u.Asset, &gobs.UnitTiming{
		OpenedTiming:   time.Now(),
		RecreateTiming: c.recreateTiming(u.Asset),
	})
	c.notify(u.Asset, ActionRecreate, EventSuccess, fmt.Sprintf("recreated unit %s (%s)", u, reason))
	return nil
}

// dropUnit closes a unit that is due for recreation but has no whole nominal
// size. The recreate is reported as failed so that the unit does not vanish
// silently.
func (c *Controller) dropUnit(ctx context.Context, u *unit.Unit, reason unit.Reason) error {
	err := fmt.Errorf("unit %s (%s) has no whole nominal size and cannot be recreated: %w", u, reason, os.ErrInvalid)
	c.notify(u.Asset, ActionRecreate, EventError, fmt.Sprintf("%v; closing the unit", err))
	if cerr := c.closeUnit(ctx, u.Asset, fmt.Sprintf("closing unit %s that cannot be recreated", u)); cerr != nil {
		return errors.Join(err, cerr)
	}
	return err
}
