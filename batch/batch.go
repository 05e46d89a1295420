// Copyright (c) 2025 BVK Chaitanya

// Package batch implements the reconciliation loop for a batch of accounts
// that jointly hold units on a venue.
//
// A Controller periodically fetches the account states, projects them into
// units and closes-and-recreates the units that lost symmetry or outlived
// their recreate timing. Operators can create, close and import units and
// change per-asset recreate timings. At most one action is in flight for an
// asset at any time.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bvk/unitbot/ctxutil"
	"github.com/bvk/unitbot/exchange"
	"github.com/bvk/unitbot/gobs"
	"github.com/bvk/unitbot/timing"
	"github.com/bvk/unitbot/unit"
	"github.com/shopspring/decimal"
	"github.com/visvasity/topic"
)

type Status string

const (
	StatusIdle       Status = "IDLE"
	StatusOpen       Status = "OPEN"
	StatusCreating   Status = "CREATING"
	StatusClosing    Status = "CLOSING"
	StatusRecreating Status = "RECREATING"
)

const (
	ActionCreate   = "create"
	ActionClose    = "close"
	ActionRecreate = "recreate"
)

const (
	EventPending = "PENDING"
	EventSuccess = "SUCCESS"
	EventError   = "ERROR"
)

// Snapshot is the read model of a batch published after every refresh.
type Snapshot struct {
	BatchID   string
	BatchName string

	Time time.Time

	Units []*unit.Unit

	// Statuses holds the status of every asset that is not idle.
	Statuses map[string]Status

	// Balances holds the account value per account id.
	Balances map[string]decimal.Decimal

	Timings map[string]*gobs.UnitTiming
}

type Controller struct {
	lifeCtx    context.Context
	lifeCancel context.CancelCauseFunc

	wg sync.WaitGroup

	opts Options

	batch *gobs.Batch

	accounts []*exchange.Account

	venue exchange.Venue

	timings *timing.Store

	running atomic.Bool

	eventTopic    *topic.Topic[*gobs.Event]
	snapshotTopic *topic.Topic[*Snapshot]

	// refreshMu serializes the account state fetches.
	refreshMu sync.Mutex

	mu sync.Mutex

	// closed is set by Close. No new actions are dispatched after it.
	closed bool

	// inflight holds the assets with an action in progress.
	inflight map[string]Status

	// releaseTime holds the time an asset was last released from inflight.
	releaseTime map[string]time.Time

	units    []*unit.Unit
	balances map[string]decimal.Decimal

	lastRefresh time.Time
}

// New creates a controller for a batch. Accounts must be in the same order as
// the batch account ids. Timings store is owned by the caller.
func New(b *gobs.Batch, accounts []*exchange.Account, venue exchange.Venue, timings *timing.Store, opts *Options) (*Controller, error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, err
	}
	if b == nil || venue == nil || timings == nil {
		return nil, fmt.Errorf("batch, venue and timings are required: %w", os.ErrInvalid)
	}
	if len(accounts) != len(b.AccountIDs) {
		return nil, fmt.Errorf("batch %s needs %d accounts, got %d: %w", b.Name, len(b.AccountIDs), len(accounts), os.ErrInvalid)
	}
	for i, a := range accounts {
		if a == nil || a.ID != b.AccountIDs[i] {
			return nil, fmt.Errorf("account %d does not match batch %s: %w", i, b.Name, os.ErrInvalid)
		}
	}

	clone, err := gobs.Clone(b)
	if err != nil {
		return nil, fmt.Errorf("could not clone batch %s: %w", b.Name, err)
	}

	lifeCtx, lifeCancel := context.WithCancelCause(context.Background())
	c := &Controller{
		lifeCtx:       lifeCtx,
		lifeCancel:    lifeCancel,
		opts:          *opts,
		batch:         clone,
		accounts:      slices.Clone(accounts),
		venue:         venue,
		timings:       timings,
		eventTopic:    topic.New[*gobs.Event](),
		snapshotTopic: topic.New[*Snapshot](),
		inflight:      make(map[string]Status),
		releaseTime:   make(map[string]time.Time),
		balances:      make(map[string]decimal.Decimal),
	}
	return c, nil
}

// Close stops dispatching new actions, waits for the in-flight actions to
// finish and releases the topics. In-flight venue calls are not canceled.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.lifeCancel(os.ErrClosed)
	c.wg.Wait()

	c.eventTopic.Close()
	c.snapshotTopic.Close()

	unitsGauge.DeleteLabelValues(c.batch.Name)
	inflightGauge.DeleteLabelValues(c.batch.Name)
	return nil
}

func (c *Controller) BatchID() string {
	return c.batch.ID
}

func (c *Controller) BatchName() string {
	return c.batch.Name
}

// Run runs the reconciliation loop till the context is canceled. Ticks never
// overlap. Actions dispatched by the loop continue after Run returns.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return fmt.Errorf("batch %s is already running: %w", c.batch.Name, os.ErrExist)
	}
	defer c.running.Store(false)

	slog.Info("started batch reconciliation loop", "batch", c.batch.Name, "accounts", len(c.accounts), "interval", c.opts.PollInterval)
	defer slog.Info("stopped batch reconciliation loop", "batch", c.batch.Name)

	return ctxutil.Periodic(ctx, c.opts.PollInterval, c.poll)
}

// IsRunning returns true if the reconciliation loop is active.
func (c *Controller) IsRunning() bool {
	return c.running.Load()
}

// CanClose returns nil when the batch holds no units and has no actions in
// flight.
func (c *Controller) CanClose(ctx context.Context) error {
	if _, err := c.refresh(ctx); err != nil {
		return fmt.Errorf("could not refresh batch %s: %w", c.batch.Name, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if n := len(c.inflight); n > 0 {
		return fmt.Errorf("batch %s has %d actions in flight: %w", c.batch.Name, n, os.ErrExist)
	}
	if n := len(c.units); n > 0 {
		return fmt.Errorf("batch %s holds %d units: %w", c.batch.Name, n, os.ErrExist)
	}
	return nil
}

// Units returns the units from the last refresh.
func (c *Controller) Units() []*unit.Unit {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.units)
}

// Status returns the status of an asset.
func (c *Controller) Status(asset string) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked(asset)
}

func (c *Controller) statusLocked(asset string) Status {
	if s, ok := c.inflight[asset]; ok {
		return s
	}
	for _, u := range c.units {
		if u.Asset == asset {
			return StatusOpen
		}
	}
	return StatusIdle
}

// Snapshot returns the current read model.
func (c *Controller) Snapshot() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() *Snapshot {
	s := &Snapshot{
		BatchID:   c.batch.ID,
		BatchName: c.batch.Name,
		Time:      c.lastRefresh,
		Units:     slices.Clone(c.units),
		Statuses:  make(map[string]Status),
		Balances:  make(map[string]decimal.Decimal),
		Timings:   c.timings.All(),
	}
	for _, u := range c.units {
		s.Statuses[u.Asset] = StatusOpen
	}
	for asset, st := range c.inflight {
		s.Statuses[asset] = st
	}
	for id, v := range c.balances {
		s.Balances[id] = v
	}
	return s
}

// Notifications returns a receiver for the pending, success and error events
// of the actions.
func (c *Controller) Notifications() (*topic.Receiver[*gobs.Event], error) {
	return topic.Subscribe(c.eventTopic, 0, false)
}

// Snapshots returns a receiver that always holds the latest snapshot.
func (c *Controller) Snapshots() (*topic.Receiver[*Snapshot], error) {
	return topic.Subscribe(c.snapshotTopic, 1, true)
}

func (c *Controller) notify(asset, action, status, msg string) {
	e := &gobs.Event{
		BatchID:   c.batch.ID,
		BatchName: c.batch.Name,
		Asset:     asset,
		Action:    action,
		Status:    status,
		Message:   msg,
		Time:      time.Now(),
	}
	if status != EventPending {
		actionsTotal.WithLabelValues(c.batch.Name, action, status).Inc()
	}
	c.eventTopic.Send(e)
}

// acquire marks an asset as busy. Returns false if another action is already
// in flight for the asset.
func (c *Controller) acquire(asset string, status Status) bool {
	return c.acquireSince(asset, status, time.Time{})
}

// acquireSince is like acquire, but also fails if the asset was released
// after the since time, i.e., a decision taken on account states fetched
// before since is stale. A successful acquire must be followed by a goAction.
func (c *Controller) acquireSince(asset string, status Status, since time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	if _, ok := c.inflight[asset]; ok {
		return false
	}
	if t, ok := c.releaseTime[asset]; ok && !since.IsZero() && !t.Before(since) {
		return false
	}
	c.inflight[asset] = status
	c.wg.Add(1)
	inflightGauge.WithLabelValues(c.batch.Name).Set(float64(len(c.inflight)))
	c.snapshotTopic.Send(c.snapshotLocked())
	return true
}

func (c *Controller) release(asset string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.inflight, asset)
	c.releaseTime[asset] = time.Now()
	inflightGauge.WithLabelValues(c.batch.Name).Set(float64(len(c.inflight)))
	c.snapshotTopic.Send(c.snapshotLocked())
}

func (c *Controller) busyError(asset string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Errorf("asset %s in batch %s is %s: %w", asset, c.batch.Name, c.inflight[asset], os.ErrExist)
}

// refresh fetches the account states and updates the read model.
func (c *Controller) refresh(ctx context.Context) ([]*unit.Unit, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.opts.RefreshTimeout)
	defer cancel()

	states, err := c.venue.GetUnitUserStates(ctx, c.accounts)
	if err != nil {
		pollErrorsTotal.WithLabelValues(c.batch.Name).Inc()
		return nil, err
	}
	units := unit.Project(states)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.units = units
	c.lastRefresh = time.Now()
	clear(c.balances)
	for _, s := range states {
		if s != nil {
			c.balances[s.AccountID] = s.Margin.AccountValue
		}
	}
	unitsGauge.WithLabelValues(c.batch.Name).Set(float64(len(units)))
	c.snapshotTopic.Send(c.snapshotLocked())
	return slices.Clone(units), nil
}

func (c *Controller) recreateTiming(asset string) time.Duration {
	if t, ok := c.timings.Get(asset); ok && t.RecreateTiming > 0 {
		return t.RecreateTiming
	}
	return c.batch.DefaultRecreateTiming
}

// sizeDecimals returns the size precision of an asset. Lookup failures are
// logged and zero is used.
func (c *Controller) sizeDecimals(ctx context.Context, asset string) int {
	decimals, err := c.venue.GetAssetSizeDecimals(ctx, c.accounts[0], asset)
	if err != nil {
		slog.Warn("could not get asset size decimals (using zero)", "batch", c.batch.Name, "asset", asset, "err", err)
		return 0
	}
	return decimals
}

// refreshAfter refreshes the account states after an action completes,
// irrespective of the action's result.
func (c *Controller) refreshAfter(ctx context.Context, asset, action string) {
	if _, err := c.refresh(ctx); err != nil {
		slog.Warn("could not refresh account states after action", "batch", c.batch.Name, "asset", asset, "action", action, "err", err)
	}
}

// goAction runs an action for an asset that was acquired by the caller and
// releases the asset when the action completes. Action result is sent to
// errCh when it is not nil.
func (c *Controller) goAction(asset, action string, f func(ctx context.Context) error, errCh chan<- error) {
	defer c.wg.Done()

	var err error
	defer func() {
		if errCh != nil {
			errCh <- err
		}
	}()
	defer c.release(asset)

	defer func() {
		if r := recover(); r != nil {
			slog.Error("CAUGHT PANIC", "panic", r)
			slog.Error(string(debug.Stack()))
			panic(r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.lifeCtx), c.opts.ActionTimeout)
	defer cancel()

	if err = f(ctx); err != nil {
		slog.Error("unit action failed", "batch", c.batch.Name, "asset", asset, "action", action, "err", err)
	}
}
