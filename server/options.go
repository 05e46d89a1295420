// Copyright (c) 2023 BVK Chaitanya

package server

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
)

type Options struct {
	// NoResume when true doesn't resume the batches that were running before
	// the last shutdown.
	NoResume bool

	// PollInterval is the reconciliation interval of the batches.
	PollInterval time.Duration

	// LowBalanceLimit, when positive, sends an alert when an account's
	// available balance falls below the limit.
	LowBalanceLimit decimal.Decimal

	// AlertFreezeInterval is the minimum time between two low balance alerts
	// for an account.
	AlertFreezeInterval time.Duration

	// NotifyTimeout limits the time to deliver a message to the messengers.
	NotifyTimeout time.Duration
}

func (v *Options) setDefaults() {
	if v.PollInterval == 0 {
		v.PollInterval = 2500 * time.Millisecond
	}
	if v.AlertFreezeInterval == 0 {
		v.AlertFreezeInterval = time.Hour
	}
	if v.NotifyTimeout == 0 {
		v.NotifyTimeout = 30 * time.Second
	}
}

func (v *Options) Check() error {
	if v.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive: %w", os.ErrInvalid)
	}
	if v.LowBalanceLimit.IsNegative() {
		return fmt.Errorf("low balance limit cannot be negative: %w", os.ErrInvalid)
	}
	return nil
}
