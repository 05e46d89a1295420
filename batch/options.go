// Copyright (c) 2025 BVK Chaitanya

package batch

import (
	"fmt"
	"os"
	"time"
)

type Options struct {
	// PollInterval is the time between two reconciliation ticks.
	PollInterval time.Duration

	// ActionTimeout limits the time of a single create, close or recreate
	// action on the venue.
	ActionTimeout time.Duration

	// RefreshTimeout limits the time to fetch account states.
	RefreshTimeout time.Duration
}

func (v *Options) setDefaults() {
	if v.PollInterval == 0 {
		v.PollInterval = 2500 * time.Millisecond
	}
	if v.ActionTimeout == 0 {
		v.ActionTimeout = 5 * time.Minute
	}
	if v.RefreshTimeout == 0 {
		v.RefreshTimeout = 30 * time.Second
	}
}

func (v *Options) Check() error {
	if v.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive: %w", os.ErrInvalid)
	}
	if v.ActionTimeout <= 0 || v.RefreshTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive: %w", os.ErrInvalid)
	}
	return nil
}
