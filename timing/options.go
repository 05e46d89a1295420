// Copyright (c) 2025 BVK Chaitanya

package timing

import (
	"fmt"
	"os"
	"time"
)

type Options struct {
	// QuietPeriod is the time without new updates after which pending timing
	// updates are written to the database in one merged write.
	QuietPeriod time.Duration

	// RetryInterval is the wait time before retrying a failed write.
	RetryInterval time.Duration

	// FlushTimeout limits the time of a single database write.
	FlushTimeout time.Duration
}

func (v *Options) setDefaults() {
	if v.QuietPeriod == 0 {
		v.QuietPeriod = 100 * time.Millisecond
	}
	if v.RetryInterval == 0 {
		v.RetryInterval = time.Second
	}
	if v.FlushTimeout == 0 {
		v.FlushTimeout = 10 * time.Second
	}
}

func (v *Options) Check() error {
	if v.QuietPeriod <= 0 {
		return fmt.Errorf("quiet period must be positive: %w", os.ErrInvalid)
	}
	if v.RetryInterval <= 0 {
		return fmt.Errorf("retry interval must be positive: %w", os.ErrInvalid)
	}
	if v.FlushTimeout <= 0 {
		return fmt.Errorf("flush timeout must be positive: %w", os.ErrInvalid)
	}
	return nil
}
