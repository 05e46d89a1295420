// Copyright (c) 2025 BVK Chaitanya

package gobs

import "time"

type Batch struct {
	ID   string
	Name string

	AccountIDs []string

	// DefaultRecreateTiming is used for units that don't have a per-asset
	// override.
	DefaultRecreateTiming time.Duration

	// SmartBalanceUsage places the larger legs of a unit on the accounts with
	// the higher balances instead of a random placement.
	SmartBalanceUsage bool

	CreateTime time.Time
}

type UnitTiming struct {
	OpenedTiming   time.Time
	RecreateTiming time.Duration
}

type UnitTimings struct {
	BatchID string

	Timings map[string]*UnitTiming
}

type Event struct {
	BatchID   string
	BatchName string
	Asset     string

	Action  string
	Status  string
	Message string

	Time time.Time
}
