// Copyright (c) 2024 BVK Chaitanya

// Package timerange defines half-open time intervals used to filter batch
// events.
package timerange

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Range is a half-open interval [Begin, End). Zero Begin or End values
// represent an open side.
type Range struct {
	Begin, End time.Time
}

func (r *Range) IsZero() bool {
	return r.Begin.IsZero() && r.End.IsZero()
}

func (r *Range) InRange(v time.Time) bool {
	if r.IsZero() {
		return true
	}
	if !r.Begin.IsZero() && v.Before(r.Begin) {
		return false
	}
	if !r.End.IsZero() && (v.Equal(r.End) || v.After(r.End)) {
		return false
	}
	return true
}

func (r *Range) String() string {
	format := func(v time.Time) string {
		if v.IsZero() {
			return "*"
		}
		return v.Format(time.RFC3339)
	}
	return fmt.Sprintf("[%s, %s)", format(r.Begin), format(r.End))
}

// Parse converts a user-friendly name into a time range. Supported values are
// "", "all", "today", "yesterday", "this-week", "last-week", "this-month",
// "last-month" and Go duration strings like "90m" for the most recent
// interval of that length.
func Parse(s string, zone *time.Location) (*Range, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" || name == "all" {
		return new(Range), nil
	}
	if fn, ok := namedRanges[name]; ok {
		return fn(nowIn(zone)), nil
	}
	d, err := time.ParseDuration(name)
	if err != nil {
		return nil, fmt.Errorf("could not parse time range %q: %w", s, os.ErrInvalid)
	}
	if d <= 0 {
		return nil, fmt.Errorf("time range duration must be positive: %w", os.ErrInvalid)
	}
	return Last(d), nil
}
