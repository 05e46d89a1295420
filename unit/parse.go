// Copyright (c) 2025 BVK Chaitanya

package unit

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Request holds the parameters for creating a unit manually.
type Request struct {
	Asset    string
	Size     decimal.Decimal
	Leverage int

	// RecreateTiming is the unit lifetime after which it is recreated.
	RecreateTiming time.Duration
}

// MinutesToDuration converts a possibly fractional number of minutes into a
// duration with millisecond precision.
func MinutesToDuration(minutes decimal.Decimal) time.Duration {
	ms := minutes.Mul(decimal.NewFromInt(60000)).IntPart()
	return time.Duration(ms) * time.Millisecond
}

// ParseRequest parses a single `asset:size:leverage:minutes` line.
func ParseRequest(line string) (*Request, error) {
	fields := strings.Split(strings.TrimSpace(line), ":")
	if len(fields) != 4 {
		return nil, fmt.Errorf("wanted asset:size:leverage:minutes, got %q: %w", line, os.ErrInvalid)
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	asset := strings.ToUpper(fields[0])
	if asset == "" {
		return nil, fmt.Errorf("asset name cannot be empty: %w", os.ErrInvalid)
	}
	size, err := decimal.NewFromString(fields[1])
	if err != nil || !size.IsPositive() {
		return nil, fmt.Errorf("size %q must be a positive number: %w", fields[1], os.ErrInvalid)
	}
	leverage, err := strconv.Atoi(fields[2])
	if err != nil || leverage <= 0 {
		return nil, fmt.Errorf("leverage %q must be a positive integer: %w", fields[2], os.ErrInvalid)
	}
	minutes, err := decimal.NewFromString(fields[3])
	if err != nil || !minutes.IsPositive() {
		return nil, fmt.Errorf("minutes %q must be a positive number: %w", fields[3], os.ErrInvalid)
	}
	req := &Request{
		Asset:          asset,
		Size:           size,
		Leverage:       leverage,
		RecreateTiming: MinutesToDuration(minutes),
	}
	if req.RecreateTiming <= 0 {
		return nil, fmt.Errorf("recreate timing %q is too small: %w", fields[3], os.ErrInvalid)
	}
	return req, nil
}

// ParseImport parses newline separated `asset:size:leverage:minutes` lines.
// Malformed lines are dropped.
func ParseImport(text string) []*Request {
	var reqs []*Request
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		req, err := ParseRequest(line)
		if err != nil {
			continue
		}
		reqs = append(reqs, req)
	}
	return reqs
}
