// Copyright (c) 2025 BVK Chaitanya

package timerange

import (
	"errors"
	"os"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	now := time.Now()
	for _, name := range []string{"today", "this-week", "this-month"} {
		r, err := Parse(name, nil)
		if err != nil {
			t.Fatal(err)
		}
		if !r.InRange(now) {
			t.Fatalf("wanted %s range %s to include now", name, r)
		}
	}
	for _, name := range []string{"yesterday", "last-week", "last-month"} {
		r, err := Parse(name, nil)
		if err != nil {
			t.Fatal(err)
		}
		if r.InRange(now) {
			t.Fatalf("wanted %s range %s to exclude now", name, r)
		}
	}

	r, err := Parse("90m", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !r.InRange(now) || r.InRange(now.Add(-2*time.Hour)) {
		t.Fatalf("unexpected range %s for 90m", r)
	}

	all, err := Parse("", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !all.IsZero() || !all.InRange(time.Unix(0, 0)) {
		t.Fatalf("wanted an unbounded range, got %s", all)
	}

	if _, err := Parse("-1h", nil); !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("wanted os.ErrInvalid, got %v", err)
	}
	if _, err := Parse("fortnight", nil); !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("wanted os.ErrInvalid, got %v", err)
	}
}

func TestHalfOpen(t *testing.T) {
	begin := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	r := &Range{Begin: begin, End: begin.Add(time.Hour)}
	if !r.InRange(begin) {
		t.Fatalf("wanted begin to be in range")
	}
	if r.InRange(r.End) {
		t.Fatalf("wanted end to be out of range")
	}
}

func TestNamedRanges(t *testing.T) {
	// Wednesday.
	ref := time.Date(2025, 3, 12, 15, 30, 0, 0, time.UTC)
	day := func(d int) time.Time { return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC) }

	type testCase struct {
		name       string
		begin, end time.Time
	}
	testCases := []testCase{
		{"today", day(12), day(13)},
		{"yesterday", day(11), day(12)},
		{"this-week", day(9), day(16)},
		{"last-week", day(2), day(9)},
		{"this-month", day(1), time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)},
		{"last-month", time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), day(1)},
	}
	for _, tc := range testCases {
		r := namedRanges[tc.name](ref)
		if !r.Begin.Equal(tc.begin) || !r.End.Equal(tc.end) {
			t.Fatalf("%s: wanted [%s, %s), got %s", tc.name, tc.begin, tc.end, r)
		}
	}
}
