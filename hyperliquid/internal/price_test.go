// Copyright (c) 2025 BVK Chaitanya

package internal

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRoundPrice(t *testing.T) {
	tests := []struct {
		px         string
		szDecimals int
		want       string
	}{
		{"3456.789", 4, "3456.8"},
		{"123456.7", 5, "123457"},
		{"0.0123456", 0, "0.012346"},
		{"0.0123456", 2, "0.0123"},
		{"1.234567", 1, "1.2346"},
		{"27.1", 2, "27.1"},
	}
	for _, test := range tests {
		got := RoundPrice(decimal.RequireFromString(test.px), test.szDecimals)
		if FormatDecimal(got) != test.want {
			t.Fatalf("RoundPrice(%s, %d): wanted %s, got %s", test.px, test.szDecimals, test.want, FormatDecimal(got))
		}
	}
}

func TestSlippagePrice(t *testing.T) {
	mid := decimal.RequireFromString("2000")
	slip := decimal.RequireFromString("0.001")
	if v := SlippagePrice(mid, true, slip, 4); FormatDecimal(v) != "2002" {
		t.Fatalf("wanted 2002, got %s", v)
	}
	if v := SlippagePrice(mid, false, slip, 4); FormatDecimal(v) != "1998" {
		t.Fatalf("wanted 1998, got %s", v)
	}
	if v := RoundSize(decimal.RequireFromString("0.123456"), 3); FormatDecimal(v) != "0.123" {
		t.Fatalf("wanted 0.123, got %s", v)
	}
}
