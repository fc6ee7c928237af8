package core

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out float64
		ok  bool
	}{
		{"1", 1, true},
		{"1.23", 1.23, true},
		{"1,23", 1.23, true},
		{" 2.50 ", 2.5, true},
		{"0.01", 0.01, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if !errors.Is(err, ErrInvalidAmount) {
				t.Fatalf("%q expected ErrInvalidAmount, got %v", tc.in, err)
			}
		}
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		value float64
		code  string
		want  string
	}{
		{8.4, "USD", "$8.40"},
		{4.2, "usd", "$4.20"},
		{0, "USD", "$0.00"},
		{8.4, "XYZ", "8.40 XYZ"},
	}
	for _, tc := range cases {
		if got := FormatAmount(tc.value, tc.code); got != tc.want {
			t.Fatalf("FormatAmount(%v, %q) = %q, want %q", tc.value, tc.code, got, tc.want)
		}
	}
}

func TestSymbol(t *testing.T) {
	if got := Symbol("INR"); got != "₹" {
		t.Fatalf("INR symbol = %q", got)
	}
	if got := Symbol("XYZ"); got != "XYZ" {
		t.Fatalf("unknown symbol = %q", got)
	}
}
