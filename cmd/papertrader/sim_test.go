package main

import (
	"testing"
)

func TestParseDecision(t *testing.T) {
	tests := []struct {
		input   []string
		kind    string
		qty     int64
		price   float64
		reason  string
		wantErr bool
	}{
		{[]string{"skip"}, "skip", 0, 0, "", false},
		{[]string{"SKIP", "no", "signal"}, "skip", 0, 0, "no signal", false},
		{[]string{"buy", "200"}, "buy", 200, 0, "", false},
		{[]string{"buy", "200", "12.5", "breakout"}, "buy", 200, 12.5, "breakout", false},
		{[]string{"sell", "100", "take", "profit"}, "sell", 100, 0, "take profit", false},
		{[]string{"buy"}, "", 0, 0, "", true},
		{[]string{"buy", "-5"}, "", 0, 0, "", true},
		{[]string{"sell", "100", "-1"}, "", 0, 0, "", true},
		{[]string{"short", "100"}, "", 0, 0, "", true},
	}

	for _, tt := range tests {
		kind, qty, price, reason, err := parseDecision(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseDecision(%v): expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseDecision(%v): unexpected error %v", tt.input, err)
			continue
		}
		if kind != tt.kind || qty != tt.qty || price != tt.price || reason != tt.reason {
			t.Errorf("parseDecision(%v) = %q %d %v %q, want %q %d %v %q",
				tt.input, kind, qty, price, reason, tt.kind, tt.qty, tt.price, tt.reason)
		}
	}
}

func TestMACell(t *testing.T) {
	v := 12.5
	values := []*float64{nil, &v}

	if got := maCell(values, 0); got != "-" {
		t.Errorf("expected -, got %q", got)
	}
	if got := maCell(values, 1); got != "12.50" {
		t.Errorf("expected 12.50, got %q", got)
	}
	if got := maCell(values, 5); got != "-" {
		t.Errorf("expected - past the end, got %q", got)
	}
}
