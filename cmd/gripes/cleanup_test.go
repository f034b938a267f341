package main

import (
	"testing"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		input    int
		expected string
	}{
		{0, "0"},
		{42, "42"},
		{999, "999"},
		{1000, "1,000"},
		{99999, "99,999"},
		{1000000, "1,000,000"},
		{1234567, "1,234,567"},
		{1234567890, "1,234,567,890"},
		{-1, "-1"},
		{-1234567, "-1,234,567"},
	}

	for _, tt := range tests {
		result := formatNumber(tt.input)
		if result != tt.expected {
			t.Errorf("formatNumber(%d) = %s; want %s", tt.input, result, tt.expected)
		}
	}
}

func TestFormatLimit(t *testing.T) {
	if got := formatLimit(0); got != "unlimited" {
		t.Errorf("formatLimit(0) = %s; want unlimited", got)
	}
	if got := formatLimit(5000); got != "5,000" {
		t.Errorf("formatLimit(5000) = %s; want 5,000", got)
	}
}
