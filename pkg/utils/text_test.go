package utils

import (
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if Truncate("hello world", 5) != "hello..." {
		t.Errorf("got %s", Truncate("hello world", 5))
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
	if got := Truncate("héllo", 2); got != "hé..." {
		t.Errorf("multibyte: got %q", got)
	}
}

func TestStripListMarker(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"1. What is your approach?", "What is your approach?"},
		{"  (2) Next question", "Next question"},
		{"3) Third", "Third"},
		{"4- Fourth", "Fourth"},
		{"- bullet", "bullet"},
		{"* star", "star"},
		{"• dot", "dot"},
		{"2024 was a good year", "2024 was a good year"},
		{"-no space", "-no space"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := StripListMarker(tt.in); got != tt.want {
			t.Errorf("StripListMarker(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStripListMarkers(t *testing.T) {
	got := StripListMarkers("1. First line\n- Second line\n\n")
	if got != "First line\nSecond line" {
		t.Errorf("got %q", got)
	}
}

func TestNormalizeKey(t *testing.T) {
	if got := NormalizeKey("  Child   Refuses\tHomework "); got != "child refuses homework" {
		t.Errorf("got %q", got)
	}
	if got := CollapseWhitespace("a \n b"); got != "a b" {
		t.Errorf("got %q", got)
	}
}
