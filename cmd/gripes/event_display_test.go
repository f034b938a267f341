package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/steveyegge/gripes/internal/events"
)

func TestExtractEventMetadata(t *testing.T) {
	tests := []struct {
		name      string
		eventType events.EventType
		data      map[string]interface{}
		expected  string
	}{
		{
			name:      "source fetched",
			eventType: events.EventTypeSourceFetched,
			data:      map[string]interface{}{"source": "reddit", "items": 42, "duration_ms": 1500},
			expected:  "reddit | 42 items | 1.5s",
		},
		{
			name:      "source fetched from stored JSON",
			eventType: events.EventTypeSourceFetched,
			data:      map[string]interface{}{"source": "youtube", "items": float64(7), "duration_ms": float64(320)},
			expected:  "youtube | 7 items | 320ms",
		},
		{
			name:      "source fetched with missing fields",
			eventType: events.EventTypeSourceFetched,
			data:      map[string]interface{}{},
			expected:  "unknown | 0 items | 0ms",
		},
		{
			name:      "cluster merged",
			eventType: events.EventTypeClusterMerged,
			data:      map[string]interface{}{"cluster_id": "c-0003", "feature": "battery", "similarity": 0.912, "compared": 4},
			expected:  "c-0003 | battery | 0.91 sim | 4 compared",
		},
		{
			name:      "item skipped drops empty fields",
			eventType: events.EventTypeItemSkipped,
			data:      map[string]interface{}{"reason": "too_short"},
			expected:  "too_short",
		},
		{
			name:      "partial run",
			eventType: events.EventTypeRunCompleted,
			data:      map[string]interface{}{"submitted": 10, "created": 4, "merged": 6, "duration_ms": 90000, "partial": true},
			expected:  "10 submitted | 4 new | 6 merged | 1.5m | partial",
		},
		{
			name:      "state saved",
			eventType: events.EventTypeStateSaved,
			data:      map[string]interface{}{"clusters": 3, "items": 9, "store": "gripes.db"},
			expected:  "3 clusters | 9 items | gripes.db",
		},
		{
			name:      "unknown type falls back to error and duration",
			eventType: events.EventType("something_else"),
			data:      map[string]interface{}{"error": "boom", "duration_ms": 12},
			expected:  "boom | 12ms",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &events.RunEvent{Type: tt.eventType, Data: tt.data}
			if got := extractEventMetadata(event); got != tt.expected {
				t.Errorf("extractEventMetadata() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestShouldSkipEvent(t *testing.T) {
	tests := []struct {
		eventType events.EventType
		verbose   bool
		skip      bool
	}{
		{events.EventTypeClusterCreated, false, true},
		{events.EventTypeClusterMerged, false, true},
		{events.EventTypeItemSkipped, false, true},
		{events.EventTypeClusterMerged, true, false},
		{events.EventTypeSourceFetched, false, false},
		{events.EventTypeRunCompleted, false, false},
	}
	for _, tt := range tests {
		got := shouldSkipEvent(&events.RunEvent{Type: tt.eventType}, tt.verbose)
		if got != tt.skip {
			t.Errorf("shouldSkipEvent(%s, verbose=%v) = %v, want %v", tt.eventType, tt.verbose, got, tt.skip)
		}
	}
}

func TestDisplayRunEvent(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	displayRunEvent(&buf, &events.RunEvent{
		Type:      events.EventTypeSourceFailed,
		Timestamp: time.Date(2026, 3, 1, 14, 5, 9, 0, time.Local),
		Severity:  events.SeverityWarning,
		Message:   "twitter failed",
		Data:      map[string]interface{}{"source": "twitter", "error": "access level insufficient"},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two lines, got %q", buf.String())
	}
	if !strings.Contains(lines[0], "[14:05:09] source_failed: twitter failed") {
		t.Errorf("unexpected headline %q", lines[0])
	}
	if strings.TrimSpace(lines[1]) != "twitter | access level insufficient" {
		t.Errorf("unexpected metadata %q", lines[1])
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"héllo wörld", 8, "héllo..."},
		{"abc", 0, ""},
		{"abcdef", 2, "ab"},
	}
	for _, tt := range tests {
		if got := truncateString(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}
