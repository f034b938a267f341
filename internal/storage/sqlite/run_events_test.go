package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/steveyegge/gripes/internal/events"
)

func storeTestEvent(t *testing.T, store *SQLiteStore, id, runID string, typ events.EventType, sev events.EventSeverity, ts time.Time) {
	t.Helper()
	e := &events.RunEvent{
		ID:        id,
		Type:      typ,
		Timestamp: ts,
		RunID:     runID,
		Severity:  sev,
		Message:   string(typ),
		Data:      map[string]interface{}{"n": 1},
	}
	if err := store.StoreEvent(context.Background(), e); err != nil {
		t.Fatalf("Failed to store event %s: %v", id, err)
	}
}

func TestRunEventStorage(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("StoreTypedEvent", func(t *testing.T) {
		e, err := events.NewSourceFetchedEvent("run-1", events.SourceFetchedData{Source: "reddit", Items: 12, DurationMs: 340})
		if err != nil {
			t.Fatalf("Failed to build event: %v", err)
		}
		e.Timestamp = base
		if err := store.StoreEvent(ctx, e); err != nil {
			t.Fatalf("Failed to store event: %v", err)
		}

		got, err := store.GetEvents(ctx, events.EventFilter{Type: events.EventTypeSourceFetched})
		if err != nil {
			t.Fatalf("Failed to get events: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("Expected 1 event, got %d", len(got))
		}
		if got[0].ID != e.ID || got[0].RunID != "run-1" {
			t.Errorf("Unexpected event %+v", got[0])
		}
		if !got[0].Timestamp.Equal(base) {
			t.Errorf("Timestamp = %v, want %v", got[0].Timestamp, base)
		}
		data, err := got[0].GetSourceFetchedData()
		if err != nil {
			t.Fatalf("Failed to decode data: %v", err)
		}
		if data.Source != "reddit" || data.Items != 12 {
			t.Errorf("Unexpected data %+v", data)
		}
	})

	storeTestEvent(t, store, "e-2", "run-1", events.EventTypeClusterCreated, events.SeverityInfo, base.Add(time.Second))
	storeTestEvent(t, store, "e-3", "run-1", events.EventTypeItemSkipped, events.SeverityWarning, base.Add(2*time.Second))
	storeTestEvent(t, store, "e-4", "run-2", events.EventTypeRunCompleted, events.SeverityError, base.Add(3*time.Second))

	t.Run("FilterByRun", func(t *testing.T) {
		got, err := store.GetEvents(ctx, events.EventFilter{RunID: "run-1"})
		if err != nil {
			t.Fatalf("Failed to get events: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("Expected 3 events, got %d", len(got))
		}
		if got[1].ID != "e-2" || got[2].ID != "e-3" {
			t.Errorf("Expected oldest first, got %s, %s", got[1].ID, got[2].ID)
		}
	})

	t.Run("FilterBySeverity", func(t *testing.T) {
		got, err := store.GetEvents(ctx, events.EventFilter{Severity: events.SeverityError})
		if err != nil {
			t.Fatalf("Failed to get events: %v", err)
		}
		if len(got) != 1 || got[0].ID != "e-4" {
			t.Errorf("Expected only e-4, got %v", got)
		}
	})

	t.Run("FilterAfterTimeWithLimit", func(t *testing.T) {
		got, err := store.GetEvents(ctx, events.EventFilter{AfterTime: base, Limit: 2})
		if err != nil {
			t.Fatalf("Failed to get events: %v", err)
		}
		if len(got) != 2 || got[0].ID != "e-2" || got[1].ID != "e-3" {
			t.Errorf("Expected e-2, e-3, got %v", got)
		}
	})

	t.Run("RecentEventsNewestFirst", func(t *testing.T) {
		got, err := store.GetRecentEvents(ctx, 2)
		if err != nil {
			t.Fatalf("Failed to get events: %v", err)
		}
		if len(got) != 2 || got[0].ID != "e-4" || got[1].ID != "e-3" {
			t.Errorf("Expected e-4, e-3, got %v", got)
		}
		if got[0].Data["n"] != float64(1) {
			t.Errorf("Data = %v, want n=1", got[0].Data)
		}
	})

	t.Run("DuplicateIDRejected", func(t *testing.T) {
		e := &events.RunEvent{ID: "e-2", Type: events.EventTypeClusterMerged, Timestamp: base, Severity: events.SeverityInfo}
		if err := store.StoreEvent(ctx, e); err == nil {
			t.Error("Expected error storing a duplicate event ID")
		}
	})
}
