package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/steveyegge/gripes/internal/events"
)

// displayRunEvent prints one event as two lines: a headline and its key metadata
func displayRunEvent(w io.Writer, event *events.RunEvent) {
	emoji := getEventEmoji(event)
	severityColor := getSeverityColor(event.Severity)
	timestamp := event.Timestamp.Format("15:04:05")
	eventType := color.New(color.FgMagenta).Sprint(event.Type)

	maxMessageLen := 70 - len(string(event.Type))
	message := truncateString(event.Message, maxMessageLen)

	fmt.Fprintf(w, "%s [%s] %s: %s\n", emoji, timestamp, eventType, severityColor.Sprint(message))

	metadata := extractEventMetadata(event)
	if metadata != "" {
		fmt.Fprintf(w, "  %s\n", color.New(color.FgHiBlack).Sprint(metadata))
	} else {
		fmt.Fprintln(w)
	}
}

func getEventEmoji(event *events.RunEvent) string {
	switch event.Type {
	case events.EventTypeRunStarted:
		return "🚀"
	case events.EventTypeRunCompleted:
		if event.Severity == events.SeverityError {
			return "❌"
		}
		return "✅"
	case events.EventTypeSourceFetched:
		return "📥"
	case events.EventTypeSourceFailed:
		return "🚫"
	case events.EventTypeItemSkipped:
		return "⏭️"
	case events.EventTypeClusterCreated:
		return "✨"
	case events.EventTypeClusterMerged:
		return "🔀"
	case events.EventTypeStateRestored:
		return "📂"
	case events.EventTypeStateSaved:
		return "💾"
	case events.EventTypeEventCleanupCompleted:
		return "🧹"
	}

	switch event.Severity {
	case events.SeverityInfo:
		return "ℹ️"
	case events.SeverityWarning:
		return "⚠️"
	case events.SeverityError:
		return "❌"
	default:
		return "•"
	}
}

func getSeverityColor(severity events.EventSeverity) *color.Color {
	switch severity {
	case events.SeverityInfo:
		return color.New(color.FgCyan)
	case events.SeverityWarning:
		return color.New(color.FgYellow)
	case events.SeverityError:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgWhite)
	}
}

// extractEventMetadata picks the few fields worth showing for each event type,
// joined with " | "
func extractEventMetadata(event *events.RunEvent) string {
	var fields []string

	switch event.Type {
	case events.EventTypeSourceFetched:
		// source_fetched: source | items | duration
		fields = []string{
			getStringField(event.Data, "source", "unknown"),
			fmt.Sprintf("%d items", getIntField(event.Data, "items", 0)),
			formatDurationMs(getIntField(event.Data, "duration_ms", 0)),
		}

	case events.EventTypeSourceFailed:
		fields = []string{
			getStringField(event.Data, "source", "unknown"),
			truncateString(getStringField(event.Data, "error", ""), 50),
		}

	case events.EventTypeItemSkipped:
		// item_skipped: reason | source | item
		fields = []string{
			getStringField(event.Data, "reason", "unknown"),
			getStringField(event.Data, "source", ""),
			truncateString(getStringField(event.Data, "item_id", ""), 20),
		}

	case events.EventTypeClusterCreated, events.EventTypeClusterMerged:
		// decision: cluster | feature | similarity | compared
		fields = []string{
			getStringField(event.Data, "cluster_id", ""),
			getStringField(event.Data, "feature", ""),
			fmt.Sprintf("%.2f sim", getFloatField(event.Data, "similarity", 0)),
			fmt.Sprintf("%d compared", getIntField(event.Data, "compared", 0)),
		}

	case events.EventTypeRunCompleted:
		// run_completed: submitted | created | merged | duration
		fields = []string{
			fmt.Sprintf("%d submitted", getIntField(event.Data, "submitted", 0)),
			fmt.Sprintf("%d new", getIntField(event.Data, "created", 0)),
			fmt.Sprintf("%d merged", getIntField(event.Data, "merged", 0)),
			formatDurationMs(getIntField(event.Data, "duration_ms", 0)),
		}
		if getBoolField(event.Data, "partial", false) {
			fields = append(fields, "partial")
		}

	case events.EventTypeStateRestored, events.EventTypeStateSaved:
		fields = []string{
			fmt.Sprintf("%d clusters", getIntField(event.Data, "clusters", 0)),
			fmt.Sprintf("%d items", getIntField(event.Data, "items", 0)),
			truncateString(getStringField(event.Data, "store", ""), 30),
		}

	case events.EventTypeEventCleanupCompleted:
		fields = []string{
			fmt.Sprintf("%d events", getIntField(event.Data, "events_deleted", 0)),
			fmt.Sprintf("%d runs", getIntField(event.Data, "runs_deleted", 0)),
			formatDurationMs(getIntField(event.Data, "processing_time_ms", 0)),
		}

	default:
		if err, ok := event.Data["error"].(string); ok {
			fields = append(fields, truncateString(err, 50))
		}
		if duration := getIntField(event.Data, "duration_ms", 0); duration > 0 {
			fields = append(fields, formatDurationMs(duration))
		}
	}

	return truncateString(joinFields(fields), 70)
}

// shouldSkipEvent hides per-item decisions unless verbose
func shouldSkipEvent(event *events.RunEvent, verbose bool) bool {
	if verbose {
		return false
	}
	switch event.Type {
	case events.EventTypeClusterCreated, events.EventTypeClusterMerged, events.EventTypeItemSkipped:
		return true
	}
	return false
}

func getStringField(data map[string]interface{}, key, defaultValue string) string {
	if val, ok := data[key].(string); ok {
		return val
	}
	return defaultValue
}

func getIntField(data map[string]interface{}, key string, defaultValue int) int {
	switch val := data[key].(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		return int(val)
	}
	return defaultValue
}

func getFloatField(data map[string]interface{}, key string, defaultValue float64) float64 {
	switch val := data[key].(type) {
	case float64:
		return val
	case int:
		return float64(val)
	}
	return defaultValue
}

func getBoolField(data map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := data[key].(bool); ok {
		return val
	}
	return defaultValue
}

// formatDurationMs formats milliseconds into a human-readable duration
func formatDurationMs(ms int) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	return fmt.Sprintf("%.1fm", float64(ms)/60000)
}

// joinFields joins the non-empty fields with " | "
func joinFields(fields []string) string {
	nonEmpty := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			nonEmpty = append(nonEmpty, f)
		}
	}
	return strings.Join(nonEmpty, " | ")
}

// truncateString shortens s to maxLen runes, ending with "..."
func truncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
