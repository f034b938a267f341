package export

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/steveyegge/gripes/internal/types"
)

// RenderOptions controls terminal tables
type RenderOptions struct {
	Title        string // header line; empty for none
	SummaryWidth int    // summaries are truncated to this many runes (default: 60)
	BarWidth     int    // width of distribution bars (default: 30)
	ShowSources  bool   // add a per-source column to RenderTable
}

func (o RenderOptions) withDefaults() RenderOptions {
	if o.SummaryWidth <= 0 {
		o.SummaryWidth = 60
	}
	if o.BarWidth <= 0 {
		o.BarWidth = 30
	}
	return o
}

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	labelColor  = color.New(color.FgYellow)
	grayColor   = color.New(color.FgHiBlack)
	badColor    = color.New(color.FgRed)
	goodColor   = color.New(color.FgGreen)
)

// RenderTable prints ranked rows
func RenderTable(w io.Writer, rows []Row, opts RenderOptions) {
	opts = opts.withDefaults()
	if opts.Title != "" {
		fmt.Fprintf(w, "\n%s\n\n", headerColor.Sprintf("=== %s ===", opts.Title))
	}
	if len(rows) == 0 {
		fmt.Fprintf(w, "  %s\n", grayColor.Sprint("No complaints yet"))
		return
	}

	fmt.Fprintf(w, "  %s\n", labelColor.Sprintf("%3s  %5s  %-13s  %-22s  %s", "#", "Count", "Feature", "Type", "Summary"))
	for i, r := range rows {
		line := fmt.Sprintf("%3d  %5d  %-13s  %s  %s",
			i+1, r.Count, r.Feature,
			typeColor(r.FeedbackType).Sprintf("%-22s", r.FeedbackType),
			truncate(r.Summary, opts.SummaryWidth))
		if opts.ShowSources && len(r.Sources) > 0 {
			line += "  " + grayColor.Sprintf("(%s)", r.SourceSummary())
		}
		fmt.Fprintf(w, "  %s\n", line)
	}
}

// RenderMatrix prints the feature x feedback-type table followed by the feature and
// source distributions as percentage bars
func RenderMatrix(w io.Writer, m types.AggregateMatrix, opts RenderOptions) {
	opts = opts.withDefaults()
	if opts.Title != "" {
		fmt.Fprintf(w, "\n%s\n\n", headerColor.Sprintf("=== %s ===", opts.Title))
	}
	total := m.Total()
	if total == 0 {
		fmt.Fprintf(w, "  %s\n", grayColor.Sprint("No feedback aggregated"))
		return
	}

	fbTypes := m.FeedbackTypes()
	header := fmt.Sprintf("%-13s", "Feature")
	for _, t := range fbTypes {
		header += fmt.Sprintf("  %9s", shortType(t))
	}
	header += fmt.Sprintf("  %6s", "Total")
	fmt.Fprintf(w, "  %s\n", labelColor.Sprint(header))

	for _, f := range m.Features() {
		line := fmt.Sprintf("%-13s", f)
		for _, t := range fbTypes {
			n := m.Cell(f, t)
			cell := fmt.Sprintf("  %9d", n)
			if n == 0 {
				cell = grayColor.Sprint(cell)
			} else {
				cell = typeColor(t).Sprint(cell)
			}
			line += cell
		}
		line += fmt.Sprintf("  %6d", m.FeatureTotal(f))
		fmt.Fprintf(w, "  %s\n", line)
	}

	fmt.Fprintf(w, "\n  %s\n", labelColor.Sprint("By feature:"))
	for _, f := range m.Features() {
		n := m.FeatureTotal(f)
		fmt.Fprintf(w, "  %-13s %s %5.1f%% (%d)\n", f, renderBar(percent(n, total), opts.BarWidth), percent(n, total), n)
	}

	fmt.Fprintf(w, "\n  %s\n", labelColor.Sprint("By source:"))
	for _, s := range m.SourceNames() {
		n := m.Sources[s]
		fmt.Fprintf(w, "  %-13s %s %5.1f%% (%d)\n", s, renderBar(percent(n, total), opts.BarWidth), percent(n, total), n)
	}
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

// renderBar draws a fixed-width bar filled to percent
func renderBar(pct float64, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int(pct / 100.0 * float64(width))
	return goodColor.Sprint(strings.Repeat("█", filled)) + grayColor.Sprint(strings.Repeat("░", width-filled))
}

func typeColor(t types.FeedbackType) *color.Color {
	switch {
	case t.IsNegative():
		return badColor
	case t == types.FeedbackVeryGoodFeature || t == types.FeedbackBetterThanCompetitor:
		return goodColor
	}
	return grayColor
}

// shortType abbreviates feedback types for matrix column headers
func shortType(t types.FeedbackType) string {
	switch t {
	case types.FeedbackMissingFeature:
		return "missing"
	case types.FeedbackUnusefulFeature:
		return "unuseful"
	case types.FeedbackWorseThanCompetitor:
		return "worse"
	case types.FeedbackVeryGoodFeature:
		return "very_good"
	case types.FeedbackBetterThanCompetitor:
		return "better"
	}
	return truncate(string(t), 9)
}

func truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	if maxRunes <= 3 {
		return "..."
	}
	r := []rune(s)
	return string(r[:maxRunes-3]) + "..."
}
