package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/steveyegge/gripes/internal/types"
)

// CSVHeader is the column layout written by WriteCSV
var CSVHeader = []string{"Summary", "Count", "Feature", "Feedback Type", "Sources", "Examples"}

const exampleSep = " | "

// WriteCSV writes rows under CSVHeader
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range rows {
		rec := []string{
			r.Summary,
			strconv.Itoa(r.Count),
			string(r.Feature),
			string(r.FeedbackType),
			r.SourceSummary(),
			strings.Join(r.Examples, exampleSep),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a file written by WriteCSV. Only the Summary and Count columns are
// required, so bare two-column top-complaints files load too; missing labels fall
// back to other/unknown. Rows with a blank summary are returned as they are (a
// count that does not parse becomes 0) so callers can count them as skipped.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"summary", "count"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing %q column", required)
		}
	}
	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		summary := field(rec, "summary")
		if summary == "" {
			n, _ := strconv.Atoi(field(rec, "count"))
			rows = append(rows, Row{Count: n})
			continue
		}
		count, err := strconv.Atoi(field(rec, "count"))
		if err != nil || count < 1 {
			return nil, fmt.Errorf("line %d: invalid count %q", line, field(rec, "count"))
		}
		row := Row{
			Summary:      summary,
			Count:        count,
			Feature:      types.ParseFeature(field(rec, "feature")),
			FeedbackType: types.ParseFeedbackType(field(rec, "feedback type")),
		}
		if s := field(rec, "sources"); s != "" {
			row.Sources = ParseSourceSummary(s)
		}
		if ex := field(rec, "examples"); ex != "" {
			row.Examples = strings.Split(ex, exampleSep)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteMatrixCSV writes one line per feature with a column per feedback type and a total
func WriteMatrixCSV(w io.Writer, m types.AggregateMatrix) error {
	cw := csv.NewWriter(w)
	fbTypes := m.FeedbackTypes()

	header := []string{"Feature"}
	for _, t := range fbTypes {
		header = append(header, string(t))
	}
	header = append(header, "Total")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, f := range m.Features() {
		rec := []string{string(f)}
		for _, t := range fbTypes {
			rec = append(rec, strconv.Itoa(m.Cell(f, t)))
		}
		rec = append(rec, strconv.Itoa(m.FeatureTotal(f)))
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes v as indented JSON
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
