package repl

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/gripes/internal/deduplication"
	"github.com/steveyegge/gripes/internal/embed"
	"github.com/steveyegge/gripes/internal/types"
)

var testEmbedder = embed.NewHashEmbedder(0)

func newTestREPL(t *testing.T, withEmbedder bool) (*REPL, *bytes.Buffer) {
	t.Helper()
	color.NoColor = true

	engine, err := deduplication.NewEngine(deduplication.DefaultConfig())
	require.NoError(t, err)
	items := []struct {
		id, summary string
		feature     types.Feature
		source      types.Source
	}{
		{"r1", "Camera photos look washed out", types.FeatureCamera, types.SourceReddit},
		{"r2", "The battery dies before lunch", types.FeatureBattery, types.SourceReddit},
		{"y1", "The battery dies before lunch", types.FeatureBattery, types.SourceYouTube},
	}
	for _, it := range items {
		vec, err := testEmbedder.Embed(context.Background(), it.summary)
		require.NoError(t, err)
		_, err = engine.Submit(&types.FeedbackItem{
			ID:           it.id,
			RawText:      it.summary,
			Summary:      it.summary,
			Feature:      it.feature,
			FeedbackType: types.FeedbackWorseThanCompetitor,
			Source:       it.source,
			URL:          "https://example.com/" + it.id,
		}, vec)
		require.NoError(t, err)
	}

	var out bytes.Buffer
	cfg := &Config{Engine: engine, Product: "Nothing Phone 3a", Out: &out}
	if withEmbedder {
		cfg.Embedder = testEmbedder
	}
	r, err := New(cfg)
	require.NoError(t, err)
	return r, &out
}

func TestNewRequiresEngine(t *testing.T) {
	_, err := New(&Config{})
	assert.Error(t, err)
	_, err = New(nil)
	assert.Error(t, err)
}

func TestCommands(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr string
	}{
		{name: "help", input: "help", want: []string{"Available Commands:", "top [n]", "find <text>"}},
		{name: "help alias", input: "?", want: []string{"Available Commands:"}},
		{name: "top", input: "top", want: []string{"Top 10 complaints", "The battery dies before lunch", "reddit:1;youtube:1"}},
		{name: "top n", input: "top 1", want: []string{"Top 1 complaints", "battery"}},
		{name: "top bad n", input: "top many", wantErr: "invalid count"},
		{name: "top zero", input: "top 0", wantErr: "invalid count"},
		{name: "matrix", input: "matrix", want: []string{"Feedback matrix", "By feature:", "By source:"}},
		{name: "sources", input: "sources", want: []string{"reddit", "youtube", "66.7%", "total"}},
		{name: "show", input: "show c-0002", want: []string{"c-0002 The battery dies before lunch", "Count:    2", "https://example.com/y1"}},
		{name: "show missing", input: "show c-9999", wantErr: "not found"},
		{name: "show usage", input: "show", wantErr: "usage"},
		{name: "feature", input: "feature Camera", want: []string{"camera complaints", "Camera photos look washed out"}},
		{name: "feature usage", input: "feature", wantErr: "usage"},
		{name: "stats", input: "stats", want: []string{"Clusters:   2", "Accepted:   3 (created 2, merged 1)"}},
		{name: "case insensitive", input: "STATS", want: []string{"Clusters:   2"}},
		{name: "unknown", input: "frobnicate", want: []string{"Unknown command"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, out := newTestREPL(t, false)
			err := r.processInput(tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			for _, want := range tt.want {
				assert.Contains(t, out.String(), want)
			}
		})
	}
}

func TestFeatureExcludesOtherFeatures(t *testing.T) {
	r, out := newTestREPL(t, false)
	require.NoError(t, r.processInput("feature battery"))
	assert.Contains(t, out.String(), "The battery dies before lunch")
	assert.NotContains(t, out.String(), "Camera photos")
}

func TestFind(t *testing.T) {
	r, out := newTestREPL(t, true)
	require.NoError(t, r.processInput("find The battery dies before lunch"))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2, "one line per feature")
	assert.Contains(t, lines[0], "✓")
	assert.Contains(t, lines[0], "c-0002")
	assert.Contains(t, lines[0], "1.000")
	assert.Contains(t, lines[1], "c-0001")
}

func TestFindErrors(t *testing.T) {
	r, _ := newTestREPL(t, false)
	err := r.processInput("find battery")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedder")

	r, _ = newTestREPL(t, true)
	err = r.processInput("find")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usage")
}

func TestExit(t *testing.T) {
	for _, cmd := range []string{"exit", "quit"} {
		r, out := newTestREPL(t, false)
		err := r.processInput(cmd)
		assert.True(t, errors.Is(err, io.EOF), "%s should signal exit", cmd)
		assert.Contains(t, out.String(), "Goodbye!")
	}
}

func TestCompleter(t *testing.T) {
	r, _ := newTestREPL(t, false)
	completer := r.completer()

	line := []rune("show c-")
	suggestions, length := completer.Do(line, len(line))
	assert.Equal(t, len("c-"), length)
	got := make([]string, len(suggestions))
	for i, s := range suggestions {
		got[i] = strings.TrimSpace(string(s))
	}
	assert.ElementsMatch(t, []string{"0001", "0002"}, got)

	line = []rune("mat")
	suggestions, _ = completer.Do(line, len(line))
	require.Len(t, suggestions, 1)
	assert.Equal(t, "rix", strings.TrimSpace(string(suggestions[0])))
}
