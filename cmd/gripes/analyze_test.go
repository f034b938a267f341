package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/gripes/internal/ai"
	"github.com/steveyegge/gripes/internal/config"
	"github.com/steveyegge/gripes/internal/embed"
	"github.com/steveyegge/gripes/internal/logging"
	"github.com/steveyegge/gripes/internal/storage/sqlite"
)

const feedbackJSONL = `{"text": "The battery dies before lunch every day", "url": "https://reddit.com/r/phone/1", "source": "reddit"}
{"text": "The battery dies before lunch every day", "url": "https://youtube.com/watch?v=2", "source": "youtube"}
# comments and blank lines are ignored

{"text": "The camera is terrible in low light", "url": "https://reddit.com/r/phone/3", "source": "reddit"}
`

func writeFeedback(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "feedback.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(feedbackJSONL), 0644))
	return path
}

// setupOfflineConfig points the global config at a local JSONL file with no hosted providers
func setupOfflineConfig(t *testing.T, input string) {
	t.Helper()
	color.NoColor = true

	prevCfg, prevLogger := cfg, logging.Logger
	t.Cleanup(func() { cfg, logging.Logger = prevCfg, prevLogger })
	logging.Logger = logging.Discard()

	cfg = config.Default()
	cfg.Product = "Phone"
	cfg.Sources = []string{"file"}
	cfg.Input = input
	cfg.Classifier.Provider = config.ClassifierKeyword
	cfg.Embedder.Provider = embed.ProviderHash
	cfg.Embedder.CacheSize = 0
	require.NoError(t, cfg.Validate())
}

func TestRunAnalyzeWithStoreAndResume(t *testing.T) {
	dir := t.TempDir()
	setupOfflineConfig(t, writeFeedback(t, dir))

	storePath := filepath.Join(dir, "gripes.db")
	opts := analyzeOptions{
		out:       filepath.Join(dir, "out", "complaints.csv"),
		matrixOut: filepath.Join(dir, "out", "matrix.csv"),
		store:     storePath,
		top:       10,
		verify:    true,
	}

	var first bytes.Buffer
	require.NoError(t, runAnalyze(context.Background(), &first, opts))
	assert.Contains(t, first.String(), "The battery dies before lunch every day")
	assert.Contains(t, first.String(), "Saved 2 clusters (3 items)")
	assert.Contains(t, first.String(), "Matrix matches clusters")
	assert.FileExists(t, opts.out)
	assert.FileExists(t, opts.matrixOut)

	opts.resume = true
	var second bytes.Buffer
	require.NoError(t, runAnalyze(context.Background(), &second, opts))
	assert.Contains(t, second.String(), "Resumed 2 clusters (3 items)")
	assert.Contains(t, second.String(), "Saved 2 clusters (6 items)")

	assert.NoFileExists(t, storePath+".lock")

	store, err := sqlite.New(storePath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	runs, err := store.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestRunAnalyzeWarnsBeforeReplacingStore(t *testing.T) {
	dir := t.TempDir()
	setupOfflineConfig(t, writeFeedback(t, dir))
	opts := analyzeOptions{store: filepath.Join(dir, "gripes.csv"), top: 10}

	var first bytes.Buffer
	require.NoError(t, runAnalyze(context.Background(), &first, opts))
	assert.NotContains(t, first.String(), "already holds")

	var second bytes.Buffer
	require.NoError(t, runAnalyze(context.Background(), &second, opts))
	assert.Contains(t, second.String(), "already holds 2 clusters; this run replaces them")
	assert.Contains(t, second.String(), "Saved 2 clusters (3 items)")
}

func TestRunAnalyzeWithoutStore(t *testing.T) {
	dir := t.TempDir()
	setupOfflineConfig(t, writeFeedback(t, dir))

	var out bytes.Buffer
	require.NoError(t, runAnalyze(context.Background(), &out, analyzeOptions{top: 1}))
	assert.Contains(t, out.String(), "Top 1 complaints about Phone")
	assert.Contains(t, out.String(), "Run summary")
	assert.NotContains(t, out.String(), "Saved")
}

func TestRunOffline(t *testing.T) {
	dir := t.TempDir()
	setupOfflineConfig(t, "")
	matrixPath := filepath.Join(dir, "matrix.csv")

	var out bytes.Buffer
	err := runOffline(context.Background(), &out, "Phone", writeFeedback(t, dir),
		ai.KeywordClassifier{}, embed.NewHashEmbedder(0), matrixPath, 5)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Feedback matrix for Phone")
	assert.Contains(t, out.String(), "By feature:")

	data, err := os.ReadFile(matrixPath)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "battery"), "matrix CSV lists the battery row")
}

func TestRunOfflineMissingFile(t *testing.T) {
	setupOfflineConfig(t, "")

	var out bytes.Buffer
	err := runOffline(context.Background(), &out, "Phone", filepath.Join(t.TempDir(), "missing.jsonl"),
		ai.KeywordClassifier{}, embed.NewHashEmbedder(0), "", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read")
}

func TestClassifierName(t *testing.T) {
	c := config.Default()
	c.Classifier.Provider = config.ClassifierKeyword
	assert.Equal(t, "keyword", classifierName(c))

	c.Classifier.Provider = config.ClassifierOpenAI
	c.Classifier.Model = "gpt-4o-mini"
	assert.Equal(t, "openai/gpt-4o-mini", classifierName(c))
}
