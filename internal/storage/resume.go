package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/steveyegge/gripes/internal/deduplication"
	"github.com/steveyegge/gripes/internal/embed"
	"github.com/steveyegge/gripes/internal/events"
	"github.com/steveyegge/gripes/internal/export"
	"github.com/steveyegge/gripes/internal/types"
)

// Resume loads saved rows and restores each into engine as a cluster carrying its saved
// count. Rows with an empty summary or a non-positive count are skipped. Embedding
// failures and dimension mismatches stop the restore; clusters restored before the
// failure stay in the engine.
func Resume(ctx context.Context, store Store, embedder embed.Embedder, engine *deduplication.Engine) (events.StateData, error) {
	var state events.StateData
	if p, ok := store.(interface{ Path() string }); ok {
		state.Store = p.Path()
	}

	rows, err := store.Load(ctx)
	if err != nil {
		return state, fmt.Errorf("failed to load saved clusters: %w", err)
	}

	for _, r := range rows {
		if err := ctx.Err(); err != nil {
			return state, err
		}
		if strings.TrimSpace(r.Summary) == "" || r.Count < 1 {
			state.Skipped++
			continue
		}
		vec, err := embedder.Embed(ctx, r.Summary)
		if err != nil {
			return state, fmt.Errorf("failed to embed saved summary %q: %w", r.Summary, err)
		}
		if _, err := engine.Restore(r.Summary, r.Feature, r.FeedbackType, r.Count, vec); err != nil {
			if errors.Is(err, types.ErrValidation) {
				state.Skipped++
				continue
			}
			return state, fmt.Errorf("failed to restore %q: %w", r.Summary, err)
		}
		state.Clusters++
		state.Items += r.Count
	}
	return state, nil
}

// Checkpoint saves the engine's current clusters, ordered as the exporter orders them
func Checkpoint(ctx context.Context, store Store, engine *deduplication.Engine) (events.StateData, error) {
	clusters := engine.SnapshotClusters()
	rows := export.ClusterRows(clusters)

	state := events.StateData{Clusters: len(rows)}
	if p, ok := store.(interface{ Path() string }); ok {
		state.Store = p.Path()
	}
	for _, r := range rows {
		state.Items += r.Count
	}
	if err := store.Save(ctx, rows); err != nil {
		return state, fmt.Errorf("failed to save clusters: %w", err)
	}
	return state, nil
}
