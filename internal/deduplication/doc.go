// Package deduplication folds classified product feedback into complaint clusters.
//
// # Overview
//
// Feedback arrives as short one-line summaries that have already been labelled with a
// feature (camera, battery, ...) and a feedback type (missing_feature, neutral, ...)
// and embedded into a vector. The Engine decides, for each item, whether it says the
// same thing as an existing cluster or starts a new one, and keeps a feature x
// feedback-type matrix and a per-source distribution in sync with the clusters.
//
// # Architecture
//
// Three pieces, all in memory:
//
//  1. ClusterStore: clusters in first-seen order, indexed by feature for lookup
//  2. Aggregator: the matrix, updated by +1 deltas
//  3. Engine: the lock that makes merge-or-create plus the aggregate update atomic
//
// Matching only considers clusters with the same feature label. Two items about
// different product aspects never merge, however similar their text. Similarity is
// cosine; a zero vector never matches anything.
//
// Processing order is part of the contract: the first item to arrive seeds a cluster
// and provides its summary. Callers that fan out work must restore arrival order
// before calling Submit (see the pipeline package).
//
// # Configuration
//
//   - SimilarityThreshold: 0.85 (inclusive; >= merges)
//   - ExamplesCap: 5 (oldest example dropped first)
//   - Centroid: running_mean (or first_seen to compare against the seed vector only)
//
// See DefaultConfig() and ConfigFromEnv() for details.
//
// # Usage Examples
//
//	engine, err := deduplication.NewEngine(deduplication.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//
//	vec, err := embedder.Embed(ctx, item.Summary)
//	if err != nil {
//	    return err // the engine never embeds or retries
//	}
//	decision, err := engine.Submit(item, vec)
//
// Resuming from a saved run re-embeds each saved summary and calls Restore:
//
//	for _, row := range rows {
//	    vec, err := embedder.Embed(ctx, row.Summary)
//	    ...
//	    engine.Restore(row.Summary, row.Feature, row.FeedbackType, row.Count, vec)
//	}
//
// # Error Handling
//
// Per-item (skip and continue):
//   - ValidationError: empty summary, empty vector, repeated item ID
//
// Fatal to the run:
//   - DimensionMismatchError: once a vector of a different length arrives, every
//     further Submit and Restore fails with the same error until Reset
//
// Debug only:
//   - StateConsistencyError from CheckConsistency when the matrix and clusters disagree
package deduplication
