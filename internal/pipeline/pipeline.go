// Package pipeline runs one analysis: fetch raw feedback, classify and embed it
// concurrently, then feed the deduplication engine from a single consumer in
// arrival order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/gripes/internal/ai"
	"github.com/steveyegge/gripes/internal/deduplication"
	"github.com/steveyegge/gripes/internal/embed"
	"github.com/steveyegge/gripes/internal/events"
	"github.com/steveyegge/gripes/internal/logging"
	"github.com/steveyegge/gripes/internal/sources"
	"github.com/steveyegge/gripes/internal/types"
)

// Config controls a pipeline run
type Config struct {
	Product   string // product name given to the classifier
	Query     string // search query (default: Product)
	Limit     int    // items requested per source (default: 25)
	Workers   int    // concurrent classify+embed workers (default: 4)
	QueueSize int    // bound of the channel feeding the consumer (default: 64)
	MinWords  int    // texts with fewer words are skipped as too_short (default: 3)
}

// DefaultConfig returns defaults for everything except Product
func DefaultConfig() Config {
	return Config{Limit: 25, Workers: 4, QueueSize: 64, MinWords: 3}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if strings.TrimSpace(c.Product) == "" {
		return fmt.Errorf("product is required")
	}
	if c.Limit < 1 || c.Limit > 1000 {
		return fmt.Errorf("limit must be between 1 and 1000 (got %d)", c.Limit)
	}
	if c.Workers < 1 || c.Workers > 64 {
		return fmt.Errorf("workers must be between 1 and 64 (got %d)", c.Workers)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queue_size must be positive (got %d)", c.QueueSize)
	}
	if c.MinWords < 0 {
		return fmt.Errorf("min_words cannot be negative (got %d)", c.MinWords)
	}
	return nil
}

// RunReport summarizes one run. It is complete even when the run stopped early.
// SourceErrors holds the failure of each source that could not be read. Partial is
// set when the run was canceled or aborted before every item was submitted.
type RunReport struct {
	RunID        string                  `json:"run_id"`
	Product      string                  `json:"product"`
	StartedAt    time.Time               `json:"started_at"`
	FinishedAt   time.Time               `json:"finished_at"`
	Fetched      int                     `json:"fetched"`
	BySource     map[types.Source]int    `json:"by_source"`
	Submitted    int                     `json:"submitted"`
	Created      int                     `json:"created"`
	Merged       int                     `json:"merged"`
	Skipped      map[string]int          `json:"skipped"`
	SourceErrors map[types.Source]string `json:"source_errors,omitempty"`
	Partial      bool                    `json:"partial"`
	Error        string                  `json:"error,omitempty"`
}

// SkippedTotal returns the number of skipped items across all reasons
func (r *RunReport) SkippedTotal() int {
	n := 0
	for _, v := range r.Skipped {
		n += v
	}
	return n
}

// Duration returns how long the run took
func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Pipeline wires sources, a classifier and an embedder to an engine
type Pipeline struct {
	engine     *deduplication.Engine
	classifier ai.Classifier
	embedder   embed.Embedder
	sources    []sources.Source
	cfg        Config

	observer events.Observer
	store    events.EventStore
	logger   *log.Logger
}

// New creates a pipeline. Zero Limit, Workers and QueueSize take their defaults;
// a zero MinWords disables the length check.
func New(engine *deduplication.Engine, classifier ai.Classifier, embedder embed.Embedder, srcs []sources.Source, cfg Config) (*Pipeline, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if classifier == nil {
		return nil, fmt.Errorf("classifier cannot be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder cannot be nil")
	}
	if len(srcs) == 0 {
		return nil, fmt.Errorf("at least one source is required")
	}

	def := DefaultConfig()
	if cfg.Limit == 0 {
		cfg.Limit = def.Limit
	}
	if cfg.Workers == 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.Query == "" {
		cfg.Query = cfg.Product
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Pipeline{
		engine:     engine,
		classifier: classifier,
		embedder:   embedder,
		sources:    srcs,
		cfg:        cfg,
		logger:     logging.WithPrefix("pipeline"),
	}, nil
}

// SetObserver registers a callback for progress events. Call before Run.
func (p *Pipeline) SetObserver(o events.Observer) {
	p.observer = o
}

// SetEventStore persists every event of subsequent runs. Call before Run.
func (p *Pipeline) SetEventStore(s events.EventStore) {
	p.store = s
}

// prepared is one aspect ready for submission
type prepared struct {
	item types.FeedbackItem
	vec  []float32
}

// skip is one item dropped before submission
type skip struct {
	itemID string
	source types.Source
	err    error
}

// result is everything a worker produced for one raw item
type result struct {
	seq   int
	ready []prepared
	skips []skip
}

// Run executes one analysis against the pipeline's engine.
//
// Sources are fetched concurrently; a failing source is recorded in the report and
// the run continues. Items are classified and embedded by a bounded worker pool and
// submitted by a single consumer in fetch order. Canceling ctx stops the run; clusters
// merged so far stay valid and the report is marked Partial. A dimension mismatch
// aborts the run with an error wrapping types.ErrDimensionMismatch.
func (p *Pipeline) Run(ctx context.Context) (*RunReport, error) {
	runID := newRunID()
	report := &RunReport{
		RunID:        runID,
		Product:      p.cfg.Product,
		StartedAt:    time.Now().UTC(),
		BySource:     make(map[types.Source]int),
		Skipped:      make(map[string]int),
		SourceErrors: make(map[types.Source]string),
	}
	p.emit(events.NewSimpleEvent(events.EventTypeRunStarted, runID, events.SeverityInfo,
		fmt.Sprintf("analyzing %q from %d sources", p.cfg.Product, len(p.sources))))

	raw := p.fetchAll(ctx, runID, report)
	report.Fetched = len(raw)

	runErr := p.process(ctx, runID, raw, report)

	if ctx.Err() != nil && runErr == nil {
		runErr = ctx.Err()
	}
	if runErr != nil {
		report.Partial = true
		report.Error = runErr.Error()
	}
	report.FinishedAt = time.Now().UTC()

	done := events.RunCompletedData{
		Product:    report.Product,
		Fetched:    report.Fetched,
		Submitted:  report.Submitted,
		Created:    report.Created,
		Merged:     report.Merged,
		Skipped:    report.Skipped,
		Partial:    report.Partial,
		DurationMs: report.Duration().Milliseconds(),
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		done.Error = runErr.Error()
	}
	if ev, err := events.NewRunCompletedEvent(runID, done); err == nil {
		p.emit(ev)
	}
	return report, runErr
}

// fetchAll queries every source concurrently and concatenates results in source order
func (p *Pipeline) fetchAll(ctx context.Context, runID string, report *RunReport) []types.RawItem {
	perSource := make([][]types.RawItem, len(p.sources))
	errs := make([]error, len(p.sources))
	took := make([]time.Duration, len(p.sources))

	var g errgroup.Group
	for i, src := range p.sources {
		g.Go(func() error {
			start := time.Now()
			items, err := src.Fetch(ctx, p.cfg.Query, p.cfg.Limit)
			perSource[i], errs[i], took[i] = items, err, time.Since(start)
			return nil
		})
	}
	_ = g.Wait()

	var all []types.RawItem
	for i, src := range p.sources {
		name := src.Name()
		if err := errs[i]; err != nil {
			report.SourceErrors[name] = err.Error()
			if ev, e := events.NewSourceFailedEvent(runID, events.SourceFailedData{Source: string(name), Error: err.Error()}); e == nil {
				p.emit(ev)
			}
		}
		// Partial results from a failing source are still used
		items := perSource[i]
		if len(items) == 0 {
			continue
		}
		for _, it := range items {
			report.BySource[it.Source]++
		}
		all = append(all, items...)
		if ev, e := events.NewSourceFetchedEvent(runID, events.SourceFetchedData{
			Source: string(name), Items: len(items), DurationMs: took[i].Milliseconds(),
		}); e == nil {
			p.emit(ev)
		}
	}
	return all
}

// process classifies and embeds raw items in parallel and submits them in order
func (p *Pipeline) process(parent context.Context, runID string, raw []types.RawItem, report *RunReport) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	results := make(chan result, p.cfg.QueueSize)

	var fatal error
	applied := 0
	var consumer sync.WaitGroup
	consumer.Add(1)
	go func() {
		defer consumer.Done()
		applied, fatal = p.consume(ctx, runID, results, report)
		if fatal != nil {
			cancel()
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for seq, item := range raw {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			r := p.prepare(gctx, seq, item)
			select {
			case results <- r:
			case <-gctx.Done():
			}
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	consumer.Wait()

	if dropped := len(raw) - applied; dropped > 0 {
		report.Skipped[types.ReasonCanceled] += dropped
		p.logger.Warn("run stopped before every item was submitted", "run", runID, "dropped", dropped)
	}
	return fatal
}

// consume restores arrival order and is the only goroutine that calls Submit.
// It returns how many results it applied.
func (p *Pipeline) consume(ctx context.Context, runID string, results <-chan result, report *RunReport) (int, error) {
	applied := 0
	pending := make(map[int]result)
	next := 0
	for r := range results {
		pending[r.seq] = r
		for {
			cur, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			if ctx.Err() != nil {
				continue
			}
			applied++
			if err := p.apply(runID, cur, report); err != nil {
				return applied, err
			}
		}
	}
	return applied, nil
}

// apply submits one worker result. Only a dimension mismatch is returned.
func (p *Pipeline) apply(runID string, r result, report *RunReport) error {
	for _, s := range r.skips {
		p.recordSkip(runID, s, report)
	}
	for _, pr := range r.ready {
		decision, err := p.engine.Submit(&pr.item, pr.vec)
		if err != nil {
			if errors.Is(err, types.ErrDimensionMismatch) {
				p.logger.Error("embedding dimension changed mid-run, aborting", "err", err)
				return err
			}
			p.recordSkip(runID, skip{itemID: pr.item.ID, source: pr.item.Source, err: err}, report)
			continue
		}
		report.Submitted++
		if decision.Merged {
			report.Merged++
		} else {
			report.Created++
		}
		if ev, err := events.NewDecisionEvent(runID, events.DecisionData{
			ItemID:       pr.item.ID,
			ClusterID:    decision.ClusterID,
			Summary:      pr.item.Summary,
			Feature:      string(pr.item.Feature),
			FeedbackType: string(pr.item.FeedbackType),
			Source:       string(pr.item.Source),
			Merged:       decision.Merged,
			Similarity:   decision.Similarity,
			Compared:     decision.Compared,
		}); err == nil {
			p.emit(ev)
		}
	}
	return nil
}

func (p *Pipeline) recordSkip(runID string, s skip, report *RunReport) {
	reason := skipReason(s.err)
	report.Skipped[reason]++
	if ev, err := events.NewItemSkippedEvent(runID, events.ItemSkippedData{
		ItemID: s.itemID,
		Source: string(s.source),
		Reason: reason,
		Error:  s.err.Error(),
	}); err == nil {
		p.emit(ev)
	}
}

func skipReason(err error) string {
	if errors.Is(err, ai.ErrNoFeedback) {
		return types.ReasonNoContent
	}
	return types.SkipReason(err)
}

// prepare cleans, classifies and embeds one raw item. It never fails; problems become skips.
func (p *Pipeline) prepare(ctx context.Context, seq int, raw types.RawItem) result {
	r := result{seq: seq}
	addSkip := func(id string, err error) {
		r.skips = append(r.skips, skip{itemID: id, source: raw.Source, err: err})
	}

	text, err := Admit(raw, p.cfg.MinWords)
	if err != nil {
		addSkip(raw.ID, err)
		return r
	}

	aspects, err := p.classify(ctx, text)
	if err != nil {
		addSkip(raw.ID, err)
		return r
	}

	for _, a := range aspects {
		id := raw.ID
		if len(aspects) > 1 {
			id = raw.ID + "#" + string(a.Feature)
		}
		summary := NormalizeSummary(a.Summary)
		if ai.IsNoContentSummary(summary) {
			addSkip(id, &types.ValidationError{ItemID: id, Reason: types.ReasonNoContent, Detail: summary})
			continue
		}

		vec, err := p.embedder.Embed(ctx, summary)
		if err != nil {
			addSkip(id, err)
			continue
		}
		r.ready = append(r.ready, prepared{
			item: types.FeedbackItem{
				ID:           id,
				RawText:      text,
				Summary:      summary,
				Feature:      a.Feature,
				FeedbackType: a.FeedbackType,
				Source:       raw.Source,
				URL:          raw.URL,
				Title:        raw.Title,
				CreatedAt:    raw.CreatedAt,
			},
			vec: vec,
		})
	}
	return r
}

func (p *Pipeline) classify(ctx context.Context, text string) ([]types.Classification, error) {
	if ac, ok := p.classifier.(ai.AspectClassifier); ok {
		aspects, err := ac.ClassifyAspects(ctx, text, p.cfg.Product)
		if err != nil {
			return nil, err
		}
		if len(aspects) == 0 {
			return nil, &types.ClassificationError{Provider: "pipeline", Err: ai.ErrNoFeedback}
		}
		return aspects, nil
	}
	c, err := p.classifier.Classify(ctx, text, p.cfg.Product)
	if err != nil {
		return nil, err
	}
	return []types.Classification{c}, nil
}

func (p *Pipeline) emit(e *events.RunEvent) {
	if e == nil {
		return
	}
	if p.observer != nil {
		p.observer(e)
	}
	if p.store != nil {
		if err := p.store.StoreEvent(context.Background(), e); err != nil {
			p.logger.Warn("failed to store event", "type", e.Type, "err", err)
		}
	}
}

func newRunID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.New().String()
}
