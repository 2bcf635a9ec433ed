// Package engine orchestrates governance: it evaluates documents
// against policy, commits accepted changes to the ledger and routing
// table, and publishes events for downstream consumers.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/c360studio/kbgov/corpus"
	"github.com/c360studio/kbgov/document"
	"github.com/c360studio/kbgov/ledger"
	"github.com/c360studio/kbgov/metrics"
	"github.com/c360studio/kbgov/policy"
	"github.com/c360studio/kbgov/publish"
	"github.com/c360studio/kbgov/routing"
)

// Verdict is the outcome of evaluating one document.
type Verdict struct {
	Path       string
	Accepted   bool
	Violations []policy.Violation
}

// Change is a proposed mutation: a changelog entry plus any routing
// registrations that accompany it.
type Change struct {
	Entry  ledger.Entry
	Routes []routing.Entry
}

// Engine evaluates documents and commits accepted changes. It holds
// non-owning references to the corpus, ledger, and routing index.
type Engine struct {
	corpus    *corpus.Corpus
	ledger    *ledger.Ledger
	index     *routing.Index
	logger    *slog.Logger
	publisher *publish.Publisher
	metrics   *metrics.Metrics

	// commitMu serializes commits so the ledger append and routing
	// update land together or not at all.
	commitMu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithPublisher sets the event publisher. A nil publisher disables
// event publishing.
func WithPublisher(p *publish.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithMetrics sets the metrics collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an engine over a corpus, ledger, and routing index.
func New(c *corpus.Corpus, l *ledger.Ledger, ix *routing.Index, opts ...Option) *Engine {
	e := &Engine{
		corpus: c,
		ledger: l,
		index:  ix,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Index returns the engine's routing index.
func (e *Engine) Index() *routing.Index {
	return e.index
}

// Ledger returns the engine's changelog ledger.
func (e *Engine) Ledger() *ledger.Ledger {
	return e.ledger
}

// Evaluate runs the schema validator and version checker over a parsed
// document and merges their results deterministically. The document is
// not mutated; both validators run concurrently over the same snapshot.
func (e *Engine) Evaluate(doc *document.Document) Verdict {
	var schema, version policy.Result

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		schema = policy.Validate(doc)
	}()
	go func() {
		defer wg.Done()
		version = policy.CheckVersions(doc)
	}()
	wg.Wait()

	var merged policy.Result
	merged.Merge(schema)
	merged.Merge(version)
	merged.Sort()

	verdict := Verdict{
		Path:       doc.Path,
		Accepted:   !merged.HasErrors(),
		Violations: merged.Violations,
	}

	e.metrics.ObserveEvaluation(verdict.Accepted)
	for _, v := range merged.Violations {
		e.metrics.ObserveViolation(v.Rule, string(v.Severity))
	}
	return verdict
}

// EvaluateFile loads a document by relative path and evaluates it.
func (e *Engine) EvaluateFile(rel string) (Verdict, error) {
	doc, err := e.corpus.Load(rel)
	if err != nil {
		return Verdict{Path: rel}, err
	}
	return e.Evaluate(doc), nil
}

// EvaluateAll scans the corpus and evaluates every document.
// Cancellation is checked once per document.
func (e *Engine) EvaluateAll(ctx context.Context) ([]Verdict, error) {
	paths, err := e.corpus.Scan()
	if err != nil {
		return nil, err
	}

	verdicts := make([]Verdict, 0, len(paths))
	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			return verdicts, err
		}
		verdict, err := e.EvaluateFile(rel)
		if err != nil {
			return verdicts, err
		}
		verdicts = append(verdicts, verdict)
	}
	return verdicts, nil
}

// Commit records an accepted change: routing registrations are staged
// and persisted first, then the ledger entry is appended. If the append
// fails, the routing table is restored to its pre-commit state so the
// two never diverge.
func (e *Engine) Commit(ctx context.Context, change Change) (ledger.Entry, error) {
	e.commitMu.Lock()
	defer e.commitMu.Unlock()

	if err := ctx.Err(); err != nil {
		return ledger.Entry{}, err
	}

	before := e.index.Snapshot()

	// Stage registrations on a clone so a conflict leaves the live
	// index untouched.
	staged := e.index.Clone()
	for _, route := range change.Routes {
		if err := staged.Register(route.Keyword, route.Canonical, route.Fallbacks...); err != nil {
			return ledger.Entry{}, err
		}
		if !e.corpus.Known(route.Canonical) {
			return ledger.Entry{}, fmt.Errorf("%w: keyword %q routes to %q", routing.ErrUnknownPath, route.Keyword, route.Canonical)
		}
		for _, fallback := range route.Fallbacks {
			if !e.corpus.Known(fallback) {
				return ledger.Entry{}, fmt.Errorf("%w: keyword %q falls back to %q", routing.ErrUnknownPath, route.Keyword, fallback)
			}
		}
	}

	if len(change.Routes) > 0 {
		if err := staged.Snapshot().Save(e.corpus.RoutingTablePath()); err != nil {
			return ledger.Entry{}, err
		}
	}

	entry, err := e.ledger.Append(change.Entry, e.corpus.Known)
	if err != nil {
		if len(change.Routes) > 0 {
			if restoreErr := before.Save(e.corpus.RoutingTablePath()); restoreErr != nil {
				e.logger.Error("failed to restore routing table after ledger error",
					"error", restoreErr)
			}
		}
		return ledger.Entry{}, err
	}

	// Adopt the staged registrations only once both writes succeeded.
	for _, route := range change.Routes {
		if err := e.index.Register(route.Keyword, route.Canonical, route.Fallbacks...); err != nil {
			// Staging already vetted these; a failure here means the
			// live index changed underneath us, which commitMu prevents.
			e.logger.Error("routing registration failed after staging", "error", err)
		}
	}

	e.metrics.ObserveCommit()
	e.logger.Info("change committed",
		"entry_id", entry.ID,
		"seq", entry.Seq,
		"paths", entry.ImpactedPaths)

	if e.publisher != nil {
		if err := e.publisher.PublishAccepted(ctx, entry); err != nil {
			e.logger.Warn("failed to publish accepted change", "error", err)
		}
	}
	return entry, nil
}
