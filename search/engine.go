package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/poiesic/advisor/ai"
	"github.com/poiesic/advisor/core"
	"github.com/poiesic/advisor/embed"
	"github.com/poiesic/advisor/storage"
)

// Config controls retrieval and recommendation.
type Config struct {
	// TopK is the number of results returned by a plain search
	TopK int

	// CandidatePool is the number of neighbors retrieved for a recommendation
	CandidatePool int

	// MaxCandidates is the number of candidates kept after prefiltering
	MaxCandidates int

	// SummaryBonus is added to the score of records that have a summary
	SummaryBonus float32

	// MinSimilarity drops neighbors below this cosine similarity
	MinSimilarity float32
}

// DefaultConfig returns a Config with the standard retrieval settings.
func DefaultConfig() *Config {
	return &Config{
		TopK:          5,
		CandidatePool: 50,
		MaxCandidates: 15,
		SummaryBonus:  0.1,
		MinSimilarity: -1,
	}
}

// Engine answers queries against a built index.
type Engine struct {
	vectors   storage.VectorIndex
	records   storage.RecordRepository
	meta      storage.MetaRepository
	embedder  ai.Embedder
	completer ai.Completer
	config    *Config
	monitor   Monitor
	stateMu   sync.Mutex
	state     State
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithConfig replaces the default retrieval configuration.
func WithConfig(config *Config) Option {
	return func(e *Engine) error {
		if config != nil {
			e.config = config
		}
		return nil
	}
}

// WithMonitor installs a Monitor.
func WithMonitor(monitor Monitor) Option {
	return func(e *Engine) error {
		if monitor == nil {
			monitor = &noopMonitor{}
		}
		e.monitor = monitor
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger.With("component", "search")
		return nil
	}
}

// NewEngine creates a new query engine.
func NewEngine(
	vectors storage.VectorIndex,
	records storage.RecordRepository,
	meta storage.MetaRepository,
	provider ai.AIProvider,
	opts ...Option,
) (*Engine, error) {
	if vectors == nil {
		return nil, ErrVectorIndexRequired
	}
	if records == nil {
		return nil, ErrRecordRepositoryRequired
	}
	if meta == nil {
		return nil, ErrMetaRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	e := &Engine{
		vectors:   vectors,
		records:   records,
		meta:      meta,
		embedder:  provider.Embedder(),
		completer: provider.Completer(),
		config:    DefaultConfig(),
		monitor:   &noopMonitor{},
		state:     StateIdle,
		logger:    slog.Default().With("component", "search"),
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() *Config {
	return e.config
}

// State returns the current state of the query loop.
func (e *Engine) State() State {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.state
}

func (e *Engine) enter(to State) {
	e.stateMu.Lock()
	from := e.state
	e.state = to
	e.stateMu.Unlock()
	e.monitor.Transition(from, to)
}

// CheckIndex verifies that an index has been built with the embedding model
// the engine queries with.
func (e *Engine) CheckIndex(ctx context.Context) (*core.IndexMeta, error) {
	meta, err := e.meta.LoadMeta(ctx)
	if err != nil {
		return nil, fmt.Errorf("load index metadata: %w", err)
	}
	if meta == nil {
		return nil, ErrIndexNotBuilt
	}
	if model := e.embedder.Model(); meta.Model != "" && meta.Model != model {
		return nil, fmt.Errorf("%w: index uses %s, query model is %s", ErrModelMismatch, meta.Model, model)
	}
	return meta, nil
}

// Search returns the k records nearest to query, best first. An empty index
// yields an empty result. Neighbors whose record is missing from the lookup
// table are left out.
func (e *Engine) Search(ctx context.Context, query string, k int) ([]*core.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		k = e.config.TopK
	}

	e.enter(StateEmbeddingQuery)
	embedding, err := e.embedder.EmbedText(ctx, query)
	if err != nil {
		e.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, fmt.Errorf("embed query: %w", err)
	}

	e.enter(StateSearching)
	matches, err := e.vectors.FindSimilar(ctx, embed.NormalizeVector(embedding), e.config.MinSimilarity, k)
	if err != nil {
		e.logger.Error("error querying for similar records", "err", err)
		return nil, fmt.Errorf("search index: %w", err)
	}
	if len(matches) == 0 {
		return []*core.SearchResult{}, nil
	}

	ids := make([]core.ID, len(matches))
	for i, match := range matches {
		ids[i] = match.RecordID
	}
	records, err := e.records.GetRecords(ctx, ids...)
	if err != nil {
		e.logger.Error("error retrieving records", "recordCount", len(ids), "err", err)
		return nil, fmt.Errorf("load records: %w", err)
	}
	byID := make(map[core.ID]*core.EnrichedRecord, len(records))
	for _, rec := range records {
		byID[rec.Key()] = rec
	}

	results := make([]*core.SearchResult, 0, len(matches))
	for _, match := range matches {
		rec, ok := byID[match.RecordID]
		if !ok {
			e.logger.Debug("skipping vector without lookup entry", "catalog_id", match.CatalogID)
			continue
		}
		results = append(results, &core.SearchResult{Record: rec, Score: match.Score})
	}
	return results, nil
}
