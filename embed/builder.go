// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package embed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/advisor/ai"
	"github.com/poiesic/advisor/artifact"
	"github.com/poiesic/advisor/core"
	"github.com/poiesic/advisor/storage"
)

// Config holds configuration for an index build.
type Config struct {
	// BatchSize is the number of records sent in one embedding call
	BatchSize int

	// ReportInterval is how often to report progress (number of records)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for each embedding call
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// Force re-embeds every record even when a current vector exists
	Force bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     time.Second,
	}
}

// Stores groups the repositories an index build writes to.
type Stores struct {
	Vectors storage.VectorIndex
	Records storage.RecordRepository
	Meta    storage.MetaRepository
}

// Report summarizes an index build.
type Report struct {
	Model     string
	Dimension int
	Total     int
	Embedded  int
	Reused    int
	Removed   int
	Rebuilt   bool
	Failures  []Failure
	Elapsed   time.Duration
}

// Counts returns the report as manifest counters.
func (r *Report) Counts() map[string]int {
	return map[string]int{
		"records":   r.Total,
		"embedded":  r.Embedded,
		"reused":    r.Reused,
		"removed":   r.Removed,
		"failed":    len(r.Failures),
		"dimension": r.Dimension,
	}
}

// Builder turns the enriched records artifact into a vector index and
// lookup table.
type Builder struct {
	runDir    artifact.RunDir
	stores    Stores
	embedder  ai.Embedder
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	logger    *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder) error

// WithConfig replaces the default build configuration.
func WithConfig(config *Config) Option {
	return func(b *Builder) error {
		if config != nil {
			b.config = config
		}
		return nil
	}
}

// WithProgress sets where progress output is written.
// Default is io.Discard.
func WithProgress(w io.Writer) Option {
	return func(b *Builder) error {
		b.progress = w
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger.With("component", "embed")
		return nil
	}
}

// NewBuilder creates a new index builder.
func NewBuilder(runDir artifact.RunDir, stores Stores, embedder ai.Embedder, opts ...Option) (*Builder, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if stores.Vectors == nil || stores.Records == nil || stores.Meta == nil {
		return nil, ErrStoresRequired
	}

	b := &Builder{
		runDir:   runDir,
		stores:   stores,
		embedder: embedder,
		config:   DefaultConfig(),
		progress: io.Discard,
		logger:   slog.Default().With("component", "embed"),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	if b.config.BatchSize <= 0 {
		b.config.BatchSize = DefaultConfig().BatchSize
	}
	b.processor = NewBatchProcessor(embedder, b.config.MaxRetries, b.config.RetryDelay, b.logger)
	return b, nil
}

// Run builds or refreshes the index.
//
// A record is embedded when the index has no vector for it, or the stored
// vector was computed from a different source hash or model. Everything
// else is reused unless Config.Force is set. Lookup entries are written for
// every record and entries for records that left the catalog are removed.
// If some records fail, the rest is persisted and ErrPartialEmbed is
// returned together with the report.
func (b *Builder) Run(ctx context.Context) (*Report, error) {
	startedAt := time.Now()

	records, err := b.loadRecords()
	if err != nil {
		return nil, err
	}

	meta, err := b.stores.Meta.LoadMeta(ctx)
	if err != nil {
		return nil, fmt.Errorf("load index metadata: %w", err)
	}

	pending, reusable, err := b.partition(ctx, records)
	if err != nil {
		return nil, err
	}

	report := &Report{Model: b.embedder.Model(), Total: len(records)}
	if meta != nil {
		report.Dimension = meta.Dimension
	}

	fmt.Fprintf(b.progress, "Embedding %d of %d records (batch size: %d)\n",
		len(pending), len(records), b.config.BatchSize)

	tracker := NewProgressTracker(b.progress, "Embedding", len(pending), b.config.ReportInterval)
	tracker.Start()

	failed := make(map[core.ID]bool)
	dim := 0
	for start, end := 0, 0; start < len(pending); start = end {
		end = min(start+b.config.BatchSize, len(pending))
		batch := pending[start:end]

		vectors, failures, err := b.processor.Process(ctx, batch)
		if err != nil {
			return nil, err
		}

		if dim == 0 && len(vectors) > 0 {
			dim = len(vectors[0].Vector)
			if report.Dimension != 0 && report.Dimension != dim {
				b.logger.Warn("embedding dimension changed, rebuilding index",
					"old", report.Dimension, "new", dim)
				if err := b.resetVectors(ctx); err != nil {
					return nil, err
				}
				pending = append(pending, reusable...)
				reusable = nil
				report.Rebuilt = true
				tracker.SetTotal(len(pending))
			}
			report.Dimension = dim
		}

		kept := vectors[:0]
		for _, v := range vectors {
			if len(v.Vector) != dim {
				failures = append(failures, Failure{
					CatalogID: v.CatalogID,
					Err:       fmt.Errorf("%w: expected %d, got %d", storage.ErrDimensionMismatch, dim, len(v.Vector)),
				})
				continue
			}
			kept = append(kept, v)
		}

		if err := b.stores.Vectors.PutVectors(ctx, kept...); err != nil {
			return nil, fmt.Errorf("store vectors: %w", err)
		}
		report.Embedded += len(kept)

		for _, f := range failures {
			failed[core.IDFromContent(f.CatalogID)] = true
		}
		report.Failures = append(report.Failures, failures...)
		tracker.Increment(len(batch))
	}
	tracker.Finish()
	report.Reused = len(reusable)

	if err := b.stores.Records.PutRecords(ctx, records...); err != nil {
		return nil, fmt.Errorf("store lookup table: %w", err)
	}

	removed, err := b.removeOrphans(ctx, records, failed)
	if err != nil {
		return nil, err
	}
	report.Removed = removed

	count, err := b.stores.Vectors.CountVectors(ctx)
	if err != nil {
		return nil, err
	}
	if err := b.stores.Meta.SaveMeta(ctx, &core.IndexMeta{
		Model:     report.Model,
		Dimension: report.Dimension,
		Count:     count,
		BuiltAt:   time.Now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("save index metadata: %w", err)
	}

	report.Elapsed = time.Since(startedAt)
	if err := b.runDir.RecordStage(artifact.StageEmbed, startedAt, report.Counts()); err != nil {
		b.logger.Warn("failed to update manifest", "err", err)
	} else if err := b.runDir.RecordModel(report.Model); err != nil {
		b.logger.Warn("failed to update manifest", "err", err)
	}

	b.logger.Info("index build complete",
		"records", report.Total,
		"embedded", report.Embedded,
		"reused", report.Reused,
		"removed", report.Removed,
		"failed", len(report.Failures),
		"elapsed", report.Elapsed.Round(time.Millisecond))

	if len(report.Failures) > 0 {
		return report, fmt.Errorf("%w: %d of %d records failed", ErrPartialEmbed, len(report.Failures), report.Total)
	}
	return report, nil
}

// loadRecords reads the artifact, drops invalid entries and deduplicates by
// storage key.
func (b *Builder) loadRecords() ([]*core.EnrichedRecord, error) {
	raw, err := b.runDir.ReadRecords()
	if err != nil {
		return nil, err
	}
	seen := make(map[core.ID]bool, len(raw))
	records := make([]*core.EnrichedRecord, 0, len(raw))
	for _, rec := range raw {
		if err := core.ValidateEnrichedRecord(rec); err != nil {
			b.logger.Warn("skipping invalid record", "err", err)
			continue
		}
		if seen[rec.Key()] {
			continue
		}
		seen[rec.Key()] = true
		records = append(records, rec)
	}
	return records, nil
}

// partition splits records into those that need an embedding and those
// whose stored vector is current.
func (b *Builder) partition(ctx context.Context, records []*core.EnrichedRecord) (pending, reusable []*core.EnrichedRecord, err error) {
	if b.config.Force {
		return records, nil, nil
	}

	ids := make([]core.ID, len(records))
	for i, rec := range records {
		ids[i] = rec.Key()
	}
	existing, err := b.stores.Vectors.GetVectors(ctx, ids...)
	if err != nil {
		return nil, nil, fmt.Errorf("load existing vectors: %w", err)
	}
	stored := make(map[core.ID]*core.EmbeddingVector, len(existing))
	for _, v := range existing {
		stored[v.RecordID] = v
	}

	model := b.embedder.Model()
	for _, rec := range records {
		v, ok := stored[rec.Key()]
		if ok && v.SourceHash == rec.SourceHash && v.Model == model {
			reusable = append(reusable, rec)
			continue
		}
		pending = append(pending, rec)
	}
	return pending, reusable, nil
}

// removeOrphans deletes vectors and lookup entries for records no longer in
// the artifact, plus stale vectors of records that failed this run.
func (b *Builder) removeOrphans(ctx context.Context, records []*core.EnrichedRecord, failed map[core.ID]bool) (int, error) {
	current := make(map[core.ID]bool, len(records))
	for _, rec := range records {
		current[rec.Key()] = true
	}

	vectorIDs, err := b.stores.Vectors.VectorIDs(ctx)
	if err != nil {
		return 0, err
	}
	var staleVectors []core.ID
	removed := 0
	for _, id := range vectorIDs {
		switch {
		case !current[id]:
			staleVectors = append(staleVectors, id)
			removed++
		case failed[id]:
			staleVectors = append(staleVectors, id)
		}
	}
	if err := b.stores.Vectors.DeleteVectors(ctx, staleVectors...); err != nil {
		return 0, fmt.Errorf("delete orphaned vectors: %w", err)
	}

	recordIDs, err := b.stores.Records.RecordIDs(ctx)
	if err != nil {
		return 0, err
	}
	var staleRecords []core.ID
	for _, id := range recordIDs {
		if !current[id] {
			staleRecords = append(staleRecords, id)
		}
	}
	if err := b.stores.Records.DeleteRecords(ctx, staleRecords...); err != nil {
		return 0, fmt.Errorf("delete orphaned records: %w", err)
	}
	return removed, nil
}

func (b *Builder) resetVectors(ctx context.Context) error {
	if r, ok := b.stores.Vectors.(storage.Resetter); ok {
		return r.Reset(ctx)
	}
	ids, err := b.stores.Vectors.VectorIDs(ctx)
	if err != nil {
		return err
	}
	return b.stores.Vectors.DeleteVectors(ctx, ids...)
}
