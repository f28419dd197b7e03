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

package advisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/advisor/ai"
	"github.com/poiesic/advisor/ai/openai"
	"github.com/poiesic/advisor/artifact"
	"github.com/poiesic/advisor/core"
	"github.com/poiesic/advisor/embed"
	"github.com/poiesic/advisor/search"
	"github.com/poiesic/advisor/storage"
	"github.com/poiesic/advisor/storage/badger"
)

// ErrProviderRequired is returned when a stage needs the AI provider but the
// index was opened without one.
var ErrProviderRequired = errors.New("AI provider required")

// Index is the built index of one run directory: vectors, lookup table and
// metadata, plus the AI provider that embeds records and queries.
type Index struct {
	runDir   artifact.RunDir
	backend  *badger.Backend
	vectors  storage.VectorIndex
	records  storage.RecordRepository
	meta     storage.MetaRepository
	provider ai.AIProvider
	logger   *slog.Logger
}

// IndexOption configures an Index.
type IndexOption func(*indexOptions)

type indexOptions struct {
	aiConfig *ai.Config
	provider ai.AIProvider
	vectors  storage.VectorIndex
	create   bool
}

// WithAIConfig creates an OpenAI-compatible provider from cfg.
func WithAIConfig(cfg *ai.Config) IndexOption {
	return func(o *indexOptions) {
		o.aiConfig = cfg
	}
}

// WithProvider uses an existing provider. It takes precedence over
// WithAIConfig. The Index closes it.
func WithProvider(provider ai.AIProvider) IndexOption {
	return func(o *indexOptions) {
		o.provider = provider
	}
}

// WithVectorIndex keeps vectors in index instead of the run directory.
// The Index closes it.
func WithVectorIndex(index storage.VectorIndex) IndexOption {
	return func(o *indexOptions) {
		o.vectors = index
	}
}

// WithCreate creates the index directory if it does not exist yet.
func WithCreate() IndexOption {
	return func(o *indexOptions) {
		o.create = true
	}
}

// OpenIndex opens the index of runDir. Without WithCreate a missing index is
// reported as search.ErrIndexNotBuilt.
func OpenIndex(runDir artifact.RunDir, opts ...IndexOption) (*Index, error) {
	options := &indexOptions{}
	for _, opt := range opts {
		opt(options)
	}

	provider := options.provider
	if provider == nil && options.aiConfig != nil {
		var err error
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			return nil, err
		}
	}

	var (
		backend *badger.Backend
		err     error
	)
	if options.create {
		backend, err = badger.OpenBackend(runDir.IndexPath(), false)
	} else {
		backend, err = badger.OpenExistingBackend(runDir.IndexPath())
		if errors.Is(err, storage.ErrIndexMissing) {
			err = fmt.Errorf("%w: %w", search.ErrIndexNotBuilt, err)
		}
	}
	if err != nil {
		if provider != nil {
			provider.Close()
		}
		return nil, err
	}

	repos := badger.NewRepositories(backend)
	idx := &Index{
		runDir:   runDir,
		backend:  backend,
		vectors:  repos.Vectors,
		records:  repos.Records,
		meta:     repos.Meta,
		provider: provider,
		logger:   slog.Default().With("component", "index"),
	}
	if options.vectors != nil {
		idx.vectors = options.vectors
	}
	return idx, nil
}

// Close releases the provider, the vector index and the backend. Every
// resource is closed even if an earlier one fails; the failures are joined.
func (idx *Index) Close() error {
	var errs []error
	if idx.provider != nil {
		if err := idx.provider.Close(); err != nil {
			idx.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}

	if err := idx.vectors.Close(); err != nil {
		idx.logger.Error("error closing vector index", "err", err)
		errs = append(errs, err)
	}
	if err := idx.records.Close(); err != nil {
		idx.logger.Error("error closing record repository", "err", err)
		errs = append(errs, err)
	}

	if err := idx.backend.Close(); err != nil {
		idx.logger.Error("error closing backend storage", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// VectorIndex returns the vector store.
func (idx *Index) VectorIndex() storage.VectorIndex {
	return idx.vectors
}

// RecordRepository returns the lookup table.
func (idx *Index) RecordRepository() storage.RecordRepository {
	return idx.records
}

// MetaRepository returns the index metadata store.
func (idx *Index) MetaRepository() storage.MetaRepository {
	return idx.meta
}

// NewBuilder returns an embed stage builder writing into this index.
func (idx *Index) NewBuilder(opts ...embed.Option) (*embed.Builder, error) {
	if idx.provider == nil {
		return nil, ErrProviderRequired
	}
	stores := embed.Stores{Vectors: idx.vectors, Records: idx.records, Meta: idx.meta}
	return embed.NewBuilder(idx.runDir, stores, idx.provider.Embedder(), opts...)
}

// NewEngine returns a query engine reading this index.
func (idx *Index) NewEngine(opts ...search.Option) (*search.Engine, error) {
	if idx.provider == nil {
		return nil, ErrProviderRequired
	}
	return search.NewEngine(idx.vectors, idx.records, idx.meta, idx.provider, opts...)
}

// Stats describes the contents of an index.
type Stats struct {
	Meta    *core.IndexMeta
	Vectors int
	Records int
}

// Stats counts vectors and lookup entries. Meta is nil if the index was
// never built.
func (idx *Index) Stats(ctx context.Context) (*Stats, error) {
	meta, err := idx.meta.LoadMeta(ctx)
	if err != nil {
		return nil, err
	}
	vectors, err := idx.vectors.CountVectors(ctx)
	if err != nil {
		return nil, err
	}
	ids, err := idx.records.RecordIDs(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{Meta: meta, Vectors: vectors, Records: len(ids)}, nil
}
