package embed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/advisor/ai"
	"github.com/poiesic/advisor/core"
	"github.com/poiesic/advisor/retry"
)

// Failure is a record that could not be embedded.
type Failure struct {
	CatalogID string
	Err       error
}

// BatchProcessor embeds batches of records with one blocking call per batch.
type BatchProcessor struct {
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
	logger         *slog.Logger
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of attempts for each embedding API call
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration, logger *slog.Logger) *BatchProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchProcessor{
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
		logger:         logger,
	}
}

// Process embeds a batch of records. If the batch call keeps failing, each
// record is embedded on its own so one bad record cannot sink the batch.
// Records that still fail are returned as failures. The error is non-nil
// only when ctx is done.
func (bp *BatchProcessor) Process(ctx context.Context, records []*core.EnrichedRecord) ([]*core.EmbeddingVector, []Failure, error) {
	if len(records) == 0 {
		return nil, nil, nil
	}

	texts := make([]string, len(records))
	for i, record := range records {
		texts[i] = record.Text
	}

	var embeddings [][]float32
	err := retry.Do(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return err
		}
		if len(embeddings) != len(texts) {
			return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(texts), len(embeddings))
		}
		return nil
	}, bp.maxRetries, bp.retryBaseDelay)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, nil, ctxErr
	}

	if err == nil {
		vectors := make([]*core.EmbeddingVector, 0, len(records))
		var failures []Failure
		for i, record := range records {
			v, err := bp.toVector(record, embeddings[i])
			if err != nil {
				failures = append(failures, Failure{CatalogID: record.ID, Err: err})
				continue
			}
			vectors = append(vectors, v)
		}
		return vectors, failures, nil
	}

	bp.logger.Warn("batch embedding failed, falling back to single records",
		"records", len(records), "err", err)
	return bp.processOneByOne(ctx, records)
}

func (bp *BatchProcessor) processOneByOne(ctx context.Context, records []*core.EnrichedRecord) ([]*core.EmbeddingVector, []Failure, error) {
	var (
		vectors  []*core.EmbeddingVector
		failures []Failure
	)
	for _, record := range records {
		v, err := bp.embedOne(ctx, record)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		if err != nil {
			bp.logger.Warn("failed to embed record", "id", record.ID, "err", err)
			failures = append(failures, Failure{CatalogID: record.ID, Err: err})
			continue
		}
		vectors = append(vectors, v)
	}
	return vectors, failures, nil
}

func (bp *BatchProcessor) embedOne(ctx context.Context, record *core.EnrichedRecord) (*core.EmbeddingVector, error) {
	var embedding []float32
	err := retry.Do(ctx, func() error {
		var err error
		embedding, err = bp.embedder.EmbedText(ctx, record.Text)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return nil, err
	}
	return bp.toVector(record, embedding)
}

func (bp *BatchProcessor) toVector(record *core.EnrichedRecord, embedding []float32) (*core.EmbeddingVector, error) {
	if len(embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return &core.EmbeddingVector{
		RecordID:   record.Key(),
		CatalogID:  record.ID,
		SourceHash: record.SourceHash,
		Model:      bp.embedder.Model(),
		Vector:     NormalizeVector(embedding),
		EmbeddedAt: time.Now().UTC(),
	}, nil
}
