package storage

import (
	"context"

	"github.com/poiesic/advisor/core"
)

// VectorIndex stores embedding vectors and answers nearest-neighbor queries.
// Vectors are expected to be unit length so that the inner product equals
// cosine similarity.
type VectorIndex interface {
	// FindSimilar returns the vectors most similar to the given vector.
	// Returns hits with similarity >= minSimilarity, up to limit results,
	// ordered by score (highest first) with ties broken by catalog ID.
	// An empty index yields an empty result, not an error.
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]core.QueryResult, error)

	// PutVectors inserts or replaces vectors keyed by RecordID.
	PutVectors(ctx context.Context, vectors ...*core.EmbeddingVector) error

	// GetVector retrieves a single vector by record ID.
	// Returns ErrNotFound if the vector doesn't exist.
	GetVector(ctx context.Context, id core.ID) (*core.EmbeddingVector, error)

	// GetVectors retrieves the vectors that exist for the given IDs.
	// Missing IDs are skipped. Backends that do not return raw vector data
	// leave Vector empty but always fill the identifying fields.
	GetVectors(ctx context.Context, ids ...core.ID) ([]*core.EmbeddingVector, error)

	// DeleteVectors removes vectors by record ID. Missing IDs are ignored.
	DeleteVectors(ctx context.Context, ids ...core.ID) error

	// VectorIDs lists the record IDs of all stored vectors.
	VectorIDs(ctx context.Context) ([]core.ID, error)

	// CountVectors returns the number of stored vectors.
	CountVectors(ctx context.Context) (int, error)

	// Close releases resources held by the index.
	Close() error
}

// RecordRepository is the identifier-to-record lookup table that accompanies
// the vector index.
type RecordRepository interface {
	// PutRecords inserts or replaces records keyed by their catalog ID.
	PutRecords(ctx context.Context, records ...*core.EnrichedRecord) error

	// GetRecord retrieves a single record.
	// Returns ErrNotFound if the record doesn't exist.
	GetRecord(ctx context.Context, id core.ID) (*core.EnrichedRecord, error)

	// GetRecords retrieves multiple records. Missing IDs are skipped.
	GetRecords(ctx context.Context, ids ...core.ID) ([]*core.EnrichedRecord, error)

	// DeleteRecords removes records. Missing IDs are ignored.
	DeleteRecords(ctx context.Context, ids ...core.ID) error

	// RecordIDs lists the IDs of all stored records.
	RecordIDs(ctx context.Context) ([]core.ID, error)

	// Close releases resources held by the repository.
	Close() error
}

// MetaRepository persists the description of the last index build.
type MetaRepository interface {
	// SaveMeta stores index metadata, replacing any previous value.
	SaveMeta(ctx context.Context, meta *core.IndexMeta) error

	// LoadMeta returns the stored metadata, or nil, nil if the index was
	// never built.
	LoadMeta(ctx context.Context) (*core.IndexMeta, error)
}

// Resetter is implemented by vector indexes that must be recreated, not just
// emptied, when the embedding dimension changes.
type Resetter interface {
	Reset(ctx context.Context) error
}
