package embed

import "errors"

var (
	// ErrPartialEmbed is returned when some records could not be embedded.
	// Vectors for the other records are persisted; the next run retries only
	// the failed ones.
	ErrPartialEmbed = errors.New("some records could not be embedded")

	// ErrEmbedderRequired is returned when no embedder is provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrStoresRequired is returned when a repository is missing.
	ErrStoresRequired = errors.New("vector index, record and meta repositories required")

	// ErrEmptyEmbedding is returned when the service returns an empty vector.
	ErrEmptyEmbedding = errors.New("embedding service returned an empty vector")
)
