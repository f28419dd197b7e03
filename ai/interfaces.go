package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in one
	// blocking call. The returned slice contains embeddings in the same order
	// as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the embedding model identifier recorded with each vector.
	Model() string
}

// Completer produces a chat completion from a system prompt and a user
// message.
type Completer interface {
	// Complete returns the generated text verbatim. An empty string means
	// the model produced nothing; callers decide how to present that.
	Complete(ctx context.Context, system, user string) (string, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates and manages Embedder and Completer instances,
// ensuring they share configuration and resources appropriately.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Completer returns the chat completion service.
	Completer() Completer

	// Close releases resources held by the provider and its services.
	Close() error
}
