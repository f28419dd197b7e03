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

package ai

import (
	"fmt"
	"strings"
)

const (
	// DefaultHost is the OpenAI API.
	DefaultHost = "https://api.openai.com/v1"
	// DefaultEmbeddingModel is used for both records and queries.
	DefaultEmbeddingModel = "text-embedding-3-small"
	// DefaultChatModel writes recommendations.
	DefaultChatModel = "gpt-4o-mini"
	// DefaultMaxTokens bounds the length of a recommendation.
	DefaultMaxTokens = 350
	// DefaultAPIKeyEnv is the environment variable holding the API key.
	DefaultAPIKeyEnv = "OPENAI_API_KEY"
)

// Config holds configuration for AI service providers.
type Config struct {
	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "https://api.openai.com/v1"
	EmbeddingHost string

	// ChatHost is the base URL for the chat completion service API.
	ChatHost string

	// APIKey authenticates against both services.
	APIKey string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Records and queries must be embedded with the same model.
	EmbeddingModel string

	// ChatModel is the model identifier used for recommendations.
	ChatModel string

	// MaxTokens caps the length of a generated recommendation.
	// Default: 350
	MaxTokens int

	// Temperature is the sampling temperature of the chat model.
	Temperature float64
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithChatHost sets the chat service host URL.
func WithChatHost(host string) ConfigOption {
	return func(c *Config) {
		c.ChatHost = host
	}
}

// WithHost sets both embedding and chat hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.ChatHost = host
	}
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithChatModel sets the chat model identifier.
func WithChatModel(model string) ConfigOption {
	return func(c *Config) {
		c.ChatModel = model
	}
}

// WithMaxTokens sets the completion token limit.
func WithMaxTokens(n int) ConfigOption {
	return func(c *Config) {
		c.MaxTokens = n
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) ConfigOption {
	return func(c *Config) {
		c.Temperature = t
	}
}

// DefaultConfig returns a Config for the hosted OpenAI API. The API key is
// left empty; callers read it from the environment once at startup.
func DefaultConfig() *Config {
	return &Config{
		EmbeddingHost:  DefaultHost,
		ChatHost:       DefaultHost,
		EmbeddingModel: DefaultEmbeddingModel,
		ChatModel:      DefaultChatModel,
		MaxTokens:      DefaultMaxTokens,
		Temperature:    0.3,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	    WithChatModel("gpt-4o"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It adds the /v1 suffix to hosts if missing, which OpenAI-compatible
// APIs expect.
func (c *Config) Normalize() {
	c.EmbeddingHost = normalizeHost(c.EmbeddingHost)
	c.ChatHost = normalizeHost(c.ChatHost)
	c.APIKey = strings.TrimSpace(c.APIKey)
}

func normalizeHost(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.EmbeddingHost == "" {
		return fmt.Errorf("%w: EmbeddingHost", ErrMissingHost)
	}
	if c.ChatHost == "" {
		return fmt.Errorf("%w: ChatHost", ErrMissingHost)
	}
	if c.EmbeddingModel == "" {
		return fmt.Errorf("%w: EmbeddingModel", ErrMissingModel)
	}
	if c.ChatModel == "" {
		return fmt.Errorf("%w: ChatModel", ErrMissingModel)
	}
	if c.MaxTokens <= 0 {
		return ErrInvalidMaxTokens
	}
	return nil
}
