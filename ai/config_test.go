package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, DefaultHost, cfg.EmbeddingHost)
	assert.Equal(t, DefaultHost, cfg.ChatHost)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, "gpt-4o-mini", cfg.ChatModel)
	assert.Equal(t, 350, cfg.MaxTokens)
	assert.Empty(t, cfg.APIKey)
}

func TestNewConfig(t *testing.T) {
	t.Run("with custom host", func(t *testing.T) {
		cfg := NewConfig(WithHost("http://custom:8080/v1"))

		assert.Equal(t, "http://custom:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://custom:8080/v1", cfg.ChatHost)
	})

	t.Run("with separate hosts", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingHost("http://embed:8080/v1"),
			WithChatHost("http://chat:9090/v1"),
		)

		assert.Equal(t, "http://embed:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://chat:9090/v1", cfg.ChatHost)
	})

	t.Run("with custom models and limits", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingModel("text-embedding-3-large"),
			WithChatModel("gpt-4o"),
			WithMaxTokens(500),
			WithTemperature(0.9),
			WithAPIKey("sk-test"),
		)

		assert.Equal(t, "text-embedding-3-large", cfg.EmbeddingModel)
		assert.Equal(t, "gpt-4o", cfg.ChatModel)
		assert.Equal(t, 500, cfg.MaxTokens)
		assert.InDelta(t, 0.9, cfg.Temperature, 1e-9)
		assert.Equal(t, "sk-test", cfg.APIKey)
	})
}

func TestConfig_Normalize(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		expected string
	}{
		{name: "adds /v1", host: "http://localhost:11434", expected: "http://localhost:11434/v1"},
		{name: "trailing slash", host: "http://localhost:11434/", expected: "http://localhost:11434/v1"},
		{name: "already normalized", host: "https://api.openai.com/v1", expected: "https://api.openai.com/v1"},
		{name: "empty stays empty", host: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{EmbeddingHost: tt.host, ChatHost: tt.host, APIKey: "  key "}
			cfg.Normalize()
			assert.Equal(t, tt.expected, cfg.EmbeddingHost)
			assert.Equal(t, tt.expected, cfg.ChatHost)
			assert.Equal(t, "key", cfg.APIKey)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cfg := NewConfig(WithAPIKey("sk-test"))
		require.NoError(t, cfg.Validate())
	})

	t.Run("missing api key", func(t *testing.T) {
		cfg := NewConfig(WithAPIKey("   "))
		assert.ErrorIs(t, cfg.Validate(), ErrMissingAPIKey)
	})

	t.Run("missing host", func(t *testing.T) {
		cfg := NewConfig(WithAPIKey("k"), WithChatHost(""))
		assert.ErrorIs(t, cfg.Validate(), ErrMissingHost)
	})

	t.Run("missing model", func(t *testing.T) {
		cfg := NewConfig(WithAPIKey("k"), WithEmbeddingModel(""))
		assert.ErrorIs(t, cfg.Validate(), ErrMissingModel)
	})

	t.Run("invalid max tokens", func(t *testing.T) {
		cfg := NewConfig(WithAPIKey("k"), WithMaxTokens(0))
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidMaxTokens)
	})
}
