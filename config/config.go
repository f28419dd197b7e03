// Package config loads the advisor's YAML configuration file and .env.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/advisor/ai"
	"github.com/poiesic/advisor/catalog"
	"github.com/poiesic/advisor/embed"
	"github.com/poiesic/advisor/search"
	"github.com/poiesic/advisor/storage/qdrant"
	"gopkg.in/yaml.v3"
)

const (
	// BackendBadger keeps vectors in the run directory.
	BackendBadger = "badger"
	// BackendQdrant keeps vectors in a Qdrant collection.
	BackendQdrant = "qdrant"

	// DefaultQdrantAddr is Qdrant's gRPC port on localhost.
	DefaultQdrantAddr = "localhost:6334"
)

// ErrUnknownBackend is returned for an unsupported storage.backend value.
var ErrUnknownBackend = errors.New("unknown storage backend")

// CatalogConfig configures the fetch stage.
type CatalogConfig struct {
	BaseURL           string        `yaml:"base_url"`
	CustomerDomain    string        `yaml:"customer_domain"`
	Partitions        []string      `yaml:"partitions,omitempty"`
	PageSize          int           `yaml:"page_size"`
	MaxResults        int           `yaml:"max_results"`
	LocationID        int           `yaml:"location_id"`
	MaterialTypeID    int           `yaml:"material_type_id,omitempty"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	MaxAttempts       int           `yaml:"max_attempts"`
	BaseDelay         time.Duration `yaml:"base_delay"`
	Timeout           time.Duration `yaml:"timeout"`
}

// AIConfig configures the embedding and chat endpoints.
type AIConfig struct {
	Host           string  `yaml:"host"`
	EmbeddingHost  string  `yaml:"embedding_host,omitempty"`
	ChatHost       string  `yaml:"chat_host,omitempty"`
	EmbeddingModel string  `yaml:"embedding_model"`
	ChatModel      string  `yaml:"chat_model"`
	MaxTokens      int     `yaml:"max_tokens"`
	Temperature    float64 `yaml:"temperature"`
	APIKeyEnv      string  `yaml:"api_key_env"`
}

// EmbedConfig configures the embed stage.
type EmbedConfig struct {
	BatchSize      int           `yaml:"batch_size"`
	ReportInterval int           `yaml:"report_interval"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	Force          bool          `yaml:"force"`
}

// QueryConfig configures search and chat.
type QueryConfig struct {
	TopK          int     `yaml:"top_k"`
	CandidatePool int     `yaml:"candidate_pool"`
	MaxCandidates int     `yaml:"max_candidates"`
	SummaryBonus  float32 `yaml:"summary_bonus"`
}

// StorageConfig selects where vectors live.
type StorageConfig struct {
	Backend          string `yaml:"backend"`
	QdrantAddr       string `yaml:"qdrant_addr,omitempty"`
	QdrantCollection string `yaml:"qdrant_collection,omitempty"`
}

// AppConfig is the in-memory representation of the YAML config file.
type AppConfig struct {
	Catalog CatalogConfig `yaml:"catalog"`
	AI      AIConfig      `yaml:"ai"`
	Embed   EmbedConfig   `yaml:"embed"`
	Query   QueryConfig   `yaml:"query"`
	Storage StorageConfig `yaml:"storage"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *AppConfig {
	cfg := &AppConfig{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the config file at path. A missing file yields the
// defaults. Fields the file leaves out are filled with defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// Save marshals cfg and writes it to path, creating parent directories.
func Save(path string, cfg *AppConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write config %s: %w", path, err)
	}
	return nil
}

// LoadEnv loads .env files into the process environment. Missing files are
// ignored; variables already set win.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("cannot load %s: %w", p, err)
		}
	}
	return nil
}

// Validate checks values that have no sensible default.
func (c *AppConfig) Validate() error {
	switch c.Storage.Backend {
	case BackendBadger, BackendQdrant:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Storage.Backend)
	}
}

func (c *AppConfig) applyDefaults() {
	cat := catalog.DefaultConfig()
	if c.Catalog.BaseURL == "" {
		c.Catalog.BaseURL = cat.BaseURL
	}
	if c.Catalog.CustomerDomain == "" {
		c.Catalog.CustomerDomain = cat.CustomerDomain
	}
	if len(c.Catalog.Partitions) == 0 {
		c.Catalog.Partitions = cat.Partitions
	}
	if c.Catalog.PageSize <= 0 {
		c.Catalog.PageSize = cat.PageSize
	}
	if c.Catalog.MaxResults <= 0 {
		c.Catalog.MaxResults = cat.MaxResults
	}
	if c.Catalog.LocationID == 0 {
		c.Catalog.LocationID = cat.LocationIDs
	}
	if c.Catalog.RequestsPerSecond == 0 {
		c.Catalog.RequestsPerSecond = cat.RequestsPerSecond
	}
	if c.Catalog.MaxAttempts <= 0 {
		c.Catalog.MaxAttempts = cat.MaxAttempts
	}
	if c.Catalog.BaseDelay <= 0 {
		c.Catalog.BaseDelay = cat.BaseDelay
	}
	if c.Catalog.Timeout <= 0 {
		c.Catalog.Timeout = cat.Timeout
	}

	aiDefaults := ai.DefaultConfig()
	if c.AI.Host == "" {
		c.AI.Host = ai.DefaultHost
	}
	if c.AI.EmbeddingModel == "" {
		c.AI.EmbeddingModel = aiDefaults.EmbeddingModel
	}
	if c.AI.ChatModel == "" {
		c.AI.ChatModel = aiDefaults.ChatModel
	}
	if c.AI.MaxTokens <= 0 {
		c.AI.MaxTokens = aiDefaults.MaxTokens
	}
	if c.AI.Temperature == 0 {
		c.AI.Temperature = aiDefaults.Temperature
	}
	if c.AI.APIKeyEnv == "" {
		c.AI.APIKeyEnv = ai.DefaultAPIKeyEnv
	}

	emb := embed.DefaultConfig()
	if c.Embed.BatchSize <= 0 {
		c.Embed.BatchSize = emb.BatchSize
	}
	if c.Embed.ReportInterval <= 0 {
		c.Embed.ReportInterval = emb.ReportInterval
	}
	if c.Embed.MaxRetries <= 0 {
		c.Embed.MaxRetries = emb.MaxRetries
	}
	if c.Embed.RetryDelay <= 0 {
		c.Embed.RetryDelay = emb.RetryDelay
	}

	q := search.DefaultConfig()
	if c.Query.TopK <= 0 {
		c.Query.TopK = q.TopK
	}
	if c.Query.CandidatePool <= 0 {
		c.Query.CandidatePool = q.CandidatePool
	}
	if c.Query.MaxCandidates <= 0 {
		c.Query.MaxCandidates = q.MaxCandidates
	}
	if c.Query.SummaryBonus == 0 {
		c.Query.SummaryBonus = q.SummaryBonus
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendBadger
	}
	if c.Storage.Backend == BackendQdrant {
		if c.Storage.QdrantAddr == "" {
			c.Storage.QdrantAddr = DefaultQdrantAddr
		}
		if c.Storage.QdrantCollection == "" {
			c.Storage.QdrantCollection = qdrant.DefaultCollection
		}
	}
}

// CatalogConfig returns the settings for catalog.NewClient.
func (c *AppConfig) CatalogConfig() catalog.Config {
	return catalog.Config{
		BaseURL:           c.Catalog.BaseURL,
		CustomerDomain:    c.Catalog.CustomerDomain,
		Partitions:        c.Catalog.Partitions,
		PageSize:          c.Catalog.PageSize,
		MaxResults:        c.Catalog.MaxResults,
		LocationIDs:       c.Catalog.LocationID,
		MaterialTypeIDs:   c.Catalog.MaterialTypeID,
		RequestsPerSecond: c.Catalog.RequestsPerSecond,
		MaxAttempts:       c.Catalog.MaxAttempts,
		BaseDelay:         c.Catalog.BaseDelay,
		Timeout:           c.Catalog.Timeout,
	}
}

// AIConfig builds the provider configuration for apiKey.
func (c *AppConfig) AIConfig(apiKey string) *ai.Config {
	opts := []ai.ConfigOption{
		ai.WithHost(c.AI.Host),
		ai.WithAPIKey(apiKey),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithChatModel(c.AI.ChatModel),
		ai.WithMaxTokens(c.AI.MaxTokens),
		ai.WithTemperature(c.AI.Temperature),
	}
	if c.AI.EmbeddingHost != "" {
		opts = append(opts, ai.WithEmbeddingHost(c.AI.EmbeddingHost))
	}
	if c.AI.ChatHost != "" {
		opts = append(opts, ai.WithChatHost(c.AI.ChatHost))
	}
	return ai.NewConfig(opts...)
}

// EmbedConfig returns the settings for embed.NewBuilder.
func (c *AppConfig) EmbedConfig() *embed.Config {
	return &embed.Config{
		BatchSize:      c.Embed.BatchSize,
		ReportInterval: c.Embed.ReportInterval,
		MaxRetries:     c.Embed.MaxRetries,
		RetryDelay:     c.Embed.RetryDelay,
		Force:          c.Embed.Force,
	}
}

// SearchConfig returns the settings for search.NewEngine.
func (c *AppConfig) SearchConfig() *search.Config {
	cfg := search.DefaultConfig()
	cfg.TopK = c.Query.TopK
	cfg.CandidatePool = c.Query.CandidatePool
	cfg.MaxCandidates = c.Query.MaxCandidates
	cfg.SummaryBonus = c.Query.SummaryBonus
	return cfg
}
