package model

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration for Anamnesis
type Config struct {
	Salesforce  SalesforceConfig  `yaml:"salesforce" mapstructure:"salesforce"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Memory      MemoryConfig      `yaml:"memory" mapstructure:"memory"`
	Similarity  SimilarityConfig  `yaml:"similarity" mapstructure:"similarity"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`

	// Mock swaps in canned ticket and AI collaborators so a full
	// investigation can run offline
	Mock bool `yaml:"mock" mapstructure:"mock"`
}

// SalesforceConfig holds credentials and tuning for the ticket source
type SalesforceConfig struct {
	// Domain is the login/instance URL (e.g. https://mycompany.my.salesforce.com)
	Domain string `yaml:"domain" mapstructure:"domain"`

	// Username for the JWT bearer flow
	Username string `yaml:"username" mapstructure:"username"`

	// ConsumerKey is the connected app client ID
	ConsumerKey string `yaml:"consumer_key" mapstructure:"consumer_key"`

	// ConsumerSecret enables the client-credentials flow when no key file is set
	ConsumerSecret string `yaml:"consumer_secret,omitempty" mapstructure:"consumer_secret"`

	// KeyPath points to the RSA private key for the JWT bearer flow
	KeyPath string `yaml:"key_path,omitempty" mapstructure:"key_path"`

	// RateLimit caps Salesforce API calls per second (0 = unlimited)
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`

	// HistoricalLimit is how many past cases a backfill pulls
	HistoricalLimit int `yaml:"historical_limit" mapstructure:"historical_limit"`
}

// LLMConfig holds AI provider configuration
type LLMConfig struct {
	// Provider name: "openai", "ollama", "mock"
	Provider string `yaml:"provider" mapstructure:"provider"`

	// Model for analysis and vision extraction
	Model string `yaml:"model" mapstructure:"model"`

	// EmbeddingModel must stay fixed for the life of a knowledge store:
	// every stored and queried vector has to share one dimensionality
	EmbeddingModel string `yaml:"embedding_model" mapstructure:"embedding_model"`

	// APIKey for OpenAI
	APIKey string `yaml:"api_key,omitempty" mapstructure:"api_key"`

	// BaseURL for custom endpoints (e.g. Ollama, Azure gateways)
	BaseURL string `yaml:"base_url,omitempty" mapstructure:"base_url"`

	// Timeout for a single API request, in seconds
	Timeout int `yaml:"timeout" mapstructure:"timeout"`

	// MaxTokens for response generation
	MaxTokens int `yaml:"max_tokens" mapstructure:"max_tokens"`

	// Proxy settings
	HTTPProxy  string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy    string `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// MemoryConfig locates the knowledge store documents
type MemoryConfig struct {
	// StorePath is the case-record snapshot document
	StorePath string `yaml:"store_path" mapstructure:"store_path"`

	// FeedbackPath is the append-only feedback audit log
	FeedbackPath string `yaml:"feedback_path" mapstructure:"feedback_path"`
}

// SimilarityConfig holds acceptance thresholds for the matcher.
// The two thresholds belong to different algorithms and are not
// numerically comparable.
type SimilarityConfig struct {
	// SemanticThreshold applies to cosine similarity over embeddings
	SemanticThreshold float64 `yaml:"semantic_threshold" mapstructure:"semantic_threshold"`

	// LexicalThreshold applies to character-overlap text similarity
	LexicalThreshold float64 `yaml:"lexical_threshold" mapstructure:"lexical_threshold"`
}

// CacheConfig controls the embedding cache
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir     string        `yaml:"dir" mapstructure:"dir"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// ConcurrencyConfig tunes parallel work
type ConcurrencyConfig struct {
	// BackfillWorkers is the embedding worker count for historical ingestion
	BackfillWorkers int `yaml:"backfill_workers" mapstructure:"backfill_workers"`
}

// OutputConfig controls CLI output behavior
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Salesforce: SalesforceConfig{
			RateLimit:       5,
			HistoricalLimit: 50,
		},
		LLM: LLMConfig{
			Provider:       "openai",
			Model:          "gpt-4o",
			EmbeddingModel: "text-embedding-3-small",
			Timeout:        60,
			MaxTokens:      1500,
		},
		Memory: MemoryConfig{
			StorePath:    "data/ticket_memory.json",
			FeedbackPath: "data/feedback_log.jsonl",
		},
		Similarity: SimilarityConfig{
			SemanticThreshold: 0.80,
			LexicalThreshold:  0.65,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".anamnesis-cache",
			TTL:     7 * 24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			BackfillWorkers: 4,
		},
	}
}

// Validate checks that required credentials are present. It runs once at
// startup; a run never fails on configuration after this passes.
func (c *Config) Validate() error {
	if c.Mock {
		return nil
	}

	var missing []string

	if c.LLM.Provider == "openai" && c.LLM.APIKey == "" {
		missing = append(missing, "llm.api_key")
	}
	if c.Salesforce.Domain == "" {
		missing = append(missing, "salesforce.domain")
	}
	if c.Salesforce.ConsumerKey == "" {
		missing = append(missing, "salesforce.consumer_key")
	}
	if c.Salesforce.KeyPath == "" && c.Salesforce.ConsumerSecret == "" {
		missing = append(missing, "salesforce.key_path or salesforce.consumer_secret")
	}
	if c.Salesforce.KeyPath != "" && c.Salesforce.Username == "" {
		missing = append(missing, "salesforce.username")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s (set mock: true to run with canned data)",
			strings.Join(missing, ", "))
	}

	return nil
}
