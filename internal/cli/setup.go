package cli

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/ppiankov/anamnesis/internal/cache"
	"github.com/ppiankov/anamnesis/internal/llm"
	"github.com/ppiankov/anamnesis/internal/memory"
	"github.com/ppiankov/anamnesis/internal/model"
	"github.com/ppiankov/anamnesis/internal/similarity"
	"github.com/ppiankov/anamnesis/internal/ticket"
)

// loadConfig merges defaults, config file, environment and flags into one
// validated configuration
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse configuration: %w", err)
	}

	// Common environment fallback for the OpenAI key
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newTicketSource builds the ticket source for the configuration
func newTicketSource(cfg *model.Config) (ticket.Source, error) {
	if cfg.Mock {
		return ticket.NewMockSource(), nil
	}
	return ticket.NewSalesforceSource(cfg.Salesforce)
}

// newProvider builds the AI provider, wrapped with the embedding cache
// when caching is enabled
func newProvider(cfg *model.Config) (llm.Provider, error) {
	llmCfg := llm.ConfigFromModel(cfg.LLM)
	if cfg.Mock {
		llmCfg.Provider = "mock"
	}

	provider, err := llm.NewProvider(llmCfg)
	if err != nil {
		return nil, err
	}

	if cfg.Cache.Enabled {
		layered := cache.NewLayeredCache(cfg.Cache.TTL, cfg.Cache.Dir, cfg.Cache.TTL)
		provider = llm.NewCachingProvider(provider, llmCfg.EmbeddingModel, layered, cfg.Cache.TTL)
	}
	return provider, nil
}

// newStore opens the knowledge store
func newStore(cfg *model.Config) (*memory.Store, error) {
	return memory.NewStore(cfg.Memory)
}

// newEngine builds the similarity engine
func newEngine(cfg *model.Config) *similarity.Engine {
	return similarity.NewEngine(cfg.Similarity)
}
