// Package embedding turns chunk text into vectors.
// Providers are interchangeable behind Embedder: Ollama and any
// OpenAI-compatible API for real models, and a feature-hashing embedder
// that needs no network at all.
package embedding

import (
	"context"
	"fmt"
	"strings"
)

// Provider names accepted in Config.Provider.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderHash   = "hash"
)

// Config holds settings for the embedding client.
type Config struct {
	Provider   string `yaml:"provider"`   // "ollama", "openai" or "hash"
	Host       string `yaml:"host"`       // Ollama server URL
	Model      string `yaml:"model"`      // Embedding model name
	APIKey     string `yaml:"api_key"`    // OpenAI API key
	BaseURL    string `yaml:"base_url"`   // OpenAI-compatible endpoint (optional)
	Dimensions int    `yaml:"dimensions"` // Vector size for the hash provider
	BatchSize  int    `yaml:"batch_size"` // Texts per request
}

// DefaultConfig returns sensible defaults for local Ollama.
func DefaultConfig() Config {
	return Config{
		Provider:   ProviderOllama,
		Host:       "http://localhost:11434",
		Model:      "nomic-embed-text",
		Dimensions: DefaultHashDimensions,
		BatchSize:  16,
	}
}

// Embedder generates vector embeddings for text.
// Implementations must be deterministic for a given model and input.
type Embedder interface {
	// Embed generates an embedding vector for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Available returns true if the embedding service is reachable.
	Available(ctx context.Context) bool
}

// ProviderName returns the normalised provider; empty selects Ollama.
func (c Config) ProviderName() string {
	name := strings.ToLower(strings.TrimSpace(c.Provider))
	if name == "" {
		return ProviderOllama
	}
	return name
}

// Endpoint returns the address the provider sends requests to.
func (c Config) Endpoint() string {
	switch c.ProviderName() {
	case ProviderOllama:
		if c.Host == "" {
			return DefaultConfig().Host
		}
		return c.Host
	case ProviderOpenAI:
		if c.BaseURL == "" {
			return defaultOpenAIBaseURL
		}
		return c.BaseURL
	default:
		return "local"
	}
}

// New builds the embedder selected by cfg.Provider.
func New(cfg Config) (Embedder, error) {
	switch cfg.ProviderName() {
	case ProviderOllama:
		return NewOllamaEmbedder(cfg)
	case ProviderOpenAI:
		return NewOpenAIEmbedder(cfg)
	case ProviderHash:
		return NewHashEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// batches splits texts into consecutive slices of at most size elements.
func batches(texts []string, size int) [][]string {
	if size <= 0 {
		size = len(texts)
	}
	var out [][]string
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		out = append(out, texts[start:end])
	}
	return out
}
