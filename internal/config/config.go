// Package config loads code-researcher settings.
//
// Precedence, lowest first: built-in defaults, the YAML file, the .env file,
// the process environment. Command-line flags are applied on top by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/bad33ndj3/code-researcher/internal/domain"
	"github.com/bad33ndj3/code-researcher/internal/embedding"
	"github.com/bad33ndj3/code-researcher/internal/splitter"
)

// EnvPrefix prefixes every code-researcher environment variable.
const EnvPrefix = "CODE_RESEARCHER_"

// Config holds all settings.
type Config struct {
	Codebase     string   `yaml:"codebase"`
	PersistDir   string   `yaml:"persist_dir"`
	LogDir       string   `yaml:"log_dir"`
	Extensions   []string `yaml:"extensions"`
	Exclude      []string `yaml:"exclude"`
	ConvertHTML  bool     `yaml:"convert_html"`
	ChunkSize    int      `yaml:"chunk_size"`
	ChunkOverlap int      `yaml:"chunk_overlap"`
	TopK         int      `yaml:"top_k"`
	EmbedWorkers int      `yaml:"embed_workers"`

	Embedding embedding.Config `yaml:"embedding"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		PersistDir:   domain.DefaultPersistDir,
		LogDir:       ".code-researcher",
		Extensions:   append([]string(nil), domain.DefaultExtensions...),
		ChunkSize:    splitter.DefaultChunkSize,
		ChunkOverlap: splitter.DefaultChunkOverlap,
		TopK:         domain.DefaultTopK,
		EmbedWorkers: 2,
		Embedding:    embedding.DefaultConfig(),
	}
}

// Load reads configPath (optional) and dotenvPath (optional, may not exist)
// over the defaults, then applies the environment.
func Load(configPath, dotenvPath string) (Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := parseFile(configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("config file %s: %w", configPath, err)
		}
	}

	dotenv := map[string]string{}
	if dotenvPath != "" {
		m, err := godotenv.Read(dotenvPath)
		switch {
		case err == nil:
			dotenv = m
		case errors.Is(err, fs.ErrNotExist):
		default:
			return cfg, fmt.Errorf("env file %s: %w", dotenvPath, err)
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func parseFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	data = []byte(os.ExpandEnv(string(data)))

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = SplitList(v)
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str(EnvPrefix+"CODEBASE", &cfg.Codebase)
	str(EnvPrefix+"PERSIST_DIR", &cfg.PersistDir)
	str(EnvPrefix+"LOG_DIR", &cfg.LogDir)
	list(EnvPrefix+"EXTENSIONS", &cfg.Extensions)
	list(EnvPrefix+"EXCLUDE", &cfg.Exclude)
	str(EnvPrefix+"EMBEDDER", &cfg.Embedding.Provider)
	str(EnvPrefix+"EMBED_MODEL", &cfg.Embedding.Model)
	str("OLLAMA_HOST", &cfg.Embedding.Host)
	str("OPENAI_API_KEY", &cfg.Embedding.APIKey)
	str("OPENAI_BASE_URL", &cfg.Embedding.BaseURL)

	if v, ok := lookup(EnvPrefix + "CONVERT_HTML"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sCONVERT_HTML: %w", EnvPrefix, err)
		}
		cfg.ConvertHTML = b
	}

	for key, dst := range map[string]*int{
		EnvPrefix + "CHUNK_SIZE":    &cfg.ChunkSize,
		EnvPrefix + "CHUNK_OVERLAP": &cfg.ChunkOverlap,
		EnvPrefix + "TOP_K":         &cfg.TopK,
		EnvPrefix + "EMBED_WORKERS": &cfg.EmbedWorkers,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	return nil
}

// SplitList splits a comma or whitespace separated list, dropping empty items.
func SplitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}

// Validate checks the settings that cannot be defaulted.
func (c Config) Validate() error {
	if c.Codebase == "" {
		return errors.New("codebase directory is required")
	}
	if c.PersistDir == "" {
		return errors.New("persist directory is required")
	}
	if _, err := splitter.NewRecursiveSplitter(c.ChunkSize, c.ChunkOverlap); err != nil {
		return err
	}
	if c.TopK <= 0 {
		return fmt.Errorf("top_k must be positive, got %d", c.TopK)
	}
	if c.EmbedWorkers <= 0 {
		return fmt.Errorf("embed_workers must be positive, got %d", c.EmbedWorkers)
	}
	switch strings.ToLower(c.Embedding.Provider) {
	case embedding.ProviderOllama, embedding.ProviderOpenAI, embedding.ProviderHash:
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
	return nil
}
