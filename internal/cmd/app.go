package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/bad33ndj3/code-researcher/internal/codebase"
	"github.com/bad33ndj3/code-researcher/internal/config"
	"github.com/bad33ndj3/code-researcher/internal/convert"
	"github.com/bad33ndj3/code-researcher/internal/domain"
	"github.com/bad33ndj3/code-researcher/internal/embedding"
	"github.com/bad33ndj3/code-researcher/internal/indexer"
	"github.com/bad33ndj3/code-researcher/internal/splitter"
)

// app is what every subcommand works with once flags are resolved.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	embedder embedding.Embedder
	indexer  *indexer.Indexer
	closer   io.Closer
}

func (a *app) Close() error {
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

// checkEmbedder fails fast when the embedding provider cannot be reached,
// instead of failing on the first batch halfway through a build.
func (a *app) checkEmbedder(ctx context.Context) error {
	if a.embedder.Available(ctx) {
		return nil
	}
	err := fmt.Errorf("%w: %s at %s", domain.ErrEmbedderUnavailable,
		a.cfg.Embedding.ProviderName(), a.cfg.Embedding.Endpoint())
	a.logger.Error("embedder check failed", "error", err)
	return err
}

// usageArgs reports argument count errors as usage errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

// resolve loads the layered configuration and applies changed flags on top.
func (f *flags) resolve(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(f.configPath, f.envFile)
	if err != nil {
		return cfg, usageError{err}
	}

	changed := cmd.Flags().Changed
	if changed("codebase") {
		cfg.Codebase = f.codebase
	}
	if changed("persist-dir") {
		cfg.PersistDir = f.persistDir
	}
	if changed("log-dir") {
		cfg.LogDir = f.logDir
	}
	if changed("extensions") {
		cfg.Extensions = f.extensions
	}
	if changed("exclude") {
		cfg.Exclude = f.exclude
	}
	if changed("embedder") {
		cfg.Embedding.Provider = f.embedder
	}
	if changed("convert-html") {
		cfg.ConvertHTML = f.convertHTML
	}

	if err := cfg.Validate(); err != nil {
		return cfg, usageError{err}
	}
	return cfg, nil
}

// setupLogger creates an slog logger that writes to a debug file in logDir.
// File format: debug-YYYY-MM-DD.txt
func setupLogger(logDir string) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}

	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(logDir, fmt.Sprintf("debug-%s.txt", date))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	handler := slog.NewTextHandler(file, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	return slog.New(handler), file, nil
}

// newApp resolves configuration and wires the indexer. Stdout is never
// used for logs: the serve command speaks MCP on it.
func (f *flags) newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := f.resolve(cmd)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	logger, logFile, err := setupLogger(cfg.LogDir)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to setup file logger: %v\n", err)
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelError}))
	} else {
		a.closer = logFile
	}
	a.logger = logger

	root, err := codebase.New(cfg.Codebase, codebase.WithLogger(logger))
	if err != nil {
		a.Close()
		return nil, usageError{err}
	}

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		a.Close()
		return nil, usageError{err}
	}
	a.embedder = embedder

	split, err := splitter.NewRecursiveSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		a.Close()
		return nil, usageError{err}
	}

	filter := codebase.Filter{Extensions: cfg.Extensions, Excludes: cfg.Exclude}
	opts := []indexer.Option{
		indexer.WithLogger(logger),
		indexer.WithPersistDir(cfg.PersistDir),
		indexer.WithSplitter(split),
		indexer.WithEmbedWorkers(cfg.EmbedWorkers),
		indexer.WithEmbedBatchSize(cfg.Embedding.BatchSize),
	}
	if cfg.ConvertHTML {
		filter.Extensions = append(append([]string(nil), filter.Extensions...), convert.HTMLExtensions...)
		opts = append(opts, indexer.WithTransformer(convert.HTMLToMarkdown{}))
	}
	opts = append(opts, indexer.WithFilter(filter))

	a.indexer, err = indexer.New(root, embedder, opts...)
	if err != nil {
		a.Close()
		return nil, usageError{err}
	}

	logger.Info("configured",
		"name", serverName,
		"version", Version,
		"codebase", root.Path(),
		"persist_dir", cfg.PersistDir,
		"embedder", cfg.Embedding.Provider,
		"extensions", filter.Extensions,
	)
	return a, nil
}
