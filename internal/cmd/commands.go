package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	mcpserver "github.com/bad33ndj3/code-researcher/internal/mcp"
	"github.com/bad33ndj3/code-researcher/internal/tools"
)

func newServeCommand(f *flags) *cobra.Command {
	var skipBuild bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Build the index, then serve search_code and read_file over MCP stdio",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := f.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if err := a.checkEmbedder(ctx); err != nil {
				return err
			}
			if !skipBuild {
				if _, err := a.indexer.Build(ctx); err != nil {
					a.logger.Error("build failed", "error", err)
					return err
				}
			}

			hup := make(chan os.Signal, 1)
			signal.Notify(hup, syscall.SIGHUP)
			defer signal.Stop(hup)
			go reloadOnSignal(ctx, a.indexer, hup, a.logger)

			server := mcpserver.NewServer(serverName, Version, tools.Set(a.indexer, a.cfg.TopK), a.logger)
			a.logger.Info("server ready, waiting for requests")

			if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
				a.logger.Error("server error", "error", err)
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipBuild, "skip-build", false, "Serve the already persisted index (loaded on first search)")
	return cmd
}

type reloader interface {
	Reload(ctx context.Context) error
}

// reloadOnSignal reloads the persisted index each time sig fires, so a
// running server picks up an index rebuilt by `build` in another process.
func reloadOnSignal(ctx context.Context, r reloader, sig <-chan os.Signal, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			if err := r.Reload(ctx); err != nil {
				logger.Error("reload failed", "error", err)
				continue
			}
			logger.Info("index reloaded")
		}
	}
}

func newBuildCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Index the codebase and persist the vector index",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := f.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.checkEmbedder(cmd.Context()); err != nil {
				return err
			}
			res, err := a.indexer.Build(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d documents into %d chunks", res.Documents, res.Chunks)
			if res.Skipped > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), " (%d skipped)", res.Skipped)
			}
			fmt.Fprintf(cmd.OutOrStdout(), " in %s\nIndex: %s\n", res.Duration.Round(time.Millisecond), a.indexer.PersistDir())
			return nil
		},
	}
}

func newSearchCommand(f *flags) *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the persisted index",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := f.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("k") {
				k = a.cfg.TopK
			}
			out, err := a.indexer.Search(cmd.Context(), args[0], k)
			if err != nil {
				return err
			}
			if out == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No results found")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().IntVarP(&k, "k", "k", 0, "Number of snippets (default from config)")
	return cmd
}

func newReadCommand(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "read <path>",
		Short: "Print a file from the codebase",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := f.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			content, err := a.indexer.ReadFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), content)
			return nil
		},
	}
}

// newAskCommand builds the index and runs the question through search_code.
// Answer synthesis belongs to the agent connected over MCP.
func newAskCommand(f *flags) *cobra.Command {
	var question string

	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Build the index and print the snippets relevant to a question",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(question) == "" {
				return usageError{errors.New("--question is required")}
			}

			a, err := f.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if err := a.checkEmbedder(ctx); err != nil {
				return err
			}
			if _, err := a.indexer.Build(ctx); err != nil {
				return err
			}

			input, err := json.Marshal(tools.SearchCodeInput{Query: question})
			if err != nil {
				return err
			}
			out, err := tools.NewSearchCode(a.indexer, a.cfg.TopK).Invoke(ctx, input)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&question, "question", "q", "", "Question to ask (required)")
	return cmd
}
