// Package cmd implements the code-researcher command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bad33ndj3/code-researcher/internal/domain"
)

const serverName = "code-researcher"

// Version is set at build time.
var Version = "dev"

// usageError marks bad flags or configuration.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// flags holds the persistent flag values shared by all subcommands.
type flags struct {
	configPath  string
	envFile     string
	codebase    string
	persistDir  string
	logDir      string
	extensions  []string
	exclude     []string
	embedder    string
	convertHTML bool
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:           serverName,
		Short:         "Semantic search and guarded file access over a codebase",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "YAML config file")
	pf.StringVar(&f.envFile, "env-file", ".env", "dotenv file (ignored if missing)")
	pf.StringVar(&f.codebase, "codebase", "", "Path to the codebase")
	pf.StringVar(&f.persistDir, "persist-dir", "", "Directory holding the vector index")
	pf.StringVar(&f.logDir, "log-dir", "", "Directory for debug logs")
	pf.StringSliceVar(&f.extensions, "extensions", nil, "File extensions to index (e.g. .py,.java,.c)")
	pf.StringSliceVar(&f.exclude, "exclude", nil, "Glob patterns to skip (e.g. **/vendor/**)")
	pf.StringVar(&f.embedder, "embedder", "", "Embedding provider: ollama, openai or hash")
	pf.BoolVar(&f.convertHTML, "convert-html", false, "Index .html/.htm files as markdown")

	root.AddCommand(
		newServeCommand(f),
		newBuildCommand(f),
		newSearchCommand(f),
		newReadCommand(f),
		newAskCommand(f),
	)
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

// run executes args and maps the outcome to an exit code: 0 on success,
// 1 for the known error kinds and bad usage, 2 for anything else.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var usage usageError
	if domain.IsUserFacing(err) || errors.As(err, &usage) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stderr, "Error: unexpected failure: %v\n", err)
	return 2
}
