// Package mcp serves the research tools over the Model Context Protocol.
// Handlers decode nothing themselves: arguments are passed through as raw
// JSON to the tool, which owns its input contract.
package mcp

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bad33ndj3/code-researcher/internal/tools"
)

// Instructions tell the connected agent how to use the tools.
const Instructions = "You are Code Researcher, an agent that answers questions about large codebases. " +
	"Use search_code to retrieve relevant code snippets and read_file to inspect files in detail. " +
	"Give concise answers and reference file paths when possible."

// Handlers adapts tools to MCP tool handlers.
type Handlers struct {
	logger *slog.Logger
}

// NewHandlers creates handlers logging to logger.
func NewHandlers(logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{logger: logger}
}

// Handler returns the MCP handler invoking t.
func (h *Handlers) Handler(t tools.Tool) mcp.ToolHandlerFor[json.RawMessage, any] {
	name := t.Name()
	return func(ctx context.Context, req *mcp.CallToolRequest, args json.RawMessage) (*mcp.CallToolResult, any, error) {
		h.logger.Debug(name+": called", "args", string(args))

		out, err := t.Invoke(ctx, args)
		if err != nil {
			h.logger.Error(name+": failed", "error", err)
			return nil, nil, err
		}

		h.logger.Info(name+": success", "result_length", len(out))
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: out}},
		}, nil, nil
	}
}

// Register adds every tool to server.
func (h *Handlers) Register(server *mcp.Server, set []tools.Tool) {
	for _, t := range set {
		mcp.AddTool(server, &mcp.Tool{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		}, h.Handler(t))
	}
}

// NewServer creates an MCP server exposing set.
func NewServer(name, version string, set []tools.Tool, logger *slog.Logger) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    name,
		Version: version,
	}, &mcp.ServerOptions{
		Instructions: Instructions,
	})
	NewHandlers(logger).Register(server, set)
	return server
}
