// Package server exposes the tool registry over the Model Context
// Protocol. Transport is stdio: the gateway is designed to run as a
// local MCP server under an agent host process.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/jkaninda/execgate/internal/tools"
)

// Server wraps an MCP server around a tool registry.
type Server struct {
	mcp    *mcpserver.MCPServer
	logger *slog.Logger
}

// New registers every tool in the registry as an MCP tool and returns
// the server, ready to serve.
func New(name, version string, registry *tools.Registry, logger *slog.Logger) (*Server, error) {
	s := mcpserver.NewMCPServer(name, version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
	)

	for _, t := range registry.All() {
		schema, err := json.Marshal(t.InputSchema())
		if err != nil {
			return nil, fmt.Errorf("marshaling schema for tool %s: %w", t.Name(), err)
		}
		s.AddTool(mcp.NewToolWithRawSchema(t.Name(), t.Description(), schema), handlerFor(t, logger))
	}

	logger.Info("mcp server initialized",
		slog.String("name", name),
		slog.Int("tools", len(registry.All())),
	)
	return &Server{mcp: s, logger: logger}, nil
}

// ServeStdio blocks serving MCP over stdin/stdout until the client
// disconnects or the context is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcpserver.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
}

// handlerFor adapts a tools.Tool into an MCP tool handler. Tool and
// gateway failures become structured tool errors on the protocol, so the
// caller always gets something it can embed in its own response, never
// an opaque transport failure.
func handlerFor(t tools.Tool, logger *slog.Logger) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		params := req.GetArguments()

		if err := t.Validate(params); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		result, err := t.Execute(ctx, params)
		if err != nil {
			logger.WarnContext(ctx, "tool execution refused or failed",
				slog.String("tool", t.Name()),
				slog.String("error", err.Error()),
			)
			return mcp.NewToolResultError(err.Error()), nil
		}

		payload, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("marshaling result for tool %s: %w", t.Name(), err)
		}
		return mcp.NewToolResultText(string(payload)), nil
	}
}
