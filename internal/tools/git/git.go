// Package git implements read-only git inspection tools on top of the
// gateway. Only safe subcommands are exposed; git itself must still be
// on the gateway whitelist.
package git

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jkaninda/execgate/internal/gateway"
	"github.com/jkaninda/execgate/internal/tools"
	execTool "github.com/jkaninda/execgate/internal/tools/exec"
)

// safeSubcommands are the git operations this tool will run. Everything
// mutating (push, reset, clean, ...) is deliberately absent.
var safeSubcommands = map[string]struct{}{
	"status": {},
	"log":    {},
	"diff":   {},
	"show":   {},
	"branch": {},
}

// Tool runs read-only git subcommands through the gateway.
type Tool struct {
	gw     *gateway.Gateway
	logger *slog.Logger
}

// NewTool creates the git inspection tool.
func NewTool(gw *gateway.Gateway, logger *slog.Logger) *Tool {
	return &Tool{gw: gw, logger: logger}
}

func (t *Tool) Name() string { return "git_inspect" }
func (t *Tool) Description() string {
	return "Run a read-only git subcommand (status, log, diff, show, branch) in a repository"
}

func (t *Tool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"subcommand": map[string]any{"type": "string", "description": "One of: status, log, diff, show, branch"},
			"args":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Extra arguments for the subcommand"},
			"repo_dir":   map[string]any{"type": "string", "description": "Repository directory (must be under an allowed root)"},
		},
		"required": []string{"subcommand"},
	}
}

func (t *Tool) Validate(params map[string]any) error {
	sub, err := tools.RequireString(params, "subcommand")
	if err != nil {
		return err
	}
	if _, ok := safeSubcommands[sub]; !ok {
		return fmt.Errorf("git subcommand not supported: %s", sub)
	}
	if _, err := tools.StringSlice(params, "args"); err != nil {
		return err
	}
	return nil
}

func (t *Tool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	if err := t.Validate(params); err != nil {
		return nil, err
	}
	sub, _ := tools.RequireString(params, "subcommand")
	extra, _ := tools.StringSlice(params, "args")

	req := gateway.Request{
		Program: "git",
		Args:    append([]string{sub}, extra...),
	}
	if dir, ok := params["repo_dir"].(string); ok {
		req.WorkingDir = dir
	}

	t.logger.InfoContext(ctx, "git tool executing", slog.String("subcommand", sub))

	result, err := t.gw.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	return execTool.FormatResult(result), nil
}
