// Package exec implements the generic command execution tool.
// All commands run through the gateway, never directly on the host.
package exec

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jkaninda/execgate/internal/gateway"
	"github.com/jkaninda/execgate/internal/tools"
)

// Tool executes whitelisted commands through the gateway.
type Tool struct {
	gw     *gateway.Gateway
	logger *slog.Logger
}

// NewTool creates a command tool that delegates all execution to the gateway.
func NewTool(gw *gateway.Gateway, logger *slog.Logger) *Tool {
	return &Tool{
		gw:     gw,
		logger: logger,
	}
}

func (t *Tool) Name() string { return "run_command" }
func (t *Tool) Description() string {
	return "Execute a whitelisted program with arguments, under timeout and output limits"
}

func (t *Tool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"program":         map[string]any{"type": "string", "description": "Whitelisted program name to run"},
			"args":            map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Argument vector"},
			"working_dir":     map[string]any{"type": "string", "description": "Working directory (must be under an allowed root)"},
			"timeout_seconds": map[string]any{"type": "integer", "description": "Timeout override in seconds"},
		},
		"required": []string{"program"},
	}
}

// Validate checks that required params are present and well-formed.
func (t *Tool) Validate(params map[string]any) error {
	if _, err := tools.RequireString(params, "program"); err != nil {
		return err
	}
	if _, err := tools.StringSlice(params, "args"); err != nil {
		return err
	}
	if v, ok := params["timeout_seconds"]; ok && v != nil {
		if _, err := timeoutSeconds(v); err != nil {
			return err
		}
	}
	return nil
}

// Execute runs the command through the gateway.
//
// Required params:
//
//	"program" (string): whitelisted program name
//
// Optional params:
//
//	"args" ([]string): argument vector
//	"working_dir" (string): working directory override
//	"timeout_seconds" (integer): timeout override
func (t *Tool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	program, err := tools.RequireString(params, "program")
	if err != nil {
		return nil, err
	}
	args, err := tools.StringSlice(params, "args")
	if err != nil {
		return nil, err
	}

	req := gateway.Request{
		Program: program,
		Args:    args,
	}
	if dir, ok := params["working_dir"].(string); ok {
		req.WorkingDir = dir
	}
	if v, ok := params["timeout_seconds"]; ok && v != nil {
		seconds, err := timeoutSeconds(v)
		if err != nil {
			return nil, err
		}
		req.Timeout = time.Duration(seconds) * time.Second
	}

	t.logger.InfoContext(ctx, "command tool executing",
		slog.String("program", program),
		slog.Int("arg_count", len(args)),
	)

	result, err := t.gw.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	return FormatResult(result), nil
}

// FormatResult converts a gateway result into the tool result shape
// shared by every wrapper in this module.
func FormatResult(result *gateway.Result) *tools.Result {
	output := string(result.Stdout)
	if len(result.Stderr) > 0 {
		if output != "" {
			output += "\n"
		}
		output += string(result.Stderr)
	}
	if result.TimedOut {
		if output != "" {
			output += "\n"
		}
		output += "[command timed out]"
	}

	meta := map[string]any{
		"elapsed_ms": result.Elapsed.Milliseconds(),
		"timed_out":  result.TimedOut,
		"truncated":  result.Truncated,
	}
	if result.ExitCode != nil {
		meta["exit_code"] = *result.ExitCode
	}

	return &tools.Result{
		Output:   output,
		Success:  result.Success(),
		Metadata: meta,
	}
}

// timeoutSeconds accepts the integer-ish types JSON decoding produces.
func timeoutSeconds(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("parameter timeout_seconds must be an integer, got %T", v)
	}
}
