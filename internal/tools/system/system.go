// Package system implements read-only host inspection tools.
package system

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jkaninda/execgate/internal/gateway"
	"github.com/jkaninda/execgate/internal/tools"
	execTool "github.com/jkaninda/execgate/internal/tools/exec"
)

// probes maps info kinds to fixed program invocations. The argument
// vectors are constants; nothing caller-controlled reaches the command
// line of this tool.
var probes = map[string]struct {
	program string
	args    []string
}{
	"kernel": {"uname", []string{"-a"}},
	"disk":   {"df", []string{"-h"}},
	"memory": {"free", []string{"-m"}},
	"uptime": {"uptime", nil},
}

// Tool reports host information via fixed, whitelisted probe commands.
type Tool struct {
	gw     *gateway.Gateway
	logger *slog.Logger
}

// NewTool creates the system info tool.
func NewTool(gw *gateway.Gateway, logger *slog.Logger) *Tool {
	return &Tool{gw: gw, logger: logger}
}

func (t *Tool) Name() string { return "system_info" }
func (t *Tool) Description() string {
	return "Read host information (kernel, disk, memory, uptime) via fixed probe commands"
}

func (t *Tool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"kind": map[string]any{"type": "string", "description": "One of: kernel, disk, memory, uptime"},
		},
		"required": []string{"kind"},
	}
}

func (t *Tool) Validate(params map[string]any) error {
	kind, err := tools.RequireString(params, "kind")
	if err != nil {
		return err
	}
	if _, ok := probes[kind]; !ok {
		return fmt.Errorf("unknown info kind: %s", kind)
	}
	return nil
}

func (t *Tool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	if err := t.Validate(params); err != nil {
		return nil, err
	}
	kind, _ := tools.RequireString(params, "kind")
	probe := probes[kind]

	t.logger.InfoContext(ctx, "system tool executing", slog.String("kind", kind))

	result, err := t.gw.Execute(ctx, gateway.Request{
		Program: probe.program,
		Args:    probe.args,
	})
	if err != nil {
		return nil, err
	}
	return execTool.FormatResult(result), nil
}
