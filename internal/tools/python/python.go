// Package python implements Python script execution through the gateway.
package python

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jkaninda/execgate/internal/gateway"
	"github.com/jkaninda/execgate/internal/tools"
	execTool "github.com/jkaninda/execgate/internal/tools/exec"
)

// maxCodeLength caps inline code size. Large payloads belong in files.
const maxCodeLength = 100 * 1024 // 100 KB

// dangerousModules are refused in safe mode. A substring check on import
// statements, same caveats as the gateway's pattern deny-list: a speed
// bump for an agent author, not a sandbox.
var dangerousModules = []string{"os", "subprocess", "sys", "shutil"}

// Tool runs Python code through the gateway. Code is written to a
// temporary file and executed as `python3 <file>`; an inline -c argument
// would trip the gateway's metacharacter checks on ordinary multi-line
// code, and a file path keeps the argument vector inert.
type Tool struct {
	gw     *gateway.Gateway
	logger *slog.Logger
}

// NewTool creates the Python execution tool.
func NewTool(gw *gateway.Gateway, logger *slog.Logger) *Tool {
	return &Tool{gw: gw, logger: logger}
}

func (t *Tool) Name() string { return "python_exec" }
func (t *Tool) Description() string {
	return "Execute a Python code snippet in an isolated subprocess, under gateway limits"
}

func (t *Tool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"code":            map[string]any{"type": "string", "description": "Python source to execute"},
			"timeout_seconds": map[string]any{"type": "integer", "description": "Timeout override in seconds"},
			"safe_mode":       map[string]any{"type": "boolean", "description": "Block dangerous imports (os, subprocess, sys, shutil). Default: true"},
		},
		"required": []string{"code"},
	}
}

func (t *Tool) Validate(params map[string]any) error {
	code, err := tools.RequireString(params, "code")
	if err != nil {
		return err
	}
	if len(code) > maxCodeLength {
		return fmt.Errorf("code too long: %d bytes (max: %d)", len(code), maxCodeLength)
	}
	return nil
}

func (t *Tool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	if err := t.Validate(params); err != nil {
		return nil, err
	}
	code, _ := tools.RequireString(params, "code")

	safeMode := true
	if v, ok := params["safe_mode"].(bool); ok {
		safeMode = v
	}
	if safeMode {
		if module := blockedImport(code); module != "" {
			return nil, fmt.Errorf("dangerous import blocked in safe mode: %s", module)
		}
	}

	scriptFile, err := os.CreateTemp("", "execgate-py-*.py")
	if err != nil {
		return nil, fmt.Errorf("creating script file: %w", err)
	}
	scriptPath := scriptFile.Name()
	defer func() {
		if rmErr := os.Remove(scriptPath); rmErr != nil {
			t.logger.Warn("failed to remove script file",
				slog.String("path", scriptPath),
				slog.String("error", rmErr.Error()),
			)
		}
	}()
	if _, err := scriptFile.WriteString(code); err != nil {
		scriptFile.Close()
		return nil, fmt.Errorf("writing script file: %w", err)
	}
	if err := scriptFile.Close(); err != nil {
		return nil, fmt.Errorf("closing script file: %w", err)
	}

	req := gateway.Request{
		Program: "python3",
		Args:    []string{scriptPath},
	}
	if v, ok := params["timeout_seconds"].(float64); ok && v > 0 {
		req.Timeout = time.Duration(v) * time.Second
	}

	t.logger.InfoContext(ctx, "python tool executing", slog.Int("code_bytes", len(code)))

	result, err := t.gw.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	return execTool.FormatResult(result), nil
}

// blockedImport returns the first dangerous module the code imports,
// or "" when none match. __import__ is matched bare since it is called,
// not imported.
func blockedImport(code string) string {
	if strings.Contains(code, "__import__") {
		return "__import__"
	}
	for _, module := range dangerousModules {
		if strings.Contains(code, "import "+module) || strings.Contains(code, "from "+module) {
			return module
		}
	}
	return ""
}
