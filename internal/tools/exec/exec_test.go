package exec

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jkaninda/execgate/internal/gateway"
)

type fakeRunner struct {
	lastProgram string
	lastArgs    []string
	lastTimeout time.Duration
	result      *gateway.Result
}

func (f *fakeRunner) Run(_ context.Context, program string, args []string, _ string, timeout time.Duration) (*gateway.Result, error) {
	f.lastProgram = program
	f.lastArgs = args
	f.lastTimeout = timeout
	if f.result != nil {
		return f.result, nil
	}
	zero := 0
	return &gateway.Result{ExitCode: &zero, Stdout: []byte("ok\n")}, nil
}

func newTool(t *testing.T, runner gateway.Runner, programs ...string) *Tool {
	t.Helper()
	gw, err := gateway.New(gateway.Policy{
		Whitelist:          programs,
		AllowedWorkingDirs: []string{t.TempDir()},
	}, runner, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return NewTool(gw, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestValidate(t *testing.T) {
	tool := newTool(t, &fakeRunner{}, "ls")

	tests := []struct {
		name    string
		params  map[string]any
		wantErr bool
	}{
		{"minimal", map[string]any{"program": "ls"}, false},
		{"with args", map[string]any{"program": "ls", "args": []any{"-la"}}, false},
		{"with timeout", map[string]any{"program": "ls", "timeout_seconds": float64(5)}, false},
		{"missing program", map[string]any{}, true},
		{"program wrong type", map[string]any{"program": 7}, true},
		{"args wrong type", map[string]any{"program": "ls", "args": "nope"}, true},
		{"timeout wrong type", map[string]any{"program": "ls", "timeout_seconds": "soon"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tool.Validate(tc.params)
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate(%v) = %v, wantErr %v", tc.params, err, tc.wantErr)
			}
		})
	}
}

func TestExecutePassesThroughGateway(t *testing.T) {
	runner := &fakeRunner{}
	tool := newTool(t, runner, "ls")

	result, err := tool.Execute(context.Background(), map[string]any{
		"program":         "ls",
		"args":            []any{"-la", "/var"},
		"timeout_seconds": float64(7),
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success {
		t.Error("Success = false")
	}
	if runner.lastProgram != "ls" {
		t.Errorf("program = %q, want ls", runner.lastProgram)
	}
	if len(runner.lastArgs) != 2 || runner.lastArgs[0] != "-la" {
		t.Errorf("args = %v", runner.lastArgs)
	}
	if runner.lastTimeout != 7*time.Second {
		t.Errorf("timeout = %s, want 7s", runner.lastTimeout)
	}
}

func TestExecuteRejectionSurfaces(t *testing.T) {
	runner := &fakeRunner{}
	tool := newTool(t, runner, "ls")

	_, err := tool.Execute(context.Background(), map[string]any{"program": "curl"})
	if gateway.RejectionKindOf(err) != gateway.KindNotWhitelisted {
		t.Errorf("error = %v, want not_whitelisted rejection", err)
	}
	if runner.lastProgram != "" {
		t.Error("runner invoked for rejected request")
	}
}

func TestFormatResult(t *testing.T) {
	zero, two := 0, 2

	tests := []struct {
		name        string
		in          *gateway.Result
		wantSuccess bool
		wantOutput  string
	}{
		{
			"stdout only",
			&gateway.Result{ExitCode: &zero, Stdout: []byte("out")},
			true, "out",
		},
		{
			"stdout and stderr joined",
			&gateway.Result{ExitCode: &two, Stdout: []byte("out"), Stderr: []byte("err")},
			false, "out\nerr",
		},
		{
			"stderr only",
			&gateway.Result{ExitCode: &two, Stderr: []byte("err")},
			false, "err",
		},
		{
			"timed out",
			&gateway.Result{TimedOut: true, Stdout: []byte("partial")},
			false, "partial\n[command timed out]",
		},
		{
			"empty",
			&gateway.Result{ExitCode: &zero},
			true, "",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := FormatResult(tc.in)
			if got.Success != tc.wantSuccess {
				t.Errorf("Success = %v, want %v", got.Success, tc.wantSuccess)
			}
			if got.Output != tc.wantOutput {
				t.Errorf("Output = %q, want %q", got.Output, tc.wantOutput)
			}
		})
	}
}

func TestFormatResultMetadata(t *testing.T) {
	two := 2
	got := FormatResult(&gateway.Result{
		ExitCode:  &two,
		Elapsed:   1500 * time.Millisecond,
		Truncated: true,
	})

	if got.Metadata["exit_code"] != 2 {
		t.Errorf("exit_code = %v, want 2", got.Metadata["exit_code"])
	}
	if got.Metadata["elapsed_ms"] != int64(1500) {
		t.Errorf("elapsed_ms = %v, want 1500", got.Metadata["elapsed_ms"])
	}
	if got.Metadata["truncated"] != true {
		t.Error("truncated not set")
	}

	timedOut := FormatResult(&gateway.Result{TimedOut: true})
	if _, ok := timedOut.Metadata["exit_code"]; ok {
		t.Error("timed-out result carries an exit code")
	}
	if !strings.Contains(timedOut.Output, "timed out") {
		t.Errorf("Output = %q, want timeout notice", timedOut.Output)
	}
}

func TestTimeoutSeconds(t *testing.T) {
	tests := []struct {
		in      any
		want    int
		wantErr bool
	}{
		{5, 5, false},
		{int64(6), 6, false},
		{float64(7), 7, false},
		{"8", 0, true},
		{true, 0, true},
	}
	for _, tc := range tests {
		got, err := timeoutSeconds(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("timeoutSeconds(%v) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("timeoutSeconds(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
