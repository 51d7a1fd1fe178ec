package gateway

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// truncationMarker is appended to the stream that hits the output cap.
const truncationMarker = "\n... [output truncated]"

// Runner executes an already-validated command. The façade depends on
// this interface so tests can substitute a spy and assert that rejected
// requests never reach a runner.
type Runner interface {
	Run(ctx context.Context, program string, args []string, workingDir string, timeout time.Duration) (*Result, error)
}

// ProcessRunner runs commands as isolated OS processes.
//
// Guarantees:
//   - program + args are passed as an explicit argument vector; no shell
//     interpreter ever sees them
//   - the child runs in its own process group (Setpgid) and the whole
//     group is SIGKILLed when the watchdog fires, so descendants cannot
//     outlive a timeout
//   - stdin is connected to the null device at spawn time: a program
//     that blocks waiting for interactive input fails fast instead of
//     hanging until the timeout
//   - combined stdout+stderr capture is capped at maxOutputBytes
//   - the environment is a minimal safe set, never inherited wholesale
//     from this process
type ProcessRunner struct {
	maxOutputBytes int
	logger         *slog.Logger
}

// NewProcessRunner creates a runner capping combined output at
// maxOutputBytes. A non-positive cap falls back to the policy default.
func NewProcessRunner(maxOutputBytes int, logger *slog.Logger) *ProcessRunner {
	if maxOutputBytes <= 0 {
		maxOutputBytes = DefaultMaxOutputBytes
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ProcessRunner{
		maxOutputBytes: maxOutputBytes,
		logger:         logger,
	}
}

// Run spawns the command and blocks until it exits or the watchdog kills
// it. A timeout produces a Result with TimedOut set and a nil ExitCode,
// not an error. Errors are reserved for OS-level spawn failures.
//
// Cancellation is timeout-only: the watchdog timer is the sole mechanism
// that ends a running process early. The context is used for logging.
func (r *ProcessRunner) Run(ctx context.Context, program string, args []string, workingDir string, timeout time.Duration) (*Result, error) {
	cmd := exec.Command(program, args...)
	cmd.Dir = workingDir
	cmd.Env = buildEnv(workingDir)

	// The child gets its own process group so the watchdog can kill the
	// whole tree, not just the immediate child.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	devnull, err := os.Open(os.DevNull)
	if err != nil {
		return nil, &ExecutionError{Program: program, Err: err}
	}
	defer devnull.Close()
	cmd.Stdin = devnull

	// Both streams draw from one shared budget. Room for the truncation
	// marker is reserved up front so a capped result never exceeds the
	// configured maximum even with the marker appended.
	budget := &outputBudget{remaining: r.maxOutputBytes - len(truncationMarker)}
	if budget.remaining < 0 {
		budget.remaining = 0
	}
	stdout := &cappedWriter{budget: budget}
	stderr := &cappedWriter{budget: budget}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	r.logger.InfoContext(ctx, "spawning command",
		slog.String("program", program),
		slog.Int("arg_count", len(args)),
		slog.String("working_dir", workingDir),
		slog.Duration("timeout", timeout),
	)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		// errors.Is(err, exec.ErrNotFound) and fs.ErrPermission stay
		// visible through the ExecutionError chain for callers that
		// need to distinguish a missing binary from EACCES.
		return nil, &ExecutionError{Program: program, Err: err}
	}

	var timedOut atomic.Bool
	watchdog := time.AfterFunc(timeout, func() {
		timedOut.Store(true)
		// Negative PID targets the entire process group.
		if proc := cmd.Process; proc != nil {
			_ = syscall.Kill(-proc.Pid, syscall.SIGKILL)
		}
	})
	waitErr := cmd.Wait()
	watchdog.Stop()
	elapsed := time.Since(start)

	result := &Result{
		Stdout:    stdout.bytes(),
		Stderr:    stderr.bytes(),
		Truncated: budget.wasTruncated(),
		Elapsed:   elapsed,
	}

	if timedOut.Load() {
		r.logger.WarnContext(ctx, "command timed out",
			slog.String("program", program),
			slog.Duration("timeout", timeout),
			slog.Duration("elapsed", elapsed),
		)
		result.TimedOut = true
		return result, nil
	}

	exitCode := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, &ExecutionError{Program: program, Err: waitErr}
		}
		// Non-zero exit is a result, not an error.
		exitCode = exitErr.ExitCode()
	}
	result.ExitCode = &exitCode

	r.logger.InfoContext(ctx, "command completed",
		slog.String("program", program),
		slog.Int("exit_code", exitCode),
		slog.Duration("elapsed", elapsed),
		slog.Int("stdout_bytes", len(result.Stdout)),
		slog.Int("stderr_bytes", len(result.Stderr)),
		slog.Bool("truncated", result.Truncated),
	)
	return result, nil
}

// buildEnv constructs a minimal environment for the child. The parent's
// environment is never inherited wholesale: credentials and API keys in
// this process must not leak into spawned commands.
func buildEnv(workingDir string) []string {
	env := []string{
		"HOME=" + workingDir,
		"LANG=en_US.UTF-8",
		"TERM=dumb",
	}
	if path := os.Getenv("PATH"); path != "" {
		env = append(env, "PATH="+path)
	} else {
		env = append(env, "PATH=/usr/local/bin:/usr/bin:/bin")
	}
	if tmp := os.Getenv("TMPDIR"); tmp != "" {
		env = append(env, "TMPDIR="+tmp)
	}
	return env
}

// outputBudget is the shared byte allowance for one run's two streams.
type outputBudget struct {
	mu        sync.Mutex
	remaining int
	truncated bool
}

func (b *outputBudget) wasTruncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truncated
}

// cappedWriter captures a stream until the shared budget is spent.
// The writer that exhausts the budget appends the truncation marker;
// everything after that is silently discarded. Captured bytes are never
// rewritten, so the retained prefix stays verbatim.
type cappedWriter struct {
	buf    bytes.Buffer
	budget *outputBudget
}

func (w *cappedWriter) Write(p []byte) (int, error) {
	w.budget.mu.Lock()
	defer w.budget.mu.Unlock()

	if w.budget.remaining <= 0 {
		if !w.budget.truncated {
			w.budget.truncated = true
			w.buf.WriteString(truncationMarker)
		}
		return len(p), nil
	}

	n := len(p)
	if n > w.budget.remaining {
		n = w.budget.remaining
	}
	w.buf.Write(p[:n])
	w.budget.remaining -= n

	if n < len(p) {
		w.budget.truncated = true
		w.buf.WriteString(truncationMarker)
	}
	return len(p), nil
}

func (w *cappedWriter) bytes() []byte {
	w.budget.mu.Lock()
	defer w.budget.mu.Unlock()
	return w.buf.Bytes()
}
