package gateway

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jkaninda/execgate/internal/audit"
)

// spyRunner records every invocation and returns a canned result.
type spyRunner struct {
	mu    sync.Mutex
	calls []spyCall

	result *Result
	err    error
}

type spyCall struct {
	program    string
	args       []string
	workingDir string
	timeout    time.Duration
}

func (s *spyRunner) Run(_ context.Context, program string, args []string, workingDir string, timeout time.Duration) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, spyCall{program, args, workingDir, timeout})
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	zero := 0
	return &Result{ExitCode: &zero, Elapsed: 5 * time.Millisecond}, nil
}

func (s *spyRunner) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *spyRunner) lastCall(t *testing.T) spyCall {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		t.Fatal("runner was never invoked")
	}
	return s.calls[len(s.calls)-1]
}

// memRecorder collects audit records in memory.
type memRecorder struct {
	mu      sync.Mutex
	records []audit.Record
	err     error
}

func (m *memRecorder) Record(_ context.Context, rec audit.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memRecorder) Close() error { return nil }

func (m *memRecorder) last(t *testing.T) audit.Record {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.records) == 0 {
		t.Fatal("no audit records written")
	}
	return m.records[len(m.records)-1]
}

func newTestGateway(t *testing.T, runner Runner, recorder audit.Recorder, programs ...string) *Gateway {
	t.Helper()
	gw, err := New(Policy{
		Whitelist:          programs,
		AllowedWorkingDirs: []string{t.TempDir()},
	}, runner, recorder, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return gw
}

func TestExecuteRejectedNeverSpawns(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want RejectionKind
	}{
		{"not whitelisted", Request{Program: "curl"}, KindNotWhitelisted},
		{"dangerous char", Request{Program: "ls", Args: []string{"; rm"}}, KindDangerousCharacter},
		{"traversal", Request{Program: "ls", Args: []string{"../x"}}, KindPathTraversal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			spy := &spyRunner{}
			rec := &memRecorder{}
			gw := newTestGateway(t, spy, rec, "ls")

			result, err := gw.Execute(context.Background(), tc.req)
			if result != nil {
				t.Error("rejected request returned a result")
			}
			if got := RejectionKindOf(err); got != tc.want {
				t.Errorf("rejection kind = %s, want %s", got, tc.want)
			}
			if spy.callCount() != 0 {
				t.Error("runner invoked for a rejected request")
			}

			entry := rec.last(t)
			if entry.Outcome != audit.OutcomeRejected {
				t.Errorf("audit outcome = %s, want %s", entry.Outcome, audit.OutcomeRejected)
			}
			if entry.Reason != string(tc.want) {
				t.Errorf("audit reason = %q, want %q", entry.Reason, tc.want)
			}
		})
	}
}

func TestExecuteBadWorkingDirNeverSpawns(t *testing.T) {
	spy := &spyRunner{}
	rec := &memRecorder{}
	gw := newTestGateway(t, spy, rec, "ls")

	_, err := gw.Execute(context.Background(), Request{Program: "ls", WorkingDir: t.TempDir()})
	if got := SecurityKindOf(err); got != KindOutsideAllowedRoots {
		t.Errorf("security kind = %s, want %s", got, KindOutsideAllowedRoots)
	}
	if spy.callCount() != 0 {
		t.Error("runner invoked despite working-dir rejection")
	}
	if entry := rec.last(t); entry.Outcome != audit.OutcomeRejected {
		t.Errorf("audit outcome = %s, want %s", entry.Outcome, audit.OutcomeRejected)
	}
}

func TestExecuteSuccessAudited(t *testing.T) {
	spy := &spyRunner{}
	rec := &memRecorder{}
	gw := newTestGateway(t, spy, rec, "ls")

	result, err := gw.Execute(context.Background(), Request{Program: "ls", Args: []string{"-la"}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success() {
		t.Error("result not successful")
	}

	entry := rec.last(t)
	if entry.Outcome != audit.OutcomeSuccess {
		t.Errorf("audit outcome = %s, want %s", entry.Outcome, audit.OutcomeSuccess)
	}
	if entry.Program != "ls" || entry.ArgCount != 1 {
		t.Errorf("audit record = %+v, want program ls with 1 arg", entry)
	}
	if entry.ExitCode == nil || *entry.ExitCode != 0 {
		t.Errorf("audit exit code = %v, want 0", entry.ExitCode)
	}
}

// Audit records carry digests, never argument values.
func TestExecuteAuditNeverStoresArguments(t *testing.T) {
	rec := &memRecorder{}
	gw := newTestGateway(t, &spyRunner{}, rec, "ls")

	secret := "supersecretvalue"
	if _, err := gw.Execute(context.Background(), Request{Program: "ls", Args: []string{secret}}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	entry := rec.last(t)
	if strings.Contains(entry.ArgsDigest, secret) || strings.Contains(entry.Reason, secret) {
		t.Errorf("audit record leaks argument value: %+v", entry)
	}
	if entry.ArgsDigest != audit.Digest([]string{secret}) {
		t.Errorf("digest = %q, want digest of sanitized args", entry.ArgsDigest)
	}
}

func TestExecuteSanitizesBeforeRunning(t *testing.T) {
	spy := &spyRunner{}
	gw := newTestGateway(t, spy, nil, "ls")

	if _, err := gw.Execute(context.Background(), Request{Program: "ls", Args: []string{"  -la\x00  "}}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	call := spy.lastCall(t)
	if len(call.args) != 1 || call.args[0] != "-la" {
		t.Errorf("runner args = %q, want [-la]", call.args)
	}
}

// Sanitization can turn a dangerous-looking argument into an acceptable
// one, but never the reverse: validation sees the sanitized form.
func TestExecuteValidatesSanitizedForm(t *testing.T) {
	spy := &spyRunner{}
	gw := newTestGateway(t, spy, nil, "ls")

	// NUL-split metacharacter survives sanitization as ";" and must be caught.
	_, err := gw.Execute(context.Background(), Request{Program: "ls", Args: []string{";\x00"}})
	if got := RejectionKindOf(err); got != KindDangerousCharacter {
		t.Errorf("rejection kind = %s, want %s", got, KindDangerousCharacter)
	}
	if spy.callCount() != 0 {
		t.Error("runner invoked")
	}
}

func TestExecuteTimeoutClampedAndDefaulted(t *testing.T) {
	spy := &spyRunner{}
	gw := newTestGateway(t, spy, nil, "ls")

	if _, err := gw.Execute(context.Background(), Request{Program: "ls"}); err != nil {
		t.Fatal(err)
	}
	if got := spy.lastCall(t).timeout; got != gw.Policy().DefaultTimeout {
		t.Errorf("timeout = %s, want default %s", got, gw.Policy().DefaultTimeout)
	}

	if _, err := gw.Execute(context.Background(), Request{Program: "ls", Timeout: time.Hour}); err != nil {
		t.Fatal(err)
	}
	if got := spy.lastCall(t).timeout; got != gw.Policy().MaxTimeout {
		t.Errorf("timeout = %s, want clamped max %s", got, gw.Policy().MaxTimeout)
	}
}

func TestExecuteResolvesDefaultWorkingDir(t *testing.T) {
	spy := &spyRunner{}
	gw := newTestGateway(t, spy, nil, "ls")

	if _, err := gw.Execute(context.Background(), Request{Program: "ls"}); err != nil {
		t.Fatal(err)
	}
	if got := spy.lastCall(t).workingDir; got != gw.Policy().DefaultWorkingDir {
		t.Errorf("working dir = %q, want default %q", got, gw.Policy().DefaultWorkingDir)
	}
}

func TestExecuteTimedOutResult(t *testing.T) {
	spy := &spyRunner{result: &Result{TimedOut: true, Elapsed: time.Second}}
	rec := &memRecorder{}
	gw := newTestGateway(t, spy, rec, "sleep")

	result, err := gw.Execute(context.Background(), Request{Program: "sleep", Args: []string{"100"}})
	if err != nil {
		t.Fatalf("Execute returned error for timeout: %v", err)
	}
	if !result.TimedOut || result.ExitCode != nil {
		t.Errorf("result = %+v, want TimedOut with nil ExitCode", result)
	}
	if entry := rec.last(t); entry.Outcome != audit.OutcomeTimedOut {
		t.Errorf("audit outcome = %s, want %s", entry.Outcome, audit.OutcomeTimedOut)
	}
}

func TestExecuteNonZeroExitAuditedAsFailed(t *testing.T) {
	code := 2
	spy := &spyRunner{result: &Result{ExitCode: &code, Elapsed: time.Millisecond}}
	rec := &memRecorder{}
	gw := newTestGateway(t, spy, rec, "ls")

	result, err := gw.Execute(context.Background(), Request{Program: "ls"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Success() {
		t.Error("exit 2 reported as success")
	}
	if entry := rec.last(t); entry.Outcome != audit.OutcomeFailed {
		t.Errorf("audit outcome = %s, want %s", entry.Outcome, audit.OutcomeFailed)
	}
}

func TestExecuteSpawnFailureAudited(t *testing.T) {
	spy := &spyRunner{err: &ExecutionError{Program: "ls", Err: errors.New("permission denied")}}
	rec := &memRecorder{}
	gw := newTestGateway(t, spy, rec, "ls")

	_, err := gw.Execute(context.Background(), Request{Program: "ls"})
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("error type = %T, want *ExecutionError", err)
	}
	entry := rec.last(t)
	if entry.Outcome != audit.OutcomeFailed || entry.Reason != "spawn_failed" {
		t.Errorf("audit record = %+v, want failed/spawn_failed", entry)
	}
}

func TestExecuteRedactsOutput(t *testing.T) {
	zero := 0
	spy := &spyRunner{result: &Result{
		ExitCode: &zero,
		Stdout:   []byte("config: api_key=sk-abc123\n"),
		Stderr:   []byte("auth: Bearer tok456\n"),
	}}
	gw := newTestGateway(t, spy, nil, "ls")

	result, err := gw.Execute(context.Background(), Request{Program: "ls"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if strings.Contains(string(result.Stdout), "sk-abc123") {
		t.Errorf("stdout not redacted: %q", result.Stdout)
	}
	if strings.Contains(string(result.Stderr), "tok456") {
		t.Errorf("stderr not redacted: %q", result.Stderr)
	}
}

// Recorder failures are swallowed: execution must not depend on audit.
func TestExecuteSurvivesRecorderFailure(t *testing.T) {
	rec := &memRecorder{err: errors.New("disk full")}
	gw := newTestGateway(t, &spyRunner{}, rec, "ls")

	result, err := gw.Execute(context.Background(), Request{Program: "ls"})
	if err != nil {
		t.Fatalf("Execute failed because of the recorder: %v", err)
	}
	if !result.Success() {
		t.Error("result not successful")
	}
}

func TestExecuteConcurrent(t *testing.T) {
	spy := &spyRunner{}
	gw := newTestGateway(t, spy, &memRecorder{}, "ls")

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = gw.Execute(context.Background(), Request{Program: "ls"})
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("request %d: %v", i, err)
		}
	}
	if spy.callCount() != n {
		t.Errorf("runner invoked %d times, want %d", spy.callCount(), n)
	}
}
