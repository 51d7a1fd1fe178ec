// Package gateway implements the secure external-command execution gateway.
// It is the only sanctioned path to external process creation: callers
// submit a request, the gateway sanitizes and validates it against a
// whitelist policy, and runs accepted commands as isolated OS processes
// under timeout and output caps, recording every attempt to an audit log.
//
// Security model:
//   - Default-deny program whitelist, exact and case-sensitive
//   - Commands are spawned from an explicit argument vector with no shell
//     interpretation, so metacharacters in arguments are inert
//   - Working directories are confined to configured roots
//   - A watchdog kills the whole process group on timeout
//   - Audit records carry argument digests, never argument values
package gateway

import "time"

// Request describes one external command invocation. Owned by the caller
// until passed to Execute; the gateway never modifies it; sanitization
// produces a copy.
type Request struct {
	// Program is the whitelisted program name to run.
	Program string

	// Args is the ordered argument vector. Never concatenated into a
	// command line; passed to the OS as discrete arguments.
	Args []string

	// WorkingDir optionally names the directory to run in. Empty means
	// the policy default. Must resolve under an allowed root.
	WorkingDir string

	// Timeout optionally overrides the policy default, clamped to
	// [1s, Policy.MaxTimeout]. Zero means the default applies.
	Timeout time.Duration
}

// Result is the outcome of a completed run. Owned by the caller after
// Execute returns.
type Result struct {
	// ExitCode is the child's exit status, or nil when the process was
	// forcibly terminated by the timeout watchdog.
	ExitCode *int

	// Stdout and Stderr hold the captured streams, capped so their
	// combined size never exceeds Policy.MaxOutputBytes.
	Stdout []byte
	Stderr []byte

	// Truncated is set when the combined output cap was reached. The
	// captured prefix is preserved verbatim and a boundary marker is
	// appended to the stream that hit the cap.
	Truncated bool

	// Elapsed is the wall-clock run time.
	Elapsed time.Duration

	// TimedOut reports that the watchdog killed the process group.
	// A timeout is a result state, not an error: callers decide how
	// to react.
	TimedOut bool
}

// Success reports a clean zero exit.
func (r *Result) Success() bool {
	return !r.TimedOut && r.ExitCode != nil && *r.ExitCode == 0
}
