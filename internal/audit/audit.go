// Package audit records every execution attempt the gateway sees,
// accepted or rejected, to an append-only log. Records are redacted:
// argument values are never stored, only a count and a non-reversible
// digest, so secrets passed as arguments cannot leak through the log.
//
// Audit is a best-effort side channel, not a correctness dependency:
// the gateway reports recorder failures to the operational log and
// carries on.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Outcome classifies an execution attempt.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"   // Process exited zero.
	OutcomeFailed   Outcome = "failed"    // Process exited non-zero or failed to spawn.
	OutcomeTimedOut Outcome = "timed_out" // Watchdog killed the process group.
	OutcomeRejected Outcome = "rejected"  // Validation or working-dir check refused the request.
)

// Record is one append-only audit entry. Never mutated after write.
type Record struct {
	ID         string    `json:"id" gorm:"primaryKey;type:text"`
	Timestamp  time.Time `json:"timestamp" gorm:"index"`
	Program    string    `json:"program" gorm:"index"`
	ArgCount   int       `json:"arg_count"`
	ArgsDigest string    `json:"args_digest"` // hex SHA-256 over NUL-joined args; non-reversible.
	Outcome    Outcome   `json:"outcome" gorm:"index;type:text"`
	Reason     string    `json:"reason,omitempty"` // Rejection kind only, never argument payloads.
	ExitCode   *int      `json:"exit_code,omitempty"`
	ElapsedMS  int64     `json:"elapsed_ms"`
	Truncated  bool      `json:"truncated"`
}

// NewRecord creates a record with a fresh ID and UTC timestamp.
func NewRecord(program string, args []string, outcome Outcome) Record {
	return Record{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		Program:    program,
		ArgCount:   len(args),
		ArgsDigest: Digest(args),
		Outcome:    outcome,
	}
}

// Digest computes the redacted argument digest: hex SHA-256 over the
// arguments joined with NUL separators. NUL cannot survive sanitization,
// so distinct argument vectors never collide by concatenation.
func Digest(args []string) string {
	h := sha256.New()
	for i, arg := range args {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(arg))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Recorder appends audit records. Implementations must serialize
// concurrent appends so records never interleave mid-entry.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
	Close() error
}

// NopRecorder discards every record. Used when audit is disabled and in
// tests that don't care about the log.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Record) error { return nil }
func (NopRecorder) Close() error                         { return nil }
