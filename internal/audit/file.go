package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// FileRecorder writes records as append-only JSONL. Each record is a
// single JSON line followed by a newline; no cross-line state, so a
// reader can resume from any line boundary.
// Thread-safe: a mutex serializes the file write.
type FileRecorder struct {
	mu     sync.Mutex
	file   *os.File
	logger *slog.Logger
}

// NewFileRecorder opens (or creates) the audit log in append-only mode.
// File permissions are 0600 (owner read/write only).
func NewFileRecorder(path string, logger *slog.Logger) (*FileRecorder, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening audit log %s: %w", path, err)
	}
	return &FileRecorder{
		file:   f,
		logger: logger,
	}, nil
}

// Record serializes the record as JSON and appends it to the log.
// Marshal happens outside the lock; only the file write is serialized.
func (r *FileRecorder) Record(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling audit record: %w", err)
	}
	data = append(data, '\n')

	r.mu.Lock()
	_, writeErr := r.file.Write(data)
	r.mu.Unlock()

	if writeErr != nil {
		return fmt.Errorf("writing audit record: %w", writeErr)
	}

	r.logger.InfoContext(ctx, "audit record written",
		slog.String("id", rec.ID),
		slog.String("program", rec.Program),
		slog.String("outcome", string(rec.Outcome)),
	)
	return nil
}

// Close closes the underlying file.
func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}

// ReadFile parses a JSONL audit log. A partial final line, the residue
// of a crash mid-append, is skipped, not treated as a parse failure:
// everything before it is intact and still useful.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening audit log %s: %w", path, err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			// Corrupt line (torn write). Skip it and keep reading.
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading audit log %s: %w", path, err)
	}
	return records, nil
}
