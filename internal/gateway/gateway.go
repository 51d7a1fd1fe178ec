package gateway

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/jkaninda/execgate/internal/audit"
	"github.com/jkaninda/execgate/internal/observability"
)

// Gateway is the single public entry point for external command
// execution. One request flows
//
//	Received → Sanitized → Validated → WorkingDirResolved → Executing → Completed
//
// with rejection and completion as the only terminal states. There is no
// retry loop here: a failed or timed-out process is not assumed
// idempotent, so retries are a caller concern.
//
// The gateway is safe for concurrent use. The policy snapshot is
// read-only, the sanitizer and validator are pure, and each run is an
// independent OS process; the audit recorder serializes its own writes.
type Gateway struct {
	policy   Policy
	runner   Runner
	recorder audit.Recorder
	metrics  *observability.Metrics
	tracer   trace.Tracer
	logger   *slog.Logger
}

// New builds a gateway from a policy. The policy is normalized once here;
// reconfiguration means building a new gateway, never mutating this one.
func New(policy Policy, runner Runner, recorder audit.Recorder, logger *slog.Logger) (*Gateway, error) {
	normalized, err := policy.Normalize()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if runner == nil {
		runner = NewProcessRunner(normalized.MaxOutputBytes, logger)
	}
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &Gateway{
		policy:   normalized,
		runner:   runner,
		recorder: recorder,
		tracer:   noop.NewTracerProvider().Tracer(""),
		logger:   logger,
	}, nil
}

// WithMetrics attaches a metrics collector.
func (g *Gateway) WithMetrics(m *observability.Metrics) *Gateway {
	g.metrics = m
	return g
}

// WithTracer attaches an OTel tracer.
func (g *Gateway) WithTracer(t trace.Tracer) *Gateway {
	if t != nil {
		g.tracer = t
	}
	return g
}

// Policy returns the normalized policy snapshot this gateway enforces.
func (g *Gateway) Policy() Policy {
	return g.policy
}

// Execute validates and runs one command.
//
// Rejections return a *ValidationError or *SecurityError before any
// process exists; OS-level spawn failures return a *ExecutionError. A
// timeout is NOT an error: the result comes back with TimedOut set and a
// nil ExitCode so callers must handle the expected case explicitly.
//
// Every attempt, rejected or executed, is recorded to the audit log.
// Audit failures are swallowed: they go to the operational log and a
// metric, never to the caller.
func (g *Gateway) Execute(ctx context.Context, req Request) (*Result, error) {
	ctx, span := g.tracer.Start(ctx, "gateway.execute",
		trace.WithAttributes(attribute.String("program", req.Program)),
	)
	defer span.End()

	sanitized := Request{
		Program:    req.Program,
		Args:       SanitizeArgs(req.Args),
		WorkingDir: req.WorkingDir,
		Timeout:    req.Timeout,
	}

	if err := Validate(sanitized, &g.policy); err != nil {
		g.reject(ctx, span, sanitized, string(RejectionKindOf(err)))
		return nil, err
	}

	workingDir, err := resolveWorkingDir(sanitized.WorkingDir, &g.policy)
	if err != nil {
		g.reject(ctx, span, sanitized, string(SecurityKindOf(err)))
		return nil, err
	}

	timeout := g.policy.effectiveTimeout(sanitized.Timeout)

	if g.metrics != nil {
		g.metrics.ActiveExecutions.Inc()
		defer g.metrics.ActiveExecutions.Dec()
	}

	result, err := g.runner.Run(ctx, sanitized.Program, sanitized.Args, workingDir, timeout)
	if err != nil {
		span.SetAttributes(attribute.String("outcome", string(audit.OutcomeFailed)))
		rec := audit.NewRecord(sanitized.Program, sanitized.Args, audit.OutcomeFailed)
		rec.Reason = "spawn_failed"
		g.record(ctx, rec)
		if g.metrics != nil {
			g.metrics.ExecutionsTotal.WithLabelValues(sanitized.Program, string(audit.OutcomeFailed)).Inc()
		}
		return nil, err
	}

	result.Stdout = RedactSecrets(result.Stdout)
	result.Stderr = RedactSecrets(result.Stderr)

	outcome := audit.OutcomeFailed
	switch {
	case result.TimedOut:
		outcome = audit.OutcomeTimedOut
	case result.Success():
		outcome = audit.OutcomeSuccess
	}
	span.SetAttributes(attribute.String("outcome", string(outcome)))

	rec := audit.NewRecord(sanitized.Program, sanitized.Args, outcome)
	rec.ExitCode = result.ExitCode
	rec.ElapsedMS = result.Elapsed.Milliseconds()
	rec.Truncated = result.Truncated
	g.record(ctx, rec)

	if g.metrics != nil {
		g.metrics.ExecutionsTotal.WithLabelValues(sanitized.Program, string(outcome)).Inc()
		g.metrics.ExecutionDuration.WithLabelValues(sanitized.Program).Observe(result.Elapsed.Seconds())
		if result.TimedOut {
			g.metrics.TimeoutsTotal.Inc()
		}
		if result.Truncated {
			g.metrics.TruncationsTotal.Inc()
		}
	}
	return result, nil
}

// reject audits and counts a refused request. The reason stored is the
// rejection kind only, never the offending argument.
func (g *Gateway) reject(ctx context.Context, span trace.Span, req Request, kind string) {
	span.SetAttributes(attribute.String("outcome", string(audit.OutcomeRejected)))
	g.logger.WarnContext(ctx, "request rejected",
		slog.String("program", req.Program),
		slog.String("kind", kind),
	)
	rec := audit.NewRecord(req.Program, req.Args, audit.OutcomeRejected)
	rec.Reason = kind
	g.record(ctx, rec)
	if g.metrics != nil {
		g.metrics.RejectionsTotal.WithLabelValues(kind).Inc()
	}
}

// record appends an audit record, swallowing persistence failures: audit
// must never break tool execution.
func (g *Gateway) record(ctx context.Context, rec audit.Record) {
	if err := g.recorder.Record(ctx, rec); err != nil {
		g.logger.ErrorContext(ctx, "audit write failed",
			slog.String("id", rec.ID),
			slog.String("error", err.Error()),
		)
		if g.metrics != nil {
			g.metrics.AuditWriteFailures.Inc()
		}
	}
}
