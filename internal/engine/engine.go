// Package engine wires the pipeline together: translate → parse → validate
// → resolve → execute → report. It is the surface the gateway and the CLI
// call; everything underneath is pure mechanism.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/acheng/runbox/internal/command"
	"github.com/acheng/runbox/internal/executor"
	"github.com/acheng/runbox/internal/llm"
	"github.com/acheng/runbox/internal/observability"
	"github.com/acheng/runbox/internal/storage"
	"github.com/acheng/runbox/internal/workspace"
)

// Deps are the collaborators an Engine needs. Translator may be nil when no
// provider is configured (direct requests still work); Store, Metrics, and
// Tracer may be nil.
type Deps struct {
	Translator *llm.Translator
	Resolver   *workspace.Resolver
	Validator  *command.Validator
	Executor   *executor.Executor
	Store      storage.Store
	Metrics    *observability.MetricsCollector
	Tracer     trace.Tracer
	Logger     *slog.Logger
}

// Engine is the core command execution service.
type Engine struct {
	translator *llm.Translator
	resolver   *workspace.Resolver
	validator  *command.Validator
	executor   *executor.Executor
	store      storage.Store
	metrics    *observability.MetricsCollector
	tracer     trace.Tracer
	logger     *slog.Logger
}

// New creates an Engine from its dependencies.
func New(d Deps) *Engine {
	return &Engine{
		translator: d.Translator,
		resolver:   d.Resolver,
		validator:  d.Validator,
		executor:   d.Executor,
		store:      d.Store,
		metrics:    d.Metrics,
		tracer:     d.Tracer,
		logger:     d.Logger,
	}
}

// HandleNaturalLanguage translates the instruction through the LLM, parses
// and validates the resulting spec, and executes it. Every stage failure
// short-circuits: nothing executes unless the whole spec validated.
func (e *Engine) HandleNaturalLanguage(ctx context.Context, text, workDir string) (*executor.Report, error) {
	if e.translator == nil {
		return nil, fmt.Errorf("%w: no provider configured", llm.ErrTranslationFailed)
	}

	raw, err := e.translate(ctx, text)
	if err != nil {
		return nil, err
	}

	spec, err := command.Parse(raw)
	if err != nil {
		e.countRejection("parse", err)
		e.logger.Warn("llm output rejected",
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	// The caller's work_dir wins over anything the model volunteered.
	if workDir != "" {
		spec.WorkDir = workDir
	}

	return e.run(ctx, spec, "natural")
}

// HandleDirect executes caller-supplied commands, bypassing translation and
// parsing but not validation or workspace resolution.
func (e *Engine) HandleDirect(ctx context.Context, category string, commands []string, workDir string) (*executor.Report, error) {
	cat, err := command.ParseCategory(category)
	if err != nil {
		e.countRejection("parse", err)
		return nil, err
	}
	if len(commands) == 0 {
		err := fmt.Errorf("%w: commands list is empty", command.ErrMalformedCommandList)
		e.countRejection("parse", err)
		return nil, err
	}

	spec := &command.Spec{Category: cat, Commands: commands, WorkDir: workDir}
	return e.run(ctx, spec, "direct")
}

// ListProjects returns the immediate child directories of the project root.
func (e *Engine) ListProjects(_ context.Context) ([]string, error) {
	return e.resolver.ListProjects()
}

// StatusReport describes the service's view of the project root.
type StatusReport struct {
	WorkspaceRoot string   `json:"workspace_root"`
	Reachable     bool     `json:"reachable"`
	Error         string   `json:"error,omitempty"`
	Projects      []string `json:"projects,omitempty"`
}

// Status probes the project root and lists its contents.
func (e *Engine) Status(ctx context.Context) StatusReport {
	st := e.resolver.Check(ctx)
	report := StatusReport{
		WorkspaceRoot: st.Root,
		Reachable:     st.Reachable,
		Error:         st.Error,
	}
	if st.Reachable {
		if projects, err := e.resolver.ListProjects(); err == nil {
			report.Projects = projects
		}
	}
	return report
}

// History returns the most recent execution records, newest first.
// Returns nil when no store is configured.
func (e *Engine) History(ctx context.Context, limit int) ([]storage.ExecutionRecord, error) {
	if e.store == nil {
		return nil, nil
	}
	return e.store.List(ctx, limit)
}

// translate performs the single LLM call, with metrics and a span.
func (e *Engine) translate(ctx context.Context, text string) (string, error) {
	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.Start(ctx, "engine.translate")
		defer span.End()
	}

	start := time.Now()
	raw, err := e.translator.Translate(ctx, text)
	if e.metrics != nil {
		e.metrics.TranslationDuration.Observe(time.Since(start).Seconds())
		status := "ok"
		if err != nil {
			status = "error"
		}
		e.metrics.TranslationsTotal.WithLabelValues(e.translator.Provider(), status).Inc()
	}
	return raw, err
}

// run validates, resolves, and executes a spec, then records the outcome.
func (e *Engine) run(ctx context.Context, spec *command.Spec, source string) (*executor.Report, error) {
	if err := e.validator.Validate(spec); err != nil {
		e.countRejection("validate", err)
		e.logger.Warn("spec rejected",
			slog.String("category", string(spec.Category)),
			slog.String("source", source),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	ws, err := e.resolver.Resolve(spec.WorkDir)
	if err != nil {
		e.countRejection("workspace", err)
		return nil, err
	}

	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.Start(ctx, "engine.execute",
			trace.WithAttributes(
				attribute.String("category", string(spec.Category)),
				attribute.Int("commands", len(spec.Commands)),
			))
		defer span.End()
	}

	e.logger.Info("executing spec",
		slog.String("category", string(spec.Category)),
		slog.String("source", source),
		slog.String("workspace", ws.Path),
		slog.Int("commands", len(spec.Commands)),
	)

	start := time.Now()
	report := e.executor.Run(ctx, spec, ws)
	e.observeReport(spec, report, time.Since(start))
	e.record(ctx, spec, report, source, time.Since(start))

	return report, nil
}

// observeReport feeds execution metrics.
func (e *Engine) observeReport(spec *command.Spec, report *executor.Report, _ time.Duration) {
	if e.metrics == nil {
		return
	}
	status := "success"
	if !report.OverallSuccess {
		status = "failure"
	}
	e.metrics.ExecutionsTotal.WithLabelValues(string(spec.Category), status).Inc()
	for _, r := range report.Results {
		cmdStatus := "success"
		if !r.Succeeded {
			cmdStatus = "failure"
		}
		e.metrics.CommandsTotal.WithLabelValues(string(spec.Category), cmdStatus).Inc()
		e.metrics.CommandDuration.WithLabelValues(string(spec.Category)).Observe(r.Duration.Seconds())
		if r.TimedOut {
			e.metrics.CommandTimeoutsTotal.Inc()
		}
	}
}

// record persists the execution best-effort: a storage failure is logged,
// never surfaced to the caller.
func (e *Engine) record(ctx context.Context, spec *command.Spec, report *executor.Report, source string, elapsed time.Duration) {
	if e.store == nil {
		return
	}
	rec := &storage.ExecutionRecord{
		ID:             uuid.New(),
		Category:       string(spec.Category),
		Commands:       spec.Commands,
		WorkDir:        spec.WorkDir,
		Source:         source,
		UserID:         UserIDFrom(ctx),
		OverallSuccess: report.OverallSuccess,
		StoppedEarly:   report.StoppedEarly,
		ResultCount:    len(report.Results),
		DurationMS:     elapsed.Milliseconds(),
		CreatedAt:      time.Now().UTC(),
	}
	// Recording must survive request cancellation.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := e.store.Record(recordCtx, rec); err != nil {
		e.logger.Error("failed to record execution",
			slog.String("id", rec.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// countRejection feeds the spec-rejection counter, labeling by sentinel.
func (e *Engine) countRejection(stage string, err error) {
	if e.metrics == nil {
		return
	}
	e.metrics.SpecRejectionsTotal.WithLabelValues(stage, reasonLabel(err)).Inc()
}

// reasonLabel maps an error to a low-cardinality metric label.
func reasonLabel(err error) string {
	switch {
	case errors.Is(err, command.ErrUnrecognizedCategory):
		return "unrecognized_category"
	case errors.Is(err, command.ErrMalformedCommandList):
		return "malformed_command_list"
	case errors.Is(err, command.ErrPathEscape):
		return "path_escape"
	case errors.Is(err, command.ErrForbiddenOperation):
		return "forbidden_operation"
	case errors.Is(err, command.ErrCategoryMismatch):
		return "category_mismatch"
	case errors.Is(err, workspace.ErrInvalidWorkspace):
		return "invalid_workspace"
	default:
		return "other"
	}
}
