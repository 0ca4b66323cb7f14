// Package httpapi implements the HTTP API gateway for runbox.
//
// Security:
//   - API key authentication on every /v1 request (constant-time comparison)
//   - Per-user rate limiting via token bucket
//   - All requests logged with correlation IDs
//   - TLS expected via reverse proxy (not handled here)
package httpapi

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jkaninda/okapi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/acheng/runbox/internal/command"
	"github.com/acheng/runbox/internal/engine"
	"github.com/acheng/runbox/internal/executor"
	"github.com/acheng/runbox/internal/llm"
	"github.com/acheng/runbox/internal/observability"
	"github.com/acheng/runbox/internal/ratelimit"
	"github.com/acheng/runbox/internal/workspace"
)

// ErrorBody is the standard error response used in OpenAPI documentation.
type ErrorBody struct {
	Error string `json:"error"`
}

// Config configures the HTTP API gateway.
type Config struct {
	ListenAddr string
	EnableDocs bool
	APIKeys    map[string]string // API key → user ID mapping. Keys from env.

	// Observability
	MetricsRegistry *prometheus.Registry
	MetricsPath     string // Default: "/metrics".
	HealthChecker   *observability.HealthChecker
	Metrics         *observability.MetricsCollector
	Tracer          trace.Tracer
}

// Gateway is the HTTP API gateway.
type Gateway struct {
	config  Config
	engine  *engine.Engine
	limiter *ratelimit.Limiter
	logger  *slog.Logger
	server  *http.Server
	okapi   *okapi.Okapi
	group   *okapi.Group
}

// NewGateway creates an HTTP API gateway around the execution engine.
func NewGateway(cfg Config, eng *engine.Engine, rl *ratelimit.Limiter, logger *slog.Logger) *Gateway {
	return &Gateway{
		config:  cfg,
		engine:  eng,
		limiter: rl,
		logger:  logger,
		okapi:   okapi.New(),
	}
}

// Start launches the HTTP server and blocks until it exits or ctx is canceled.
func (g *Gateway) Start(ctx context.Context) error {
	if g.config.Metrics != nil || g.config.Tracer != nil {
		g.okapi.UseMiddleware(func(next http.Handler) http.Handler {
			return observability.HTTPMetricsMiddleware(g.config.Metrics, g.config.Tracer, next)
		})
	}

	// Authenticated /v1 group.
	g.group = g.okapi.Group("/v1", g.authenticate)

	g.group.Post("/execute", g.handleExecute,
		okapi.DocSummary("Translate a natural-language instruction and execute it"),
		okapi.DocTags("Execute"),
		okapi.DocRequestBody(ExecuteRequest{}),
		okapi.DocResponse(ExecuteResponse{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusUnauthorized, ErrorBody{}),
		okapi.DocResponse(http.StatusUnprocessableEntity, ErrorBody{}),
		okapi.DocResponse(http.StatusTooManyRequests, ErrorBody{}),
		okapi.DocResponse(http.StatusBadGateway, ErrorBody{}),
	)
	g.group.Post("/commands", g.handleCommands,
		okapi.DocSummary("Execute a pre-classified command list"),
		okapi.DocTags("Execute"),
		okapi.DocRequestBody(CommandsRequest{}),
		okapi.DocResponse(ExecuteResponse{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusUnauthorized, ErrorBody{}),
		okapi.DocResponse(http.StatusUnprocessableEntity, ErrorBody{}),
		okapi.DocResponse(http.StatusTooManyRequests, ErrorBody{}),
	)
	g.group.Get("/projects", g.handleProjects,
		okapi.DocSummary("List project directories in the workspace root"),
		okapi.DocTags("Workspace"),
		okapi.DocResponse(ProjectsResponse{}),
	)
	g.group.Get("/status", g.handleStatus,
		okapi.DocSummary("Report workspace root health and contents"),
		okapi.DocTags("Workspace"),
		okapi.DocResponse(engine.StatusReport{}),
	)
	g.group.Get("/executions", g.handleExecutions,
		okapi.DocSummary("List recent executions, newest first"),
		okapi.DocTags("History"),
		okapi.DocResponse([]ExecutionSummary{}),
	)

	// Observability endpoints (unauthenticated).
	g.okapi.Get("/healthz", g.handleLiveness)
	g.okapi.Get("/readyz", g.handleReadiness)

	if g.config.MetricsRegistry != nil {
		path := g.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		g.okapi.HandleStd("GET", path, promhttp.HandlerFor(g.config.MetricsRegistry, promhttp.HandlerOpts{}).ServeHTTP)
	}
	if g.config.EnableDocs {
		g.okapi.WithOpenAPIDocs(okapi.OpenAPI{
			Title:   "Runbox",
			Version: "v0.1.0",
		})
	}

	g.server = &http.Server{
		Addr:              g.config.ListenAddr,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	g.logger.Info("http api gateway starting", slog.String("addr", g.config.ListenAddr))

	return g.okapi.StartServer(g.server)
}

// Stop gracefully shuts down the HTTP server.
func (g *Gateway) Stop(_ context.Context) error {
	if g.server == nil {
		return nil
	}
	g.logger.Info("http api gateway stopping")
	return g.okapi.Shutdown(g.server)
}

// --- Handlers ---

// ExecuteRequest is the JSON body for POST /v1/execute.
type ExecuteRequest struct {
	Instruction string `json:"instruction"`
	WorkDir     string `json:"work_dir,omitempty"` // Relative to the workspace root.
}

// CommandsRequest is the JSON body for POST /v1/commands.
type CommandsRequest struct {
	Category string   `json:"category"` // "python", "shell", or "git".
	Commands []string `json:"commands"`
	WorkDir  string   `json:"work_dir,omitempty"`
}

// CommandResult mirrors one command's outcome in the response.
type CommandResult struct {
	Command  string `json:"command"`
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	Success  bool   `json:"success"`
	TimedOut bool   `json:"timed_out,omitempty"`
}

// ExecuteResponse is the JSON response for both execution endpoints.
// A command that fails is still HTTP 200; overall_success tells the story.
type ExecuteResponse struct {
	Category       string          `json:"category"`
	Results        []CommandResult `json:"results"`
	OverallSuccess bool            `json:"overall_success"`
	StoppedEarly   bool            `json:"stopped_early,omitempty"`
	CorrelationID  string          `json:"correlation_id"`
}

func (g *Gateway) handleExecute(c *okapi.Context) error {
	userID := c.GetString("userID")
	if g.limiter != nil {
		if err := g.limiter.Allow(userID); err != nil {
			return c.AbortTooManyRequests("rate limit exceeded")
		}
	}

	var req ExecuteRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	if strings.TrimSpace(req.Instruction) == "" {
		return c.AbortBadRequest("instruction is required")
	}

	correlationID := newCorrelationID()
	g.logger.Info("http execute",
		slog.String("user_id", userID),
		slog.String("correlation_id", correlationID),
	)

	ctx := engine.WithUserID(c.Context(), userID)
	report, err := g.engine.HandleNaturalLanguage(ctx, req.Instruction, req.WorkDir)
	if err != nil {
		return g.executionError(c, correlationID, err)
	}

	return c.OK(newExecuteResponse(report, correlationID))
}

func (g *Gateway) handleCommands(c *okapi.Context) error {
	userID := c.GetString("userID")
	if g.limiter != nil {
		if err := g.limiter.Allow(userID); err != nil {
			return c.AbortTooManyRequests("rate limit exceeded")
		}
	}

	var req CommandsRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	if len(req.Commands) == 0 {
		return c.AbortBadRequest("commands is required")
	}

	correlationID := newCorrelationID()
	g.logger.Info("http commands",
		slog.String("user_id", userID),
		slog.String("correlation_id", correlationID),
		slog.String("category", req.Category),
		slog.Int("commands", len(req.Commands)),
	)

	ctx := engine.WithUserID(c.Context(), userID)
	report, err := g.engine.HandleDirect(ctx, req.Category, req.Commands, req.WorkDir)
	if err != nil {
		return g.executionError(c, correlationID, err)
	}

	return c.OK(newExecuteResponse(report, correlationID))
}

// ProjectsResponse is the JSON response for GET /v1/projects.
type ProjectsResponse struct {
	Projects []string `json:"projects"`
}

func (g *Gateway) handleProjects(c *okapi.Context) error {
	projects, err := g.engine.ListProjects(c.Context())
	if err != nil {
		g.logger.Error("listing projects failed", slog.String("error", err.Error()))
		return c.AbortInternalServerError("listing projects failed")
	}
	if projects == nil {
		projects = []string{}
	}
	return c.OK(ProjectsResponse{Projects: projects})
}

func (g *Gateway) handleStatus(c *okapi.Context) error {
	return c.OK(g.engine.Status(c.Context()))
}

// ExecutionSummary is one row of GET /v1/executions.
type ExecutionSummary struct {
	ID             string    `json:"id"`
	Category       string    `json:"category"`
	Commands       []string  `json:"commands"`
	WorkDir        string    `json:"work_dir,omitempty"`
	Source         string    `json:"source"`
	UserID         string    `json:"user_id,omitempty"`
	OverallSuccess bool      `json:"overall_success"`
	StoppedEarly   bool      `json:"stopped_early,omitempty"`
	DurationMS     int64     `json:"duration_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

func (g *Gateway) handleExecutions(c *okapi.Context) error {
	limit := 50
	if raw := c.Request().URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			return c.AbortBadRequest("limit must be an integer between 1 and 1000")
		}
		limit = n
	}

	records, err := g.engine.History(c.Context(), limit)
	if err != nil {
		g.logger.Error("listing executions failed", slog.String("error", err.Error()))
		return c.AbortInternalServerError("listing executions failed")
	}

	resp := make([]ExecutionSummary, len(records))
	for i, r := range records {
		resp[i] = ExecutionSummary{
			ID:             r.ID.String(),
			Category:       r.Category,
			Commands:       r.Commands,
			WorkDir:        r.WorkDir,
			Source:         r.Source,
			UserID:         r.UserID,
			OverallSuccess: r.OverallSuccess,
			StoppedEarly:   r.StoppedEarly,
			DurationMS:     r.DurationMS,
			CreatedAt:      r.CreatedAt,
		}
	}
	return c.OK(resp)
}

// HealthResponse is the JSON response for the probe endpoints.
type HealthResponse struct {
	Status string `json:"status"`
}

func (g *Gateway) handleLiveness(c *okapi.Context) error {
	return c.OK(&HealthResponse{Status: "ok"})
}

// handleReadiness checks all registered dependencies and returns 200 or 503.
func (g *Gateway) handleReadiness(c *okapi.Context) error {
	if g.config.HealthChecker == nil {
		return c.OK(&HealthResponse{Status: "ok"})
	}

	status := g.config.HealthChecker.CheckReady(c.Context())
	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}

// --- Authentication ---

// authenticate validates the Bearer API key and stashes the mapped user ID.
func (g *Gateway) authenticate(next okapi.HandlerFunc) okapi.HandlerFunc {
	return func(c *okapi.Context) error {
		authHeader := c.Header("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.AbortUnauthorized("missing or invalid Authorization header")
		}
		apiKey := strings.TrimPrefix(authHeader, "Bearer ")

		userID := ""
		for key, mapped := range g.config.APIKeys {
			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
				userID = mapped
			}
		}
		if userID == "" {
			return c.AbortUnauthorized("invalid API key")
		}
		c.Set("userID", userID)
		return next(c)
	}
}

// --- Helpers ---

// executionError maps pipeline errors to HTTP status codes. Parse failures of
// model output are 422 (the upstream spoke, but nonsense), validation and
// workspace rejections are 400, translation transport failures are 502.
func (g *Gateway) executionError(c *okapi.Context, correlationID string, err error) error {
	g.logger.Warn("execution rejected",
		slog.String("correlation_id", correlationID),
		slog.String("error", err.Error()),
	)
	switch {
	case errors.Is(err, llm.ErrTranslationFailed):
		return c.JSON(http.StatusBadGateway, okapi.M{"error": "translation failed"})
	case errors.Is(err, command.ErrUnrecognizedCategory),
		errors.Is(err, command.ErrMalformedCommandList):
		return c.JSON(http.StatusUnprocessableEntity, okapi.M{"error": err.Error()})
	case errors.Is(err, command.ErrPathEscape),
		errors.Is(err, command.ErrForbiddenOperation),
		errors.Is(err, command.ErrCategoryMismatch),
		errors.Is(err, workspace.ErrInvalidWorkspace):
		return c.AbortBadRequest(err.Error())
	default:
		return c.AbortInternalServerError("execution failed")
	}
}

func newExecuteResponse(report *executor.Report, correlationID string) ExecuteResponse {
	results := make([]CommandResult, len(report.Results))
	for i, r := range report.Results {
		results[i] = CommandResult{
			Command:  r.Command,
			ExitCode: r.ExitCode,
			Stdout:   r.Stdout,
			Stderr:   r.Stderr,
			Success:  r.Succeeded,
			TimedOut: r.TimedOut,
		}
	}
	return ExecuteResponse{
		Category:       string(report.Category),
		Results:        results,
		OverallSuccess: report.OverallSuccess,
		StoppedEarly:   report.StoppedEarly,
		CorrelationID:  correlationID,
	}
}

func newCorrelationID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
