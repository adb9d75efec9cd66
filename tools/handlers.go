package tools

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/olgasafonova/mediawiki-bot/metrics"
	"github.com/olgasafonova/mediawiki-bot/tracing"
	"github.com/olgasafonova/mediawiki-bot/wiki"
)

// HandlerRegistry provides type-safe tool registration by mapping
// tool names to their concrete handler implementations.
type HandlerRegistry struct {
	tools  *WikiTools
	logger *slog.Logger
}

// NewHandlerRegistry creates a new handler registry.
func NewHandlerRegistry(bot *wiki.Bot, logger *slog.Logger) *HandlerRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &HandlerRegistry{
		tools:  NewWikiTools(bot),
		logger: logger,
	}
}

// RegisterAll registers all tools with the MCP server and returns how many
// were registered.
func (h *HandlerRegistry) RegisterAll(server *mcp.Server) int {
	n := 0
	for _, spec := range AllTools {
		if h.registerByName(server, spec) {
			n++
		}
	}
	h.logger.Info("Registered all tools", "count", n)
	return n
}

// registerByName dispatches to the correct typed registration function.
func (h *HandlerRegistry) registerByName(server *mcp.Server, spec ToolSpec) bool {
	tool := h.buildTool(spec)
	w := h.tools

	switch spec.Method {
	// Session tools
	case "Login":
		register(h, server, tool, spec, w.Login)
	case "Logout":
		register(h, server, tool, spec, w.Logout)
	case "WhoAmI":
		register(h, server, tool, spec, w.WhoAmI)
	case "UserInfo":
		register(h, server, tool, spec, w.UserInfo)

	// Read tools
	case "GetPage":
		register(h, server, tool, spec, w.GetPage)
	case "GetRevision":
		register(h, server, tool, spec, w.GetRevision)
	case "History":
		register(h, server, tool, spec, w.History)
	case "CategoryMembers":
		register(h, server, tool, spec, w.CategoryMembers)

	// Write tools
	case "EditPage":
		register(h, server, tool, spec, w.EditPage)
	case "AddSection":
		register(h, server, tool, spec, w.AddSection)

	default:
		h.logger.Error("Unknown method, tool not registered", "method", spec.Method, "tool", spec.Name)
		return false
	}
	return true
}

// buildTool creates an mcp.Tool from a ToolSpec.
func (h *HandlerRegistry) buildTool(spec ToolSpec) *mcp.Tool {
	annotations := &mcp.ToolAnnotations{
		Title:          spec.Title,
		ReadOnlyHint:   spec.ReadOnly,
		IdempotentHint: spec.Idempotent,
	}
	if spec.Destructive {
		annotations.DestructiveHint = ptr(true)
	} else if !spec.ReadOnly {
		annotations.DestructiveHint = ptr(false)
	}
	if spec.OpenWorld {
		annotations.OpenWorldHint = ptr(true)
	}

	return &mcp.Tool{
		Name:        spec.Name,
		Description: spec.Description,
		Annotations: annotations,
	}
}

// register is a generic helper that registers a tool with the MCP server.
// It wraps the method with panic recovery, metrics, tracing, and logging.
func register[Args, Result any](
	h *HandlerRegistry,
	server *mcp.Server,
	tool *mcp.Tool,
	spec ToolSpec,
	method func(context.Context, Args) (Result, error),
) {
	mcp.AddTool(server, tool, func(ctx context.Context, req *mcp.CallToolRequest, args Args) (*mcp.CallToolResult, Result, error) {
		return invoke(ctx, h, spec, args, method)
	})
}

// invoke runs one tool call. Panics are turned into errors so a broken handler
// cannot take the server down.
func invoke[Args, Result any](
	ctx context.Context,
	h *HandlerRegistry,
	spec ToolSpec,
	args Args,
	method func(context.Context, Args) (Result, error),
) (res *mcp.CallToolResult, result Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logPanic(spec.Name, rec)
			var zero Result
			res, result, err = nil, zero, fmt.Errorf("%s failed: internal error: %v", spec.Name, rec)
		}
	}()

	ctx, span := tracing.StartSpan(ctx, "mcp.tool."+spec.Name)
	defer span.End()

	tracing.AddToolAttributes(span, spec.Name, spec.Category)
	span.SetAttributes(attribute.Bool("mcp.tool.readonly", spec.ReadOnly))
	if action, title := wikiTarget(args); action != "" {
		tracing.AddWikiAttributes(span, action, title)
	}

	metrics.RequestInFlight.WithLabelValues(spec.Name).Inc()
	defer metrics.RequestInFlight.WithLabelValues(spec.Name).Dec()

	start := time.Now()
	result, err = method(ctx, args)
	duration := time.Since(start).Seconds()

	span.SetAttributes(attribute.Float64("mcp.tool.duration_seconds", duration))

	if err != nil {
		tracing.RecordError(span, err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordRequest(spec.Name, duration, false)
		h.logger.Warn("Tool failed", "tool", spec.Name, "error", err, "duration", duration)
		var zero Result
		return nil, zero, fmt.Errorf("%s failed: %w", spec.Name, err)
	}

	span.SetStatus(codes.Ok, "")
	metrics.RecordRequest(spec.Name, duration, true)
	h.logExecution(spec, args, result)
	return nil, result, nil
}

// logPanic records a panic recovered from a tool handler.
func (h *HandlerRegistry) logPanic(toolName string, rec any) {
	metrics.PanicsRecovered.WithLabelValues("tool").Inc()
	h.logger.Error("Panic recovered",
		"tool", toolName,
		"panic", rec,
		"stack", string(debug.Stack()))
}

// wikiTarget names the API action and page a tool call works on, for tracing.
func wikiTarget(args any) (action, title string) {
	switch a := args.(type) {
	case LoginArgs:
		return "login", ""
	case LogoutArgs:
		return "logout", ""
	case WhoAmIArgs, UserInfoArgs:
		return "query", ""
	case GetPageArgs:
		return "query", a.Title
	case GetRevisionArgs:
		return "query", ""
	case HistoryArgs:
		return "query", a.Title
	case CategoryMembersArgs:
		return "query", a.Category
	case EditPageArgs:
		return "edit", a.Title
	case AddSectionArgs:
		return "edit", a.Title
	}
	return "", ""
}

// logExecution logs tool execution details.
func (h *HandlerRegistry) logExecution(spec ToolSpec, args, result any) {
	attrs := []any{"tool", spec.Name, "category", spec.Category}

	// Add extractable fields from args using type assertions
	switch a := args.(type) {
	case LoginArgs:
		attrs = append(attrs, "username", a.Username)
	case GetPageArgs:
		attrs = append(attrs, "title", a.Title)
	case GetRevisionArgs:
		attrs = append(attrs, "revid", a.RevID)
	case HistoryArgs:
		attrs = append(attrs, "title", a.Title, "count", a.Count)
	case CategoryMembersArgs:
		attrs = append(attrs, "category", a.Category)
	case EditPageArgs:
		attrs = append(attrs, "title", a.Title, "text_chars", len(a.Text))
	case AddSectionArgs:
		attrs = append(attrs, "title", a.Title, "heading", a.Heading)
	}

	// Add extractable fields from result
	switch r := result.(type) {
	case LoginResult:
		attrs = append(attrs, "logged_in_as", r.Username)
	case WhoAmIResult:
		attrs = append(attrs, "name", r.Name)
	case wiki.UserInfo:
		attrs = append(attrs, "user_id", r.ID, "anonymous", r.Anonymous)
	case wiki.PageContent:
		attrs = append(attrs, "output_chars", len(r.Content), "timestamp", r.Timestamp)
	case wiki.History:
		attrs = append(attrs, "revisions", len(r.Revisions))
	case wiki.CategoryMembers:
		attrs = append(attrs, "pages", len(r.Pages), "subcategories", len(r.Subcategories))
	case wiki.EditResult:
		attrs = append(attrs, "new_revid", r.NewRevID, "no_change", r.NoChange)
	}

	h.logger.Info("Tool executed", attrs...)
}
