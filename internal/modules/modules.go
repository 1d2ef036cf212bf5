package modules

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"stravist/server/internal/middleware"
	"stravist/server/internal/observability"
)

// ErrNotInitialized is returned by a module whose upstream API client was
// never configured. It must surface before any network call is attempted,
// and the MCP handler maps it to a dedicated JSON-RPC error code.
var ErrNotInitialized = errors.New("API client not initialized")

// =============================================================================
// Registry
// =============================================================================

// registry holds all registered modules
var registry = make(map[string]Module)

// RegisterModule adds a module to the registry
func RegisterModule(m Module) {
	registry[m.Name()] = m
}

// GetModule returns a module by name
func GetModule(name string) (Module, bool) {
	m, ok := registry[name]
	return m, ok
}

// ListModules returns all registered module names, sorted.
func ListModules() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AllTools returns the tool definitions of every registered module.
// Tools are exposed to MCP clients directly, so names must be unique
// across modules.
func AllTools() []Tool {
	var tools []Tool
	for _, name := range ListModules() {
		tools = append(tools, registry[name].Tools()...)
	}
	return tools
}

// AllResources returns the resource definitions of every registered module.
func AllResources() []Resource {
	var resources []Resource
	for _, name := range ListModules() {
		resources = append(resources, registry[name].Resources()...)
	}
	return resources
}

// findToolOwner resolves a tool name to the module that defines it.
func findToolOwner(toolName string) (Module, Tool, bool) {
	for _, name := range ListModules() {
		m := registry[name]
		if tool, ok := findTool(m.Tools(), toolName); ok {
			return m, tool, true
		}
	}
	return nil, Tool{}, false
}

// ReadResource resolves a resource URI to the module that serves it.
func ReadResource(ctx context.Context, uri string) (string, error) {
	for _, name := range ListModules() {
		m := registry[name]
		for _, r := range m.Resources() {
			if r.URI == uri {
				return m.ReadResource(ctx, uri)
			}
		}
	}
	return "", fmt.Errorf("unknown resource: %s", uri)
}

// =============================================================================
// Tool Execution
// =============================================================================

// toolTimeout is the maximum duration for a single tool execution.
const toolTimeout = 30 * time.Second

var (
	tracer = otel.Tracer("stravist/server/internal/modules")
	meter  = otel.Meter("stravist/server/internal/modules")

	toolCallCounter, _ = meter.Int64Counter("mcp.tool.calls",
		metric.WithDescription("Number of MCP tool executions"))
	toolDurationHist, _ = meter.Float64Histogram("mcp.tool.duration",
		metric.WithDescription("MCP tool execution duration"),
		metric.WithUnit("ms"))
)

// Run executes a single tool. The tool name is resolved across all registered
// modules, params are validated against the tool's InputSchema, and the call
// runs under a timeout with tracing and metrics around it.
//
// ErrNotInitialized is returned as a Go error so the transport layer can map
// it to its own error code; every other execution failure becomes an IsError
// tool result, per MCP convention.
func Run(ctx context.Context, toolName string, params map[string]interface{}) (*ToolCallResult, error) {
	start := time.Now()

	m, tool, ok := findToolOwner(toolName)
	if !ok {
		return &ToolCallResult{
			Content: []ContentBlock{{Type: "text", Text: fmt.Sprintf("Unknown tool: %s", toolName)}},
			IsError: true,
		}, nil
	}

	validated, err := ValidateParams(tool.InputSchema, params)
	if err != nil {
		return &ToolCallResult{
			Content: []ContentBlock{{Type: "text", Text: err.Error()}},
			IsError: true,
		}, nil
	}
	params = validated

	// Apply timeout to prevent external API calls from hanging indefinitely
	ctx, cancel := context.WithTimeout(ctx, toolTimeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "mcp.tool/"+toolName)
	span.SetAttributes(
		attribute.String("mcp.module", m.Name()),
		attribute.String("mcp.tool", toolName),
	)
	defer span.End()

	result, err := m.ExecuteTool(ctx, toolName, params)
	durationMs := time.Since(start).Milliseconds()
	requestID := middleware.GetRequestID(ctx)
	subject := ""
	if authCtx := middleware.GetAuthContext(ctx); authCtx != nil {
		subject = authCtx.Subject
	}

	status := "success"
	if err != nil {
		status = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("module", m.Name()),
		attribute.String("tool", toolName),
		attribute.String("status", status),
	)
	toolCallCounter.Add(ctx, 1, attrs)
	toolDurationHist.Record(ctx, float64(durationMs), attrs)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, ErrNotInitialized) {
			observability.LogToolCall(requestID, subject, m.Name(), toolName, durationMs, "error", err.Error())
			return nil, err
		}
		errMsg := err.Error()
		if ctx.Err() == context.DeadlineExceeded {
			errMsg = fmt.Sprintf("Request to %s timed out after %s. The external service did not respond in time.", m.Name(), toolTimeout)
		}
		observability.LogToolCall(requestID, subject, m.Name(), toolName, durationMs, "error", errMsg)
		return &ToolCallResult{
			Content: []ContentBlock{{Type: "text", Text: errMsg}},
			IsError: true,
		}, nil
	}

	span.SetStatus(codes.Ok, "")
	observability.LogToolCall(requestID, subject, m.Name(), toolName, durationMs, "success", "")
	return &ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: result}},
	}, nil
}

// ApplyCompact converts a JSON result to compact format (CSV/MD) for a given tool.
// Returns the original JSON if the owning module has no CompactConverter.
func ApplyCompact(toolName, jsonResult string) string {
	m, _, ok := findToolOwner(toolName)
	if !ok {
		return jsonResult
	}
	if converter, ok := m.(CompactConverter); ok {
		return converter.ToCompact(toolName, jsonResult)
	}
	return jsonResult
}
