package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"

	"stravist/server/internal/jsonrpc"
	"stravist/server/internal/modules"
)

const (
	serverName      = "stravist"
	serverVersion   = "0.1.0"
	protocolVersion = "2025-03-26"
)

// Handler routes MCP JSON-RPC requests to the module registry.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

// ProcessRequest routes a JSON-RPC request to the appropriate handler.
// Called by the transport middleware.
func (h *Handler) ProcessRequest(ctx context.Context, req *jsonrpc.Request) (interface{}, *jsonrpc.Error) {
	switch req.Method {
	case "initialize":
		return h.handleInitialize(req), nil
	case "initialized", "notifications/initialized":
		return nil, nil
	case "tools/list":
		return h.handleToolsList(), nil
	case "tools/call":
		return h.handleToolCall(ctx, req)
	case "resources/list":
		return h.handleResourcesList(), nil
	case "resources/read":
		return h.handleResourcesRead(ctx, req)
	default:
		return nil, &jsonrpc.Error{Code: MethodNotFound, Message: "Method not found"}
	}
}

func (h *Handler) handleInitialize(req *jsonrpc.Request) *InitializeResult {
	return &InitializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities: ServerCapabilities{
			Tools:     &ToolsCapability{},
			Resources: &ResourcesCapability{},
		},
		ServerInfo: ServerInfo{
			Name:    serverName,
			Version: serverVersion,
		},
	}
}

func (h *Handler) handleToolsList() *ToolsListResult {
	tools := modules.AllTools()
	if tools == nil {
		tools = []modules.Tool{}
	}
	return &ToolsListResult{Tools: tools}
}

func (h *Handler) handleToolCall(ctx context.Context, req *jsonrpc.Request) (*ToolCallResult, *jsonrpc.Error) {
	paramsBytes, err := json.Marshal(req.Params)
	if err != nil {
		return nil, &jsonrpc.Error{Code: InvalidParams, Message: "Invalid params"}
	}

	var params ToolCallParams
	if err := json.Unmarshal(paramsBytes, &params); err != nil {
		return nil, &jsonrpc.Error{Code: InvalidParams, Message: "Invalid params structure"}
	}
	if params.Name == "" {
		return nil, &jsonrpc.Error{Code: InvalidParams, Message: "name is required"}
	}

	result, err := modules.Run(ctx, params.Name, params.Arguments)
	if err != nil {
		if errors.Is(err, modules.ErrNotInitialized) {
			return nil, &jsonrpc.Error{Code: ErrNotInitialized, Message: err.Error()}
		}
		return nil, &jsonrpc.Error{Code: InternalError, Message: err.Error()}
	}

	// Apply compact format unless format=json is explicitly requested
	if !result.IsError {
		if f, _ := params.Arguments["format"].(string); f != "json" {
			result.Content[0].Text = modules.ApplyCompact(params.Name, result.Content[0].Text)
		}
	}

	return result, nil
}

func (h *Handler) handleResourcesList() *ResourcesListResult {
	resources := modules.AllResources()
	if resources == nil {
		resources = []modules.Resource{}
	}
	return &ResourcesListResult{Resources: resources}
}

func (h *Handler) handleResourcesRead(ctx context.Context, req *jsonrpc.Request) (*ResourcesReadResult, *jsonrpc.Error) {
	paramsBytes, err := json.Marshal(req.Params)
	if err != nil {
		return nil, &jsonrpc.Error{Code: InvalidParams, Message: "Invalid params"}
	}

	var params ResourcesReadParams
	if err := json.Unmarshal(paramsBytes, &params); err != nil {
		return nil, &jsonrpc.Error{Code: InvalidParams, Message: "Invalid params structure"}
	}
	if params.URI == "" {
		return nil, &jsonrpc.Error{Code: InvalidParams, Message: "uri is required"}
	}

	content, err := modules.ReadResource(ctx, params.URI)
	if err != nil {
		if errors.Is(err, modules.ErrNotInitialized) {
			return nil, &jsonrpc.Error{Code: ErrNotInitialized, Message: err.Error()}
		}
		return nil, &jsonrpc.Error{Code: InvalidParams, Message: fmt.Sprintf("failed to read resource: %v", err)}
	}

	return &ResourcesReadResult{
		Contents: []ResourceContent{
			{URI: params.URI, MimeType: "application/json", Text: content},
		},
	}, nil
}
