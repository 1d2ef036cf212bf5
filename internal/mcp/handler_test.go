package mcp

import (
	"context"
	"testing"

	"stravist/server/internal/jsonrpc"
	"stravist/server/internal/modules"
	"stravist/server/internal/modules/strava"
)

func init() {
	// A module without a client: every call must short-circuit with the
	// not-initialized code before touching the network.
	modules.RegisterModule(strava.New(nil))
}

func TestInitialize(t *testing.T) {
	h := NewHandler()
	result, rpcErr := h.ProcessRequest(context.Background(), &jsonrpc.Request{Method: "initialize"})
	if rpcErr != nil {
		t.Fatalf("unexpected error: %v", rpcErr)
	}

	init, ok := result.(*InitializeResult)
	if !ok {
		t.Fatalf("unexpected result type %T", result)
	}
	if init.ServerInfo.Name != "stravist" {
		t.Errorf("server name = %q", init.ServerInfo.Name)
	}
	if init.Capabilities.Tools == nil || init.Capabilities.Resources == nil {
		t.Error("expected tools and resources capabilities")
	}
}

func TestInitializedNotification(t *testing.T) {
	h := NewHandler()
	result, rpcErr := h.ProcessRequest(context.Background(), &jsonrpc.Request{Method: "notifications/initialized"})
	if rpcErr != nil || result != nil {
		t.Errorf("notification should produce no result and no error, got %v / %v", result, rpcErr)
	}
}

func TestMethodNotFound(t *testing.T) {
	h := NewHandler()
	_, rpcErr := h.ProcessRequest(context.Background(), &jsonrpc.Request{Method: "prompts/list"})
	if rpcErr == nil || rpcErr.Code != MethodNotFound {
		t.Errorf("expected MethodNotFound, got %v", rpcErr)
	}
}

func TestToolsListExposesStravaTools(t *testing.T) {
	h := NewHandler()
	result, rpcErr := h.ProcessRequest(context.Background(), &jsonrpc.Request{Method: "tools/list"})
	if rpcErr != nil {
		t.Fatalf("unexpected error: %v", rpcErr)
	}

	list, ok := result.(*ToolsListResult)
	if !ok {
		t.Fatalf("unexpected result type %T", result)
	}

	names := make(map[string]bool)
	for _, tool := range list.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{
		"test_connection",
		"get_recent_activities",
		"get_activities_by_date_range",
		"get_all_activities_in_year",
		"get_available_activity_types",
		"get_athlete_profile",
		"get_activity_details",
	} {
		if !names[want] {
			t.Errorf("tools/list missing %s", want)
		}
	}
}

func TestToolCallNotInitialized(t *testing.T) {
	h := NewHandler()
	req := &jsonrpc.Request{
		Method: "tools/call",
		Params: map[string]interface{}{"name": "test_connection"},
	}
	_, rpcErr := h.ProcessRequest(context.Background(), req)
	if rpcErr == nil {
		t.Fatal("expected error for uninitialized client")
	}
	if rpcErr.Code != jsonrpc.ErrNotInitialized {
		t.Errorf("code = %d, want %d", rpcErr.Code, jsonrpc.ErrNotInitialized)
	}
}

func TestToolCallUnknownTool(t *testing.T) {
	h := NewHandler()
	req := &jsonrpc.Request{
		Method: "tools/call",
		Params: map[string]interface{}{"name": "no_such_tool"},
	}
	result, rpcErr := h.ProcessRequest(context.Background(), req)
	if rpcErr != nil {
		t.Fatalf("unexpected rpc error: %v", rpcErr)
	}
	callResult, ok := result.(*ToolCallResult)
	if !ok {
		t.Fatalf("unexpected result type %T", result)
	}
	if !callResult.IsError {
		t.Error("expected IsError result for unknown tool")
	}
}

func TestToolCallMissingName(t *testing.T) {
	h := NewHandler()
	req := &jsonrpc.Request{
		Method: "tools/call",
		Params: map[string]interface{}{"arguments": map[string]interface{}{}},
	}
	_, rpcErr := h.ProcessRequest(context.Background(), req)
	if rpcErr == nil || rpcErr.Code != InvalidParams {
		t.Errorf("expected InvalidParams, got %v", rpcErr)
	}
}

func TestResourcesList(t *testing.T) {
	h := NewHandler()
	result, rpcErr := h.ProcessRequest(context.Background(), &jsonrpc.Request{Method: "resources/list"})
	if rpcErr != nil {
		t.Fatalf("unexpected error: %v", rpcErr)
	}
	list, ok := result.(*ResourcesListResult)
	if !ok {
		t.Fatalf("unexpected result type %T", result)
	}

	found := false
	for _, r := range list.Resources {
		if r.URI == "strava://athlete" {
			found = true
		}
	}
	if !found {
		t.Error("resources/list missing strava://athlete")
	}
}

func TestResourcesReadNotInitialized(t *testing.T) {
	h := NewHandler()
	req := &jsonrpc.Request{
		Method: "resources/read",
		Params: map[string]interface{}{"uri": "strava://athlete"},
	}
	_, rpcErr := h.ProcessRequest(context.Background(), req)
	if rpcErr == nil {
		t.Fatal("expected error for uninitialized client")
	}
	if rpcErr.Code != jsonrpc.ErrNotInitialized {
		t.Errorf("code = %d, want %d", rpcErr.Code, jsonrpc.ErrNotInitialized)
	}
}

func TestResourcesReadMissingURI(t *testing.T) {
	h := NewHandler()
	req := &jsonrpc.Request{
		Method: "resources/read",
		Params: map[string]interface{}{},
	}
	_, rpcErr := h.ProcessRequest(context.Background(), req)
	if rpcErr == nil || rpcErr.Code != InvalidParams {
		t.Errorf("expected InvalidParams, got %v", rpcErr)
	}
}
