package jiramcp_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	jiramcp "github.com/koveh/jira-mcp"
	"github.com/koveh/jira-mcp/jira"
	jiraserver "github.com/koveh/jira-mcp/servers/jira"
)

type stubToolServer struct {
	listResult jiramcp.ListToolsResult
	callResult jiramcp.CallToolResult
	callErr    error
	lastCall   jiramcp.CallToolParams
}

func (s *stubToolServer) ListTools(context.Context) (jiramcp.ListToolsResult, error) {
	return s.listResult, nil
}

func (s *stubToolServer) CallTool(_ context.Context, params jiramcp.CallToolParams) (jiramcp.CallToolResult, error) {
	s.lastCall = params
	return s.callResult, s.callErr
}

func testProcessor() jiramcp.Processor {
	return jiramcp.NewProcessor(jiramcp.Info{Name: "jira-mcp", Version: "1.0.0"})
}

func TestProcessor_Initialize(t *testing.T) {
	proc := testProcessor()

	resp, ok := proc.Process(context.Background(), &stubToolServer{}, jiramcp.JSONRPCMessage{
		JSONRPC: jiramcp.JSONRPCVersion,
		ID:      "1",
		Method:  "initialize",
	})
	if !ok {
		t.Fatal("expected a response for initialize")
	}
	if resp.ID != "1" {
		t.Errorf("expected id 1, got %s", resp.ID)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}

	var result struct {
		ProtocolVersion string `json:"protocolVersion"`
		ServerInfo      struct {
			Name string `json:"name"`
		} `json:"serverInfo"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}
	if result.ProtocolVersion == "" {
		t.Error("expected a protocol version")
	}
	if result.ServerInfo.Name != "jira-mcp" {
		t.Errorf("expected server name jira-mcp, got %s", result.ServerInfo.Name)
	}
}

func TestProcessor_IDPreserved(t *testing.T) {
	proc := testProcessor()

	tests := []struct {
		name string
		raw  string
		want jiramcp.MustString
	}{
		{
			name: "string id",
			raw:  `{"jsonrpc": "2.0", "id": "abc", "method": "ping"}`,
			want: "abc",
		},
		{
			name: "numeric id",
			raw:  `{"jsonrpc": "2.0", "id": 42, "method": "ping"}`,
			want: "42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msg jiramcp.JSONRPCMessage
			if err := json.Unmarshal([]byte(tt.raw), &msg); err != nil {
				t.Fatalf("failed to unmarshal message: %v", err)
			}

			resp, ok := proc.Process(context.Background(), &stubToolServer{}, msg)
			if !ok {
				t.Fatal("expected a response")
			}
			if resp.ID != tt.want {
				t.Errorf("expected id %s, got %s", tt.want, resp.ID)
			}
		})
	}
}

func TestProcessor_NotificationsProduceNoResponse(t *testing.T) {
	proc := testProcessor()

	for _, method := range []string{"notifications/initialized", "notifications/unknown"} {
		if _, ok := proc.Process(context.Background(), &stubToolServer{}, jiramcp.JSONRPCMessage{
			JSONRPC: jiramcp.JSONRPCVersion,
			Method:  method,
		}); ok {
			t.Errorf("expected no response for notification %s", method)
		}
	}
}

func TestProcessor_UnknownMethod(t *testing.T) {
	proc := testProcessor()

	resp, ok := proc.Process(context.Background(), &stubToolServer{}, jiramcp.JSONRPCMessage{
		JSONRPC: jiramcp.JSONRPCVersion,
		ID:      "7",
		Method:  "resources/list",
	})
	if !ok {
		t.Fatal("expected an error response")
	}
	if resp.Error == nil {
		t.Fatal("expected a JSON-RPC error")
	}
	if resp.Error.Code != -32601 {
		t.Errorf("expected code -32601, got %d", resp.Error.Code)
	}
	if resp.ID != "7" {
		t.Errorf("expected id 7, got %s", resp.ID)
	}
}

func TestProcessor_ToolCallFailure(t *testing.T) {
	proc := testProcessor()
	tools := &stubToolServer{callErr: errors.New("upstream exploded")}

	resp, ok := proc.Process(context.Background(), tools, jiramcp.JSONRPCMessage{
		JSONRPC: jiramcp.JSONRPCVersion,
		ID:      "9",
		Method:  "tools/call",
		Params:  json.RawMessage(`{"name": "jira_get_issue", "arguments": {}}`),
	})
	if !ok {
		t.Fatal("expected an error response")
	}
	if resp.Error == nil || resp.Error.Code != -32603 {
		t.Fatalf("expected code -32603, got %+v", resp.Error)
	}
}

// The missing-argument path exercised end to end: processor, dispatch table,
// argument validation.
func TestProcessor_GetIssueMissingKey(t *testing.T) {
	proc := testProcessor()
	tools := jiraserver.NewServer(jira.NewClient(jira.Config{BaseURL: "http://unused.invalid"}))

	resp, ok := proc.Process(context.Background(), tools, jiramcp.JSONRPCMessage{
		JSONRPC: jiramcp.JSONRPCVersion,
		ID:      "11",
		Method:  "tools/call",
		Params:  json.RawMessage(`{"name": "jira_get_issue", "arguments": {}}`),
	})
	if !ok {
		t.Fatal("expected an error response")
	}
	if resp.Error == nil {
		t.Fatal("expected a JSON-RPC error, got success")
	}
	if resp.Error.Code != -32603 {
		t.Errorf("expected code -32603, got %d", resp.Error.Code)
	}
	if resp.ID != "11" {
		t.Errorf("expected id 11, got %s", resp.ID)
	}
}

func TestProcessor_ToolsList(t *testing.T) {
	proc := testProcessor()
	tools := &stubToolServer{
		listResult: jiramcp.ListToolsResult{
			Tools: []jiramcp.Tool{{Name: "jira_get_projects"}},
		},
	}

	resp, ok := proc.Process(context.Background(), tools, jiramcp.JSONRPCMessage{
		JSONRPC: jiramcp.JSONRPCVersion,
		ID:      "3",
		Method:  "tools/list",
	})
	if !ok {
		t.Fatal("expected a response")
	}

	var result jiramcp.ListToolsResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}
	if len(result.Tools) != 1 || result.Tools[0].Name != "jira_get_projects" {
		t.Errorf("unexpected tool list: %+v", result.Tools)
	}
}
