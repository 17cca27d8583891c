// Package jiraserver exposes Jira operations as agent-protocol tools. It
// translates tool calls into upstream API Gateway requests and renders the
// results as denormalized issue projections.
package jiraserver

import (
	"context"
	"encoding/json"
	"fmt"

	jiramcp "github.com/koveh/jira-mcp"
	"github.com/koveh/jira-mcp/jira"
)

// Server implements jiramcp.ToolServer on top of a Jira client. It is
// stateless per call, every tool invocation is a fresh upstream round-trip.
type Server struct {
	client *jira.Client
}

// NewServer creates a tool server dispatching to the given upstream client.
func NewServer(client *jira.Client) Server {
	return Server{client: client}
}

// ListTools implements the jiramcp.ToolServer interface.
// Returns the fixed catalog of Jira tools.
func (s Server) ListTools(context.Context) (jiramcp.ListToolsResult, error) {
	return toolList, nil
}

// CallTool implements the jiramcp.ToolServer interface.
// Dispatches the named tool through the handler table and wraps its result
// as text content.
func (s Server) CallTool(ctx context.Context, params jiramcp.CallToolParams) (jiramcp.CallToolResult, error) {
	handler, ok := handlers[params.Name]
	if !ok {
		return jiramcp.CallToolResult{}, fmt.Errorf("unknown tool: %s", params.Name)
	}

	result, err := handler(s, ctx, params.Arguments)
	if err != nil {
		return jiramcp.CallToolResult{}, err
	}

	bs, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return jiramcp.CallToolResult{}, fmt.Errorf("failed to marshal tool result: %w", err)
	}

	return jiramcp.CallToolResult{
		Content: []jiramcp.Content{
			{Type: jiramcp.ContentTypeText, Text: string(bs)},
		},
	}, nil
}

func (s Server) getProjects(ctx context.Context, _ json.RawMessage) (any, error) {
	projects, err := s.client.Projects(ctx)
	if err != nil {
		return nil, err
	}
	type projectView struct {
		ID   string `json:"id"`
		Key  string `json:"key"`
		Name string `json:"name"`
	}
	views := make([]projectView, 0, len(projects))
	for _, p := range projects {
		views = append(views, projectView{ID: p.ID, Key: p.Key, Name: p.Name})
	}
	return views, nil
}

func (s Server) getIssues(ctx context.Context, args json.RawMessage) (any, error) {
	var params getIssuesArgs
	if err := unmarshalArgs(args, &params); err != nil {
		return nil, err
	}
	if params.ProjectKey == "" {
		return nil, fmt.Errorf("missing required argument: project_key")
	}

	issues, err := s.client.IssuesByProject(ctx, params.ProjectKey, params.MaxResults)
	if err != nil {
		return nil, err
	}
	views := make([]jira.IssueView, 0, len(issues))
	for _, issue := range issues {
		views = append(views, jira.View(issue))
	}
	return views, nil
}

func (s Server) getIssue(ctx context.Context, args json.RawMessage) (any, error) {
	var params getIssueArgs
	if err := unmarshalArgs(args, &params); err != nil {
		return nil, err
	}
	if params.IssueKey == "" {
		return nil, fmt.Errorf("missing required argument: issue_key")
	}

	issue, err := s.client.Issue(ctx, params.IssueKey)
	if err != nil {
		return nil, err
	}
	return jira.View(issue), nil
}

func (s Server) createIssue(ctx context.Context, args json.RawMessage) (any, error) {
	var params createIssueArgs
	if err := unmarshalArgs(args, &params); err != nil {
		return nil, err
	}
	if params.ProjectKey == "" || params.Summary == "" {
		return nil, fmt.Errorf("missing required arguments: project_key, summary")
	}

	issue, err := s.client.CreateIssue(ctx, params.ProjectKey, params.Summary, params.Description, params.IssueType)
	if err != nil {
		return nil, err
	}
	return map[string]string{"key": issue.Key, "id": issue.ID}, nil
}

func (s Server) updateIssue(ctx context.Context, args json.RawMessage) (any, error) {
	var params updateIssueArgs
	if err := unmarshalArgs(args, &params); err != nil {
		return nil, err
	}
	if params.IssueKey == "" {
		return nil, fmt.Errorf("missing required argument: issue_key")
	}

	fields := map[string]any{}
	if params.Summary != "" {
		fields["summary"] = params.Summary
	}
	if params.Description != "" {
		fields["description"] = jira.NewDocument(params.Description)
	}
	if err := s.client.UpdateIssue(ctx, params.IssueKey, fields); err != nil {
		return nil, err
	}
	return map[string]string{"status": "updated", "key": params.IssueKey}, nil
}

func (s Server) deleteIssue(ctx context.Context, args json.RawMessage) (any, error) {
	var params deleteIssueArgs
	if err := unmarshalArgs(args, &params); err != nil {
		return nil, err
	}
	if params.IssueKey == "" {
		return nil, fmt.Errorf("missing required argument: issue_key")
	}

	if err := s.client.DeleteIssue(ctx, params.IssueKey); err != nil {
		return nil, err
	}
	return map[string]string{"status": "deleted", "key": params.IssueKey}, nil
}

func (s Server) search(ctx context.Context, args json.RawMessage) (any, error) {
	var params searchArgs
	if err := unmarshalArgs(args, &params); err != nil {
		return nil, err
	}
	if params.JQL == "" {
		return nil, fmt.Errorf("missing required argument: jql")
	}

	issues, err := s.client.SearchIssues(ctx, params.JQL, params.MaxResults)
	if err != nil {
		return nil, err
	}
	views := make([]jira.IssueView, 0, len(issues))
	for _, issue := range issues {
		views = append(views, jira.View(issue))
	}
	return views, nil
}

func (s Server) currentUser(ctx context.Context, _ json.RawMessage) (any, error) {
	return s.client.CurrentUser(ctx)
}

func unmarshalArgs(args json.RawMessage, out any) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, out); err != nil {
		return fmt.Errorf("failed to unmarshal arguments: %w", err)
	}
	return nil
}
