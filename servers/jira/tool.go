package jiraserver

import (
	"context"
	"encoding/json"

	jiramcp "github.com/koveh/jira-mcp"
)

type toolHandler func(s Server, ctx context.Context, args json.RawMessage) (any, error)

type toolDef struct {
	tool    jiramcp.Tool
	handler toolHandler
}

// tools is the closed catalog of operations this server exposes. It is the
// single source for both tools/list and tools/call dispatch.
var tools = []toolDef{
	{
		tool: jiramcp.Tool{
			Name:        "jira_get_projects",
			Description: "Get list of all accessible Jira projects",
			InputSchema: emptySchema,
		},
		handler: Server.getProjects,
	},
	{
		tool: jiramcp.Tool{
			Name:        "jira_get_issues",
			Description: "Get all issues for a specific project",
			InputSchema: getIssuesSchema,
		},
		handler: Server.getIssues,
	},
	{
		tool: jiramcp.Tool{
			Name:        "jira_get_issue",
			Description: "Get detailed information about a specific issue",
			InputSchema: getIssueSchema,
		},
		handler: Server.getIssue,
	},
	{
		tool: jiramcp.Tool{
			Name:        "jira_create_issue",
			Description: "Create a new issue/task in Jira",
			InputSchema: createIssueSchema,
		},
		handler: Server.createIssue,
	},
	{
		tool: jiramcp.Tool{
			Name:        "jira_update_issue",
			Description: "Update an existing issue",
			InputSchema: updateIssueSchema,
		},
		handler: Server.updateIssue,
	},
	{
		tool: jiramcp.Tool{
			Name:        "jira_delete_issue",
			Description: "Delete an issue from Jira",
			InputSchema: deleteIssueSchema,
		},
		handler: Server.deleteIssue,
	},
	{
		tool: jiramcp.Tool{
			Name:        "jira_search",
			Description: "Search issues using JQL",
			InputSchema: searchSchema,
		},
		handler: Server.search,
	},
	{
		tool: jiramcp.Tool{
			Name:        "jira_get_current_user",
			Description: "Get current authenticated user info",
			InputSchema: emptySchema,
		},
		handler: Server.currentUser,
	},
}

var (
	toolList = func() jiramcp.ListToolsResult {
		result := jiramcp.ListToolsResult{Tools: make([]jiramcp.Tool, 0, len(tools))}
		for _, def := range tools {
			result.Tools = append(result.Tools, def.tool)
		}
		return result
	}()

	handlers = func() map[string]toolHandler {
		m := make(map[string]toolHandler, len(tools))
		for _, def := range tools {
			m[def.tool.Name] = def.handler
		}
		return m
	}()
)
