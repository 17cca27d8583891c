package jira

import (
	"fmt"
	"strings"
)

// IssueView is the denormalized, read-only projection of an issue returned to
// callers of every front-end. It is derived fresh from the upstream record on
// each read and never cached.
type IssueView struct {
	Key         string `json:"key"`
	Summary     string `json:"summary"`
	Status      string `json:"status"`
	Assignee    string `json:"assignee,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Description string `json:"description,omitempty"`
	Created     string `json:"created,omitempty"`
	Updated     string `json:"updated,omitempty"`
}

// View projects an upstream issue record into its denormalized view.
func View(issue Issue) IssueView {
	v := IssueView{
		Key:         issue.Key,
		Summary:     issue.Fields.Summary,
		Description: issue.Fields.Description.Text(),
		Created:     issue.Fields.Created,
		Updated:     issue.Fields.Updated,
	}
	if issue.Fields.Status != nil {
		v.Status = issue.Fields.Status.Name
	}
	if issue.Fields.Assignee != nil {
		v.Assignee = issue.Fields.Assignee.DisplayName
	}
	if issue.Fields.Priority != nil {
		v.Priority = issue.Fields.Priority.Name
	}
	return v
}

// FormatIssue renders a one-line summary of an issue for terminal output.
func FormatIssue(issue Issue) string {
	v := View(issue)
	assignee := v.Assignee
	if assignee == "" {
		assignee = "Unassigned"
	}
	status := v.Status
	if status == "" {
		status = "Unknown"
	}
	return fmt.Sprintf("[%s] %s | Status: %s | Assignee: %s", v.Key, v.Summary, status, assignee)
}

// FormatIssueDetailed renders a multi-line view of an issue for terminal
// output.
func FormatIssueDetailed(issue Issue) string {
	v := View(issue)
	orNA := func(s string) string {
		if s == "" {
			return "N/A"
		}
		return s
	}
	lines := []string{
		"Key: " + v.Key,
		"Summary: " + orNA(v.Summary),
		"Status: " + orNA(v.Status),
		"Priority: " + orNA(v.Priority),
		"Created: " + orNA(v.Created),
		"Updated: " + orNA(v.Updated),
	}
	if v.Description != "" {
		lines = append(lines, "Description: "+v.Description)
	}
	return strings.Join(lines, "\n")
}
