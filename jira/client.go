package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Config holds the connection settings for a Jira Cloud instance. APIToken is
// the token generated at id.atlassian.com, used together with Email for basic
// authentication.
type Config struct {
	BaseURL  string `json:"base_url"`
	Email    string `json:"email"`
	APIToken string `json:"api_token"`
}

// Client is a thin wrapper around the Jira REST API v3. It holds no state
// beyond the connection settings, every method is a single authenticated
// round-trip against the upstream instance.
//
// Instances should be created using NewClient.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// ClientOption represents the options for the Client.
type ClientOption func(*Client)

// ErrAuthentication is returned when the upstream rejects the configured
// credentials.
var ErrAuthentication = errors.New("jira: authentication failed")

// ErrNotFound is returned when the requested entity does not exist upstream.
var ErrNotFound = errors.New("jira: not found")

// APIError is returned for any other non-2xx upstream response, preserving
// the status code and response body for the caller.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jira: upstream returned %d: %s", e.StatusCode, e.Body)
}

// User represents the authenticated Jira user as returned by the myself
// endpoint.
type User struct {
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
}

// Project represents a Jira project.
type Project struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Board represents an agile board.
type Board struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Named is the {"name": ...} shape Jira uses for statuses, priorities and
// issue types.
type Named struct {
	Name string `json:"name"`
}

// IssueFields is the subset of issue fields this system reads and writes.
type IssueFields struct {
	Summary     string    `json:"summary,omitempty"`
	Status      *Named    `json:"status,omitempty"`
	Priority    *Named    `json:"priority,omitempty"`
	IssueType   *Named    `json:"issuetype,omitempty"`
	Assignee    *User     `json:"assignee,omitempty"`
	Description *Document `json:"description,omitempty"`
	Created     string    `json:"created,omitempty"`
	Updated     string    `json:"updated,omitempty"`
}

// Issue represents a Jira issue record.
type Issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Fields IssueFields `json:"fields"`
}

// Transition represents a workflow transition available on an issue.
type Transition struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewClient creates a Client for the given connection settings. The optional
// options allow customizing the underlying HTTP client, if none is provided
// http.DefaultClient is used.
func NewClient(cfg Config, options ...ClientOption) *Client {
	c := &Client{
		cfg:        cfg,
		httpClient: http.DefaultClient,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// WithHTTPClient sets the HTTP client used for upstream calls.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// Config returns the connection settings this client was created with.
func (c *Client) Config() Config {
	return c.cfg
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	u := strings.TrimSuffix(c.cfg.BaseURL, "/") + endpoint

	var reqBody io.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(bs)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.cfg.Email, c.cfg.APIToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call jira: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w (status %d)", ErrAuthentication, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s %s", ErrNotFound, method, endpoint)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// CurrentUser returns the user the configured credentials authenticate as.
// It doubles as the credential validation call.
func (c *Client) CurrentUser(ctx context.Context) (User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/rest/api/3/myself", nil, &u); err != nil {
		return User{}, err
	}
	return u, nil
}

// Projects returns all projects visible to the authenticated user.
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	var result struct {
		Values []Project `json:"values"`
	}
	if err := c.do(ctx, http.MethodGet, "/rest/api/3/project/search", nil, &result); err != nil {
		return nil, err
	}
	return result.Values, nil
}

// CreateProject creates a new project using the simplified kanban template.
// The lead account ID is optional.
func (c *Client) CreateProject(ctx context.Context, key, name, leadAccountID string) (Project, error) {
	payload := map[string]any{
		"key":                key,
		"name":               name,
		"projectTypeKey":     "software",
		"projectTemplateKey": "com.pyxis.greenhopper.jira:gh-simplified-kanban-classic",
	}
	if leadAccountID != "" {
		payload["leadAccountId"] = leadAccountID
	}
	var p Project
	if err := c.do(ctx, http.MethodPost, "/rest/api/3/project", payload, &p); err != nil {
		return Project{}, err
	}
	return p, nil
}

// Boards returns all agile boards visible to the authenticated user.
func (c *Client) Boards(ctx context.Context) ([]Board, error) {
	var result struct {
		Values []Board `json:"values"`
	}
	if err := c.do(ctx, http.MethodGet, "/rest/agile/1.0/board", nil, &result); err != nil {
		return nil, err
	}
	return result.Values, nil
}

// CreateIssue creates an issue in the given project. The description is
// wrapped into an Atlassian Document Format paragraph. An empty issueType
// defaults to Task.
func (c *Client) CreateIssue(ctx context.Context, projectKey, summary, description, issueType string) (Issue, error) {
	if issueType == "" {
		issueType = "Task"
	}
	payload := map[string]any{
		"fields": map[string]any{
			"project":     map[string]string{"key": projectKey},
			"summary":     summary,
			"description": NewDocument(description),
			"issuetype":   map[string]string{"name": issueType},
		},
	}
	var issue Issue
	if err := c.do(ctx, http.MethodPost, "/rest/api/3/issue", payload, &issue); err != nil {
		return Issue{}, err
	}
	return issue, nil
}

// Issue returns the issue with the given key.
func (c *Client) Issue(ctx context.Context, issueKey string) (Issue, error) {
	var issue Issue
	if err := c.do(ctx, http.MethodGet, "/rest/api/3/issue/"+url.PathEscape(issueKey), nil, &issue); err != nil {
		return Issue{}, err
	}
	return issue, nil
}

// DeleteIssue deletes the issue with the given key. Deletion is permanent
// upstream.
func (c *Client) DeleteIssue(ctx context.Context, issueKey string) error {
	return c.do(ctx, http.MethodDelete, "/rest/api/3/issue/"+url.PathEscape(issueKey), nil, nil)
}

// UpdateIssue applies the given field changes to an issue. Only the fields
// populated in the map are touched.
func (c *Client) UpdateIssue(ctx context.Context, issueKey string, fields map[string]any) error {
	payload := map[string]any{"fields": fields}
	return c.do(ctx, http.MethodPut, "/rest/api/3/issue/"+url.PathEscape(issueKey), payload, nil)
}

// IssuesByProject returns up to maxResults issues of a project, newest first
// per Jira's default JQL ordering.
func (c *Client) IssuesByProject(ctx context.Context, projectKey string, maxResults int) ([]Issue, error) {
	return c.SearchIssues(ctx, "project = "+projectKey, maxResults)
}

// SearchIssues runs a JQL query and returns up to maxResults issues. The
// query string is passed through verbatim, bounding the result set is the
// caller's responsibility.
func (c *Client) SearchIssues(ctx context.Context, jql string, maxResults int) ([]Issue, error) {
	if maxResults <= 0 {
		maxResults = 50
	}
	q := url.Values{}
	q.Set("jql", jql)
	q.Set("maxResults", strconv.Itoa(maxResults))
	q.Set("fields", "summary,status,assignee,priority,description,created,updated")

	var result struct {
		Issues []Issue `json:"issues"`
	}
	if err := c.do(ctx, http.MethodGet, "/rest/api/3/search/jql?"+q.Encode(), nil, &result); err != nil {
		return nil, err
	}
	return result.Issues, nil
}

// Transitions returns the workflow transitions currently available on an
// issue.
func (c *Client) Transitions(ctx context.Context, issueKey string) ([]Transition, error) {
	var result struct {
		Transitions []Transition `json:"transitions"`
	}
	endpoint := "/rest/api/3/issue/" + url.PathEscape(issueKey) + "/transitions"
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &result); err != nil {
		return nil, err
	}
	return result.Transitions, nil
}

// TransitionIssue moves an issue through the workflow transition with the
// given ID.
func (c *Client) TransitionIssue(ctx context.Context, issueKey, transitionID string) error {
	payload := map[string]any{
		"transition": map[string]string{"id": transitionID},
	}
	endpoint := "/rest/api/3/issue/" + url.PathEscape(issueKey) + "/transitions"
	return c.do(ctx, http.MethodPost, endpoint, payload, nil)
}

// AssignableUsers returns the users that can be assigned to issues of a
// project.
func (c *Client) AssignableUsers(ctx context.Context, projectKey string) ([]User, error) {
	var users []User
	endpoint := "/rest/api/3/user/assignable/search?project=" + url.QueryEscape(projectKey)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}
