// Package httpapi provides the public REST façade over the upstream API
// Gateway. Every endpoint is a stateless passthrough: callers present their
// own credentials on each request, nothing is persisted server-side.
package httpapi

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	jiramcp "github.com/koveh/jira-mcp"
	"github.com/koveh/jira-mcp/jira"
)

//go:embed dashboard.html
var dashboardHTML []byte

// Server is the REST façade. It authenticates each request from a bearer
// credential token, raw query parameters, or (for POSTs) the request body,
// and maps endpoints one-to-one onto upstream operations.
//
// Instances should be created using NewServer.
type Server struct {
	logger    *slog.Logger
	newClient func(jira.Config) *jira.Client
}

// ServerOption represents the options for the Server.
type ServerOption func(*Server)

// NewServer creates a REST façade server.
func NewServer(options ...ServerOption) *Server {
	s := &Server{
		logger:    slog.Default(),
		newClient: func(cfg jira.Config) *jira.Client { return jira.NewClient(cfg) },
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// WithLogger sets the logger used by the server.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithClientFactory overrides how upstream clients are built from
// credentials. Used by tests to point requests at fake upstreams.
func WithClientFactory(f func(jira.Config) *jira.Client) ServerOption {
	return func(s *Server) {
		s.newClient = f
	}
}

// Handler returns the routed HTTP handler for the façade.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}))

	r.Get("/", s.handleDashboard)
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/connect", s.handleConnect)
		r.Get("/user", s.handleUser)
		r.Get("/projects", s.handleProjects)
		r.Post("/projects", s.handleCreateProject)
		r.Get("/boards", s.handleBoards)
		r.Get("/assignable", s.handleAssignable)
		r.Get("/issues", s.handleIssues)
		r.Post("/issues", s.handleCreateIssue)
		r.Get("/issue/{key}", s.handleGetIssue)
		r.Put("/issue/{key}", s.handleUpdateIssue)
		r.Delete("/issue/{key}", s.handleDeleteIssue)
		r.Post("/issue/{key}/transition", s.handleTransition)
		r.Get("/search", s.handleSearch)
	})

	return r
}

// clientFrom builds an upstream client from the request's credentials: a
// bearer credential token first, then raw query parameters. Returns nil when
// no usable credentials are present.
func (s *Server) clientFrom(r *http.Request) *jira.Client {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		cfg, err := jiramcp.DecodeToken(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			s.logger.Warn("failed to decode bearer token", slog.String("err", err.Error()))
			return nil
		}
		return s.newClient(cfg)
	}

	q := r.URL.Query()
	cfg := jira.Config{
		BaseURL:  q.Get("base_url"),
		Email:    q.Get("email"),
		APIToken: q.Get("api_token"),
	}
	if cfg.BaseURL != "" && cfg.Email != "" && cfg.APIToken != "" {
		return s.newClient(cfg)
	}
	return nil
}

func (s *Server) requireClient(w http.ResponseWriter, r *http.Request) *jira.Client {
	client := s.clientFrom(r)
	if client == nil {
		s.writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error": "Authentication required",
			"help":  "Provide credentials via Authorization header (Bearer base64(JSON)) or query params (base_url, email, api_token)",
		})
		return nil
	}
	return client
}

func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(dashboardHTML)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "jira-mcp"})
}

type connectRequest struct {
	BaseURL  string `json:"base_url"`
	Email    string `json:"email"`
	APIToken string `json:"api_token"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Malformed request body"})
		return
	}
	if req.BaseURL == "" || req.Email == "" || req.APIToken == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "base_url, email, api_token required"})
		return
	}

	cfg := jira.Config{BaseURL: req.BaseURL, Email: req.Email, APIToken: req.APIToken}
	client := s.newClient(cfg)
	user, err := client.CurrentUser(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	token, err := jiramcp.EncodeToken(cfg)
	if err != nil {
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to encode token"})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":    "connected",
		"user":      user.DisplayName,
		"email":     user.EmailAddress,
		"accountId": user.AccountID,
		"token":     token,
		"help":      "Use this token in Authorization: Bearer <token> header",
	})
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	client := s.requireClient(w, r)
	if client == nil {
		return
	}
	user, err := client.CurrentUser(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"name":      user.DisplayName,
		"email":     user.EmailAddress,
		"accountId": user.AccountID,
	})
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	client := s.requireClient(w, r)
	if client == nil {
		return
	}
	projects, err := client.Projects(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	type projectView struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	}
	views := make([]projectView, 0, len(projects))
	for _, p := range projects {
		views = append(views, projectView{Key: p.Key, Name: p.Name})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"count": len(views), "projects": views})
}

func (s *Server) handleIssues(w http.ResponseWriter, r *http.Request) {
	client := s.requireClient(w, r)
	if client == nil {
		return
	}
	project := r.URL.Query().Get("project")
	if project == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "project parameter required"})
		return
	}
	issues, err := client.IssuesByProject(r.Context(), project, 0)
	if err != nil {
		s.writeError(w, err)
		return
	}
	views := make([]jira.IssueView, 0, len(issues))
	for _, issue := range issues {
		views = append(views, jira.View(issue))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"project": project, "count": len(views), "issues": views})
}

type createProjectRequest struct {
	Key           string `json:"key"`
	Name          string `json:"name"`
	LeadAccountID string `json:"leadAccountId"`

	connectRequest
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Malformed request body"})
		return
	}

	client := s.clientFrom(r)
	if client == nil && req.BaseURL != "" && req.Email != "" && req.APIToken != "" {
		client = s.newClient(jira.Config{BaseURL: req.BaseURL, Email: req.Email, APIToken: req.APIToken})
	}
	if client == nil {
		s.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
		return
	}

	if req.Key == "" || req.Name == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "key and name required"})
		return
	}

	project, err := client.CreateProject(r.Context(), req.Key, req.Name, req.LeadAccountID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "key": project.Key, "id": project.ID})
}

func (s *Server) handleBoards(w http.ResponseWriter, r *http.Request) {
	client := s.requireClient(w, r)
	if client == nil {
		return
	}
	boards, err := client.Boards(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"count": len(boards), "boards": boards})
}

func (s *Server) handleAssignable(w http.ResponseWriter, r *http.Request) {
	client := s.requireClient(w, r)
	if client == nil {
		return
	}
	project := r.URL.Query().Get("project")
	if project == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "project parameter required"})
		return
	}
	users, err := client.AssignableUsers(r.Context(), project)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"project": project, "count": len(users), "users": users})
}

type createIssueRequest struct {
	Project     string `json:"project"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Type        string `json:"type"`

	connectRequest // POSTs may carry credentials in the body as well.
}

func (s *Server) handleCreateIssue(w http.ResponseWriter, r *http.Request) {
	var req createIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Malformed request body"})
		return
	}

	client := s.clientFrom(r)
	if client == nil && req.BaseURL != "" && req.Email != "" && req.APIToken != "" {
		client = s.newClient(jira.Config{BaseURL: req.BaseURL, Email: req.Email, APIToken: req.APIToken})
	}
	if client == nil {
		s.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
		return
	}

	if req.Project == "" || req.Summary == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "project and summary required"})
		return
	}

	issue, err := client.CreateIssue(r.Context(), req.Project, req.Summary, req.Description, req.Type)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "key": issue.Key, "id": issue.ID})
}

func (s *Server) handleGetIssue(w http.ResponseWriter, r *http.Request) {
	client := s.requireClient(w, r)
	if client == nil {
		return
	}
	issue, err := client.Issue(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, jira.View(issue))
}

type updateIssueRequest struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Assignee    string `json:"assignee"`
}

func (s *Server) handleUpdateIssue(w http.ResponseWriter, r *http.Request) {
	client := s.requireClient(w, r)
	if client == nil {
		return
	}
	var req updateIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Malformed request body"})
		return
	}

	fields := map[string]any{}
	if req.Summary != "" {
		fields["summary"] = req.Summary
	}
	if req.Assignee != "" {
		fields["assignee"] = map[string]string{"accountId": req.Assignee}
	}
	if req.Description != "" {
		fields["description"] = jira.NewDocument(req.Description)
	}

	key := chi.URLParam(r, "key")
	if err := client.UpdateIssue(r.Context(), key, fields); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "updated": key})
}

func (s *Server) handleDeleteIssue(w http.ResponseWriter, r *http.Request) {
	client := s.requireClient(w, r)
	if client == nil {
		return
	}
	key := chi.URLParam(r, "key")
	if err := client.DeleteIssue(r.Context(), key); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "deleted": key})
}

type transitionRequest struct {
	TransitionID string `json:"transitionId"`
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	client := s.requireClient(w, r)
	if client == nil {
		return
	}
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Malformed request body"})
		return
	}

	key := chi.URLParam(r, "key")
	if req.TransitionID == "" {
		// No transition requested: report the available ones.
		transitions, err := client.Transitions(r.Context(), key)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"issue": key, "transitions": transitions})
		return
	}

	if err := client.TransitionIssue(r.Context(), key, req.TransitionID); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "issue": key})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	client := s.requireClient(w, r)
	if client == nil {
		return
	}
	jql := r.URL.Query().Get("jql")
	if jql == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "jql parameter required"})
		return
	}
	issues, err := client.SearchIssues(r.Context(), jql, 0)
	if err != nil {
		s.writeError(w, err)
		return
	}
	views := make([]jira.IssueView, 0, len(issues))
	for _, issue := range issues {
		views = append(views, jira.View(issue))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"jql": jql, "count": len(views), "issues": views})
}

// writeError translates gateway failures into transport-appropriate shapes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var apiErr *jira.APIError
	switch {
	case errors.Is(err, jira.ErrAuthentication):
		s.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication failed"})
	case errors.Is(err, jira.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
	case errors.Is(err, context.Canceled):
		// Peer went away, nothing sensible to write.
	case errors.As(err, &apiErr):
		s.writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":  "Upstream error",
			"status": apiErr.StatusCode,
			"body":   apiErr.Body,
		})
	default:
		s.logger.Error("upstream call failed", slog.String("err", err.Error()))
		s.writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to write response", slog.String("err", err.Error()))
	}
}
