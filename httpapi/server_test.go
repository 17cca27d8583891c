package httpapi_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jiramcp "github.com/koveh/jira-mcp"
	"github.com/koveh/jira-mcp/httpapi"
	"github.com/koveh/jira-mcp/jira"
)

// fakeJira is a stateful fake upstream: one project, issues created through
// it get sequential PROJ-n keys and can be read back, updated, transitioned
// and deleted.
type fakeJira struct {
	mu     sync.Mutex
	nextID int
	issues map[string]map[string]any
}

func newFakeJira() *fakeJira {
	return &fakeJira{nextID: 1, issues: map[string]map[string]any{}}
}

func (f *fakeJira) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/3/myself", func(w http.ResponseWriter, r *http.Request) {
		user, _, _ := r.BasicAuth()
		if user == "bad@example.com" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"accountId":    "abc123",
			"displayName":  "Dev User",
			"emailAddress": user,
		})
	})
	mux.HandleFunc("/rest/api/3/project/search", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"values": []map[string]string{{"id": "10000", "key": "PROJ", "name": "Project One"}},
		})
	})
	mux.HandleFunc("/rest/api/3/project", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"id": "10001", "key": payload["key"], "name": payload["name"],
		})
	})
	mux.HandleFunc("/rest/agile/1.0/board", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"values": []map[string]any{{"id": 1, "name": "PROJ board", "type": "kanban"}},
		})
	})
	mux.HandleFunc("/rest/api/3/user/assignable/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("project") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode([]map[string]string{
			{"accountId": "abc123", "displayName": "Dev User"},
		})
	})
	mux.HandleFunc("/rest/api/3/search/jql", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		all := make([]map[string]any, 0, len(f.issues))
		for _, issue := range f.issues {
			all = append(all, issue)
		}
		json.NewEncoder(w).Encode(map[string]any{"issues": all})
	})
	mux.HandleFunc("/rest/api/3/issue", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Fields map[string]any `json:"fields"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		project := "PROJ"
		if p, ok := payload.Fields["project"].(map[string]any); ok {
			if k, ok := p["key"].(string); ok {
				project = k
			}
		}
		f.mu.Lock()
		key := fmt.Sprintf("%s-%d", project, f.nextID)
		id := fmt.Sprintf("101%02d", f.nextID)
		f.nextID++
		f.issues[key] = map[string]any{
			"id":  id,
			"key": key,
			"fields": map[string]any{
				"summary":     payload.Fields["summary"],
				"status":      map[string]string{"name": "To Do"},
				"description": payload.Fields["description"],
			},
		}
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": id, "key": key})
	})
	mux.HandleFunc("/rest/api/3/issue/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/rest/api/3/issue/")
		key, sub, _ := strings.Cut(rest, "/")

		f.mu.Lock()
		defer f.mu.Unlock()
		issue, ok := f.issues[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		if sub == "transitions" {
			switch r.Method {
			case http.MethodGet:
				json.NewEncoder(w).Encode(map[string]any{
					"transitions": []map[string]string{
						{"id": "21", "name": "In Progress"},
						{"id": "31", "name": "Done"},
					},
				})
			case http.MethodPost:
				issue["fields"].(map[string]any)["status"] = map[string]string{"name": "Done"}
				w.WriteHeader(http.StatusNoContent)
			}
			return
		}

		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(issue)
		case http.MethodPut:
			var payload struct {
				Fields map[string]any `json:"fields"`
			}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			fields := issue["fields"].(map[string]any)
			for k, v := range payload.Fields {
				fields[k] = v
			}
			w.WriteHeader(http.StatusNoContent)
		case http.MethodDelete:
			delete(f.issues, key)
			w.WriteHeader(http.StatusNoContent)
		}
	})
	return mux
}

// newTestAPI stands up the fake upstream and the façade in front of it,
// returning the façade URL and a bearer token for the fake credentials.
func newTestAPI(t *testing.T) (string, string) {
	t.Helper()

	upstream := httptest.NewServer(newFakeJira().handler())
	t.Cleanup(upstream.Close)

	api := httpapi.NewServer(httpapi.WithClientFactory(func(cfg jira.Config) *jira.Client {
		return jira.NewClient(cfg, jira.WithHTTPClient(upstream.Client()))
	}))
	server := httptest.NewServer(api.Handler())
	t.Cleanup(server.Close)

	token, err := jiramcp.EncodeToken(jira.Config{
		BaseURL: upstream.URL, Email: "dev@example.com", APIToken: "tok",
	})
	require.NoError(t, err)

	return server.URL, token
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(bs)
	}
	req, err := http.NewRequest(method, url, reqBody)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	bs, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(bs) > 0 {
		require.NoError(t, json.Unmarshal(bs, &decoded), "body: %s", bs)
	}
	return resp, decoded
}

func TestAPIHealth(t *testing.T) {
	url, _ := newTestAPI(t)

	resp, body := doJSON(t, http.MethodGet, url+"/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestAPIDashboard(t *testing.T) {
	url, _ := newTestAPI(t)

	resp, err := http.Get(url + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

func TestAPIConnect(t *testing.T) {
	url, token := newTestAPI(t)

	cfg, err := jiramcp.DecodeToken(token)
	require.NoError(t, err)

	resp, body := doJSON(t, http.MethodPost, url+"/api/connect", "", map[string]string{
		"base_url": cfg.BaseURL, "email": cfg.Email, "api_token": cfg.APIToken,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "connected", body["status"])
	assert.Equal(t, "Dev User", body["user"])

	// The returned token authenticates subsequent requests.
	returned, ok := body["token"].(string)
	require.True(t, ok)
	resp, _ = doJSON(t, http.MethodGet, url+"/api/user", returned, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPIConnectBadCredentials(t *testing.T) {
	url, token := newTestAPI(t)

	cfg, err := jiramcp.DecodeToken(token)
	require.NoError(t, err)

	resp, _ := doJSON(t, http.MethodPost, url+"/api/connect", "", map[string]string{
		"base_url": cfg.BaseURL, "email": "bad@example.com", "api_token": "tok",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPIAuthenticationRequired(t *testing.T) {
	url, _ := newTestAPI(t)

	for _, path := range []string{"/api/user", "/api/projects", "/api/issues?project=PROJ", "/api/search?jql=x"} {
		resp, body := doJSON(t, http.MethodGet, url+path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
		assert.NotEmpty(t, body["error"], path)
	}
}

func TestAPIQueryParamCredentials(t *testing.T) {
	url, token := newTestAPI(t)

	cfg, err := jiramcp.DecodeToken(token)
	require.NoError(t, err)

	resp, body := doJSON(t, http.MethodGet,
		url+"/api/user?base_url="+cfg.BaseURL+"&email="+cfg.Email+"&api_token="+cfg.APIToken, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Dev User", body["name"])
}

func TestAPIProjects(t *testing.T) {
	url, token := newTestAPI(t)

	resp, body := doJSON(t, http.MethodGet, url+"/api/projects", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["count"])

	projects, ok := body["projects"].([]any)
	require.True(t, ok)
	require.Len(t, projects, 1)
	assert.Equal(t, map[string]any{"key": "PROJ", "name": "Project One"}, projects[0])
}

// The demonstration workflow: create an issue, key follows the <project>-<n>
// pattern, reading it back returns the same summary.
func TestAPICreateThenGetScenario(t *testing.T) {
	url, token := newTestAPI(t)

	resp, body := doJSON(t, http.MethodPost, url+"/api/issues", token, map[string]string{
		"project": "JIRAMCP", "summary": "demo",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	key, ok := body["key"].(string)
	require.True(t, ok)
	assert.Regexp(t, `^JIRAMCP-\d+$`, key)

	resp, body = doJSON(t, http.MethodGet, url+"/api/issue/"+key, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "demo", body["summary"])
}

func TestAPICreateProject(t *testing.T) {
	url, token := newTestAPI(t)

	resp, body := doJSON(t, http.MethodPost, url+"/api/projects", token, map[string]string{
		"key": "NEW", "name": "New Project",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "NEW", body["key"])

	// key and name are mandatory.
	resp, _ = doJSON(t, http.MethodPost, url+"/api/projects", token, map[string]string{"key": "NEW"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIBoards(t *testing.T) {
	url, token := newTestAPI(t)

	resp, body := doJSON(t, http.MethodGet, url+"/api/boards", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["count"])
}

func TestAPIAssignableUsers(t *testing.T) {
	url, token := newTestAPI(t)

	resp, body := doJSON(t, http.MethodGet, url+"/api/assignable?project=PROJ", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["count"])

	resp, _ = doJSON(t, http.MethodGet, url+"/api/assignable", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIIssueLifecycle(t *testing.T) {
	url, token := newTestAPI(t)

	// Create.
	resp, body := doJSON(t, http.MethodPost, url+"/api/issues", token, map[string]string{
		"project": "PROJ", "summary": "Fix login", "description": "Users cannot log in",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	key, ok := body["key"].(string)
	require.True(t, ok)
	assert.Equal(t, "PROJ-1", key)

	// Read back.
	resp, body = doJSON(t, http.MethodGet, url+"/api/issue/"+key, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, key, body["key"])
	assert.Equal(t, "Fix login", body["summary"])
	assert.Equal(t, "To Do", body["status"])
	assert.Equal(t, "Users cannot log in", body["description"])

	// Update the summary.
	resp, _ = doJSON(t, http.MethodPut, url+"/api/issue/"+key, token, map[string]string{
		"summary": "Fix login page",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, url+"/api/issue/"+key, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Fix login page", body["summary"])

	// List available transitions, then move to Done.
	resp, body = doJSON(t, http.MethodPost, url+"/api/issue/"+key+"/transition", token, map[string]string{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	transitions, ok := body["transitions"].([]any)
	require.True(t, ok)
	assert.Len(t, transitions, 2)

	resp, _ = doJSON(t, http.MethodPost, url+"/api/issue/"+key+"/transition", token, map[string]string{
		"transitionId": "31",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, url+"/api/issue/"+key, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Done", body["status"])

	// Delete, then the read must 404.
	resp, _ = doJSON(t, http.MethodDelete, url+"/api/issue/"+key, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, url+"/api/issue/"+key, token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPICreateIssueBodyCredentials(t *testing.T) {
	url, token := newTestAPI(t)

	cfg, err := jiramcp.DecodeToken(token)
	require.NoError(t, err)

	resp, body := doJSON(t, http.MethodPost, url+"/api/issues", "", map[string]string{
		"base_url": cfg.BaseURL, "email": cfg.Email, "api_token": cfg.APIToken,
		"project": "PROJ", "summary": "From body creds",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
}

func TestAPICreateIssueValidation(t *testing.T) {
	url, token := newTestAPI(t)

	resp, body := doJSON(t, http.MethodPost, url+"/api/issues", token, map[string]string{
		"project": "PROJ",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
}

func TestAPIIssuesRequiresProject(t *testing.T) {
	url, token := newTestAPI(t)

	resp, _ := doJSON(t, http.MethodGet, url+"/api/issues", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPISearch(t *testing.T) {
	url, token := newTestAPI(t)

	// Seed one issue.
	resp, _ := doJSON(t, http.MethodPost, url+"/api/issues", token, map[string]string{
		"project": "PROJ", "summary": "Searchable",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodGet, url+"/api/search?jql=project%20%3D%20PROJ", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["count"])
}

func TestAPIMalformedBearerToken(t *testing.T) {
	url, _ := newTestAPI(t)

	resp, _ := doJSON(t, http.MethodGet, url+"/api/user", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
