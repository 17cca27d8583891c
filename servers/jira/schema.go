package jiraserver

type getIssuesArgs struct {
	ProjectKey string `json:"project_key"`
	MaxResults int    `json:"max_results"`
}

type getIssueArgs struct {
	IssueKey string `json:"issue_key"`
}

type createIssueArgs struct {
	ProjectKey  string `json:"project_key"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	IssueType   string `json:"issue_type"`
}

type updateIssueArgs struct {
	IssueKey    string `json:"issue_key"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
}

type deleteIssueArgs struct {
	IssueKey string `json:"issue_key"`
}

type searchArgs struct {
	JQL        string `json:"jql"`
	MaxResults int    `json:"max_results"`
}

var emptySchema = []byte(`{"type": "object", "properties": {}}`)

var getIssuesSchema = []byte(`{
  "type": "object",
  "properties": {
    "project_key": {"type": "string", "description": "Project key (e.g., PROJ)"},
    "max_results": {"type": "integer", "description": "Maximum results to return", "default": 50}
  },
  "required": ["project_key"]
}`)

var getIssueSchema = []byte(`{
  "type": "object",
  "properties": {
    "issue_key": {"type": "string", "description": "Issue key (e.g., PROJ-123)"}
  },
  "required": ["issue_key"]
}`)

var createIssueSchema = []byte(`{
  "type": "object",
  "properties": {
    "project_key": {"type": "string", "description": "Project key"},
    "summary": {"type": "string", "description": "Issue title/summary"},
    "description": {"type": "string", "description": "Issue description"},
    "issue_type": {"type": "string", "description": "Issue type", "default": "Task"}
  },
  "required": ["project_key", "summary"]
}`)

var updateIssueSchema = []byte(`{
  "type": "object",
  "properties": {
    "issue_key": {"type": "string", "description": "Issue key to update"},
    "summary": {"type": "string", "description": "New summary"},
    "description": {"type": "string", "description": "New description"}
  },
  "required": ["issue_key"]
}`)

var deleteIssueSchema = []byte(`{
  "type": "object",
  "properties": {
    "issue_key": {"type": "string", "description": "Issue key"}
  },
  "required": ["issue_key"]
}`)

var searchSchema = []byte(`{
  "type": "object",
  "properties": {
    "jql": {"type": "string", "description": "JQL query"},
    "max_results": {"type": "integer", "description": "Max results", "default": 50}
  },
  "required": ["jql"]
}`)
