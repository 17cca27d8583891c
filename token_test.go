package jiramcp_test

import (
	"encoding/base64"
	"testing"

	jiramcp "github.com/koveh/jira-mcp"
	"github.com/koveh/jira-mcp/jira"
)

func TestTokenRoundTrip(t *testing.T) {
	cfg := jira.Config{
		BaseURL:  "https://example.atlassian.net",
		Email:    "dev@example.com",
		APIToken: "secret-token",
	}

	token, err := jiramcp.EncodeToken(cfg)
	if err != nil {
		t.Fatalf("failed to encode token: %v", err)
	}

	decoded, err := jiramcp.DecodeToken(token)
	if err != nil {
		t.Fatalf("failed to decode token: %v", err)
	}

	if decoded != cfg {
		t.Errorf("credentials did not round-trip: got %+v, want %+v", decoded, cfg)
	}
}

func TestDecodeToken_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{
			name:  "empty token",
			token: "",
		},
		{
			name:  "not base64",
			token: "!!!not-base64!!!",
		},
		{
			name:  "base64 but not json",
			token: base64.StdEncoding.EncodeToString([]byte("not json at all")),
		},
		{
			name:  "json but wrong shape",
			token: base64.StdEncoding.EncodeToString([]byte(`[1, 2, 3]`)),
		},
		{
			name:  "incomplete credentials",
			token: base64.StdEncoding.EncodeToString([]byte(`{"base_url": "https://example.atlassian.net"}`)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := jiramcp.DecodeToken(tt.token); err == nil {
				t.Errorf("expected error for token %q, got none", tt.token)
			}
		})
	}
}
