package jiramcp

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/koveh/jira-mcp/jira"
)

// EncodeToken packs a credential bundle into a reversibly-encoded bearer
// token: base64 over the JSON encoding of the connection settings. Any holder
// of the token can reconstruct an upstream client, so tokens must be treated
// as secrets.
func EncodeToken(cfg jira.Config) (string, error) {
	bs, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal credentials: %w", err)
	}
	return base64.StdEncoding.EncodeToString(bs), nil
}

// DecodeToken unpacks a credential token produced by EncodeToken. A malformed
// token yields an error, never a panic, and a token that decodes to an
// incomplete bundle is rejected as well.
func DecodeToken(token string) (jira.Config, error) {
	bs, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return jira.Config{}, fmt.Errorf("failed to decode token: %w", err)
	}

	var cfg jira.Config
	if err := json.Unmarshal(bs, &cfg); err != nil {
		return jira.Config{}, fmt.Errorf("failed to unmarshal token: %w", err)
	}

	if cfg.BaseURL == "" || cfg.Email == "" || cfg.APIToken == "" {
		return jira.Config{}, fmt.Errorf("incomplete credentials in token")
	}
	return cfg, nil
}
