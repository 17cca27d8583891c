package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/koveh/jira-mcp/jira"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "jiramcp",
		Short:         "Jira for humans and AI agents",
		Long:          "jiramcp talks to a Jira instance from the command line and serves it to AI-agent hosts over REST, stdio, and SSE.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newCreateCmd(),
		newDeleteCmd(),
		newGetCmd(),
		newListCmd(),
		newProjectsCmd(),
		newSearchCmd(),
		newUpdateCmd(),
		newWhoamiCmd(),
		newServeCmd(),
	)

	return root
}

// clientFromEnv builds the upstream client from the JIRA_BASE_URL,
// JIRA_EMAIL and JIRA_API_TOKEN environment variables.
func clientFromEnv() (*jira.Client, error) {
	cfg := jira.Config{
		BaseURL:  os.Getenv("JIRA_BASE_URL"),
		Email:    os.Getenv("JIRA_EMAIL"),
		APIToken: os.Getenv("JIRA_API_TOKEN"),
	}
	if cfg.BaseURL == "" || cfg.Email == "" || cfg.APIToken == "" {
		return nil, fmt.Errorf("set JIRA_BASE_URL, JIRA_EMAIL, JIRA_API_TOKEN environment variables")
	}
	return jira.NewClient(cfg), nil
}
