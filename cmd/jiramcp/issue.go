package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/koveh/jira-mcp/jira"
)

func newCreateCmd() *cobra.Command {
	var description, issueType string

	cmd := &cobra.Command{
		Use:   "create <project> <summary>",
		Short: "Create a new issue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := clientFromEnv()
			if err != nil {
				return err
			}
			issue, err := client.CreateIssue(cmd.Context(), args[0], args[1], description, issueType)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", issue.Key)
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Issue description")
	cmd.Flags().StringVarP(&issueType, "type", "t", "Task", "Issue type")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <issue>",
		Short: "Delete an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := clientFromEnv()
			if err != nil {
				return err
			}
			if err := client.DeleteIssue(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted: %s\n", args[0])
			return nil
		},
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <issue>",
		Short: "Get issue details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := clientFromEnv()
			if err != nil {
				return err
			}
			issue, err := client.Issue(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), jira.FormatIssueDetailed(issue))
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	var maxResults int

	cmd := &cobra.Command{
		Use:   "list <project>",
		Short: "List issues in a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := clientFromEnv()
			if err != nil {
				return err
			}
			issues, err := client.IssuesByProject(cmd.Context(), args[0], maxResults)
			if err != nil {
				return err
			}
			for _, issue := range issues {
				fmt.Fprintln(cmd.OutOrStdout(), jira.FormatIssue(issue))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&maxResults, "max", "m", 50, "Max results")
	return cmd
}

func newProjectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List all projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := clientFromEnv()
			if err != nil {
				return err
			}
			projects, err := client.Projects(cmd.Context())
			if err != nil {
				return err
			}
			for _, p := range projects {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", p.Key, p.Name)
			}
			return nil
		},
	}
}

func newSearchCmd() *cobra.Command {
	var maxResults int

	cmd := &cobra.Command{
		Use:   "search <jql>",
		Short: "Search issues using JQL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := clientFromEnv()
			if err != nil {
				return err
			}
			issues, err := client.SearchIssues(cmd.Context(), args[0], maxResults)
			if err != nil {
				return err
			}
			for _, issue := range issues {
				fmt.Fprintln(cmd.OutOrStdout(), jira.FormatIssue(issue))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&maxResults, "max", "m", 50, "Max results")
	return cmd
}

func newUpdateCmd() *cobra.Command {
	var summary string

	cmd := &cobra.Command{
		Use:   "update <issue>",
		Short: "Update an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := clientFromEnv()
			if err != nil {
				return err
			}
			fields := map[string]any{}
			if summary != "" {
				fields["summary"] = summary
			}
			if err := client.UpdateIssue(cmd.Context(), args[0], fields); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated: %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&summary, "summary", "s", "", "New summary")
	return cmd
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show current user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := clientFromEnv()
			if err != nil {
				return err
			}
			user, err := client.CurrentUser(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User: %s (%s)\n", user.DisplayName, user.EmailAddress)
			return nil
		},
	}
}
