package main

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/michal-palko/smart-claimer/internal/app"
)

var jiraCmd = &cobra.Command{
	Use:   "jira",
	Short: "Look up JIRA issues",
}

var jiraIssuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "List issues assigned to you",
	RunE: func(cmd *cobra.Command, args []string) error {
		autor, err := requireAutor()
		if err != nil {
			return err
		}
		refresh, _ := cmd.Flags().GetBool("refresh")

		a, err := newApp("jira-issues")
		if err != nil {
			return err
		}
		defer a.Close()

		issues, err := a.Issues(cmd.Context(), autor, refresh)
		if err != nil {
			return err
		}
		if len(issues) == 0 {
			fmt.Println("No assigned issues.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tSTATUS\tPARENT\tSPRINT\tSUMMARY")
		for _, is := range issues {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", is.Key, is.Status, is.ParentKey, is.SprintName, truncate(is.Summary, 60))
		}
		return w.Flush()
	},
}

var jiraValidateCmd = &cobra.Command{
	Use:   "validate KEY",
	Short: "Check that an issue exists",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("jira-validate")
		if err != nil {
			return err
		}
		defer a.Close()

		tracker := a.Tracker()
		if tracker == nil {
			return app.ErrJiraDisabled
		}
		key := strings.ToUpper(strings.TrimSpace(args[0]))
		issue, err := tracker.SearchKey(cmd.Context(), key)
		if err != nil {
			return err
		}
		if issue == nil {
			return fmt.Errorf("issue %s not found", key)
		}
		success("%s: %s", issue.Key, issue.Summary)
		if issue.ParentKey != "" {
			fmt.Printf("parent: %s %s\n", issue.ParentKey, issue.ParentSummary)
		}
		return nil
	},
}

var jiraShowCmd = &cobra.Command{
	Use:   "show KEY",
	Short: "Show issue details and comments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("jira-show")
		if err != nil {
			return err
		}
		defer a.Close()

		tracker := a.Tracker()
		if tracker == nil {
			return app.ErrJiraDisabled
		}
		d, err := tracker.IssueDetails(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if d == nil {
			return fmt.Errorf("issue %s not found", args[0])
		}

		bold := color.New(color.Bold)
		bold.Printf("%s %s\n", d.Key, d.Summary)
		fmt.Printf("status: %s  priority: %s\n", d.Status, d.Priority)
		if d.BaseURL != "" {
			fmt.Printf("%s/browse/%s\n", d.BaseURL, d.Key)
		}
		if text := plainText(d.Description); text != "" {
			fmt.Printf("\n%s\n", text)
		}
		for _, c := range d.Comments {
			fmt.Println()
			color.New(color.FgCyan).Printf("%s  %s\n", c.Author, c.Created)
			fmt.Println(plainText(c.Body))
		}
		return nil
	},
}

var htmlTag = regexp.MustCompile(`<[^>]+>`)

// plainText strips the simplified HTML issue bodies are rendered as.
func plainText(html string) string {
	s := strings.NewReplacer("<br>", "\n", "<br/>", "\n", "</p>", "\n", "</li>", "\n").Replace(html)
	s = htmlTag.ReplaceAllString(s, "")
	s = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'", "&amp;", "&").Replace(s)
	return strings.TrimSpace(s)
}

func init() {
	jiraIssuesCmd.Flags().Bool("refresh", false, "Bypass the metadata cache")

	jiraCmd.AddCommand(jiraIssuesCmd)
	jiraCmd.AddCommand(jiraValidateCmd)
	jiraCmd.AddCommand(jiraShowCmd)
}
