package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/todotagger/internal/config"
	"github.com/danielolaszy/todotagger/internal/jira"
	"github.com/danielolaszy/todotagger/internal/logging"
	"github.com/danielolaszy/todotagger/internal/publish"
	"github.com/danielolaszy/todotagger/pkg/models"
)

var (
	jiraBoard      string
	jiraDryRun     bool
	jiraPriorities []string
)

// jiraCmd files TODO comments as JIRA tickets.
var jiraCmd = &cobra.Command{
	Use:   "jira [directory]",
	Short: "File TODO comments as JIRA tickets",
	Long: `Scan a directory and create one JIRA Task per TODO comment.

The project key is taken from the board name ("PROJ" or "PROJ Board").
Created tickets carry the 'todotagger' label and a fingerprint of the TODO's
file and text in their description; TODOs already filed are skipped.

Requires JIRA_URL, JIRA_USERNAME and JIRA_TOKEN.

Example:
  todotagger jira . -b PROJ --priority critical`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if jiraBoard == "" {
			return fmt.Errorf("a JIRA board must be specified using --board")
		}

		cfg := config.LoadConfig(cfgFile)
		priorities, err := parsePriorities(jiraPriorities)
		if err != nil {
			return err
		}

		todos, err := collectTodos(cmd.Context(), cfg, scanRoot(args), 0, priorities)
		if err != nil {
			return err
		}

		var tracker publish.Tracker
		if jiraDryRun && config.ValidateJiraConfig(cfg) != nil {
			tracker = offlineTracker{name: "jira " + jiraBoard}
		} else {
			client, err := jira.NewClient(cfg.Jira)
			if err != nil {
				return fmt.Errorf("failed to initialize jira client: %w", err)
			}
			tracker = client.Tracker(jiraBoard)
		}

		result, err := publish.Run(cmd.Context(), tracker, todos, jiraDryRun)
		if err != nil {
			return err
		}

		logging.Info("jira publishing complete",
			"board", jiraBoard,
			"created", len(result.Created),
			"skipped", result.Skipped,
			"failed", result.Failed)
		printResult(cmd.OutOrStdout(), result, jiraDryRun)

		if result.Failed > 0 {
			return fmt.Errorf("failed to create %d ticket(s)", result.Failed)
		}
		return nil
	},
}

func init() {
	jiraCmd.Flags().StringVarP(&jiraBoard, "board", "b", "", "JIRA project board, e.g. 'PROJ'")
	jiraCmd.Flags().BoolVar(&jiraDryRun, "dry-run", false, "list the tickets that would be created without creating them")
	jiraCmd.Flags().StringSliceVarP(&jiraPriorities, "priority", "p", nil, "only file these priorities, e.g. critical,high")
}

// offlineTracker lets a dry run work without credentials. It reports no
// existing issues and never creates any.
type offlineTracker struct {
	name string
}

func (t offlineTracker) Name() string { return t.name }

func (t offlineTracker) Existing(context.Context) (map[string]bool, error) {
	return map[string]bool{}, nil
}

func (t offlineTracker) Create(context.Context, models.Todo, string) (string, error) {
	return "", fmt.Errorf("%s is offline", t.name)
}

func printResult(w io.Writer, result publish.Result, dryRun bool) {
	verb := "Created"
	if dryRun {
		verb = "Would create"
	}

	for _, f := range result.Created {
		if f.Key != "" {
			fmt.Fprintf(w, "%s %s: %s (%s)\n", verb, f.Key, publish.Title(f.Todo), f.Todo.Location())
			continue
		}
		fmt.Fprintf(w, "%s: %s (%s)\n", verb, publish.Title(f.Todo), f.Todo.Location())
	}
	fmt.Fprintf(w, "%s %d, skipped %d already filed, failed %d\n", verb, len(result.Created), result.Skipped, result.Failed)
}
