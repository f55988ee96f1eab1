package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/todotagger/internal/config"
	"github.com/danielolaszy/todotagger/internal/github"
	"github.com/danielolaszy/todotagger/internal/logging"
	"github.com/danielolaszy/todotagger/internal/publish"
)

var (
	githubRepository string
	githubLabel      string
	githubDryRun     bool
	githubPriorities []string
)

var githubCmd = &cobra.Command{
	Use:   "github [directory]",
	Short: "File TODO comments as GitHub issues",
	Long: `Scan a directory and open one GitHub issue per TODO comment.

Each issue body ends with a fingerprint of the TODO's file and text. Issues
carrying the label (open or closed) are read first, and TODOs whose
fingerprint is already present are skipped, so the command can run
repeatedly. Moving a TODO to another line does not file it again.

Requires GITHUB_TOKEN; set GITHUB_DOMAIN for GitHub Enterprise.

Example:
  todotagger github ./src -r owner/repo --priority critical,high --dry-run`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if githubRepository == "" {
			return fmt.Errorf("repository flag is required")
		}

		cfg := config.LoadConfig(cfgFile)
		priorities, err := parsePriorities(githubPriorities)
		if err != nil {
			return err
		}

		todos, err := collectTodos(cmd.Context(), cfg, scanRoot(args), 0, priorities)
		if err != nil {
			return err
		}

		var tracker publish.Tracker
		if githubDryRun && cfg.GitHub.Token == "" {
			tracker = offlineTracker{name: "github " + githubRepository}
		} else {
			if err := config.ValidateGitHubConfig(cfg); err != nil {
				return err
			}
			client, err := github.NewClient(cmd.Context(), cfg.GitHub)
			if err != nil {
				return fmt.Errorf("failed to initialize GitHub client: %w", err)
			}
			tracker = client.Tracker(githubRepository, githubLabel)
		}

		result, err := publish.Run(cmd.Context(), tracker, todos, githubDryRun)
		if err != nil {
			return err
		}

		logging.Info("github publishing complete",
			"repository", githubRepository,
			"created", len(result.Created),
			"skipped", result.Skipped,
			"failed", result.Failed)
		printResult(cmd.OutOrStdout(), result, githubDryRun)

		if result.Failed > 0 {
			return fmt.Errorf("failed to create %d issue(s)", result.Failed)
		}
		return nil
	},
}

func init() {
	githubCmd.Flags().StringVarP(&githubRepository, "repository", "r", "", "GitHub repository (e.g. 'owner/repo')")
	githubCmd.Flags().StringVarP(&githubLabel, "label", "l", "todo", "label added to every created issue")
	githubCmd.Flags().BoolVar(&githubDryRun, "dry-run", false, "list the issues that would be created without creating them")
	githubCmd.Flags().StringSliceVarP(&githubPriorities, "priority", "p", nil, "only file these priorities, e.g. critical,high")
}
