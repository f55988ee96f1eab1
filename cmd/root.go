// Package cmd provides the command-line interface for todotagger.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/todotagger/internal/config"
	"github.com/danielolaszy/todotagger/internal/logging"
	"github.com/danielolaszy/todotagger/internal/scanner"
	"github.com/danielolaszy/todotagger/pkg/models"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "todotagger",
	Short: "todotagger finds TODO comments and reports them by priority",
	Long: `todotagger walks a source tree, extracts TODO comments, classifies each one
as critical, high, medium, low or normal and writes console, Markdown, JSON
and HTML reports. It can optionally estimate the effort of every TODO with an
LLM and file TODOs as GitHub issues or JIRA tickets.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if logLevel != "" {
			logging.SetupLogger(os.Stderr, logging.LogLevel(logLevel))
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext is Execute with a context that commands observe for
// cancellation.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./todo_config.{yaml,json,toml})")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error (default $LOG_LEVEL or warn)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(githubCmd)
	rootCmd.AddCommand(jiraCmd)
	rootCmd.AddCommand(configCmd)
}

// scanRoot returns the directory argument or the working directory.
func scanRoot(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return "."
}

// parsePriorities accepts repeated or comma separated tier names.
func parsePriorities(values []string) ([]models.Priority, error) {
	var out []models.Priority
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			p, err := models.ParsePriority(part)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
	}
	return out, nil
}

// collectTodos scans root with cfg and keeps only the requested tiers.
func collectTodos(ctx context.Context, cfg *config.Config, root string, workers int, priorities []models.Priority) ([]models.Todo, error) {
	var opts []scanner.Option
	if workers > 0 {
		opts = append(opts, scanner.WithWorkers(workers))
	}

	s, err := scanner.New(cfg.Scan, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid scan configuration: %w", err)
	}

	todos, err := s.ScanDirectory(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	return scanner.FilterByPriority(todos, priorities...), nil
}
