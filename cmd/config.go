package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/todotagger/internal/config"
	"github.com/danielolaszy/todotagger/internal/logging"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and create configuration files",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration as YAML",
	Long: `Write the built-in configuration to a YAML file (default todo_config.yaml)
as a starting point for customization. Use "-" to print to stdout.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigName + ".yaml"
		if len(args) > 0 {
			path = args[0]
		}

		if path == "-" {
			return config.WriteYAML(cmd.OutOrStdout(), config.Default())
		}

		flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
		if configForce {
			flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		}
		f, err := os.OpenFile(path, flags, 0o644)
		if err != nil {
			if os.IsExist(err) {
				return fmt.Errorf("%s already exists, use --force to overwrite", path)
			}
			return fmt.Errorf("failed to create %s: %w", path, err)
		}

		if err := config.WriteYAML(f, config.Default()); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "configuration written to %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration after merging defaults, the config file and
environment variables. Secrets are masked.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := *config.LoadConfig(cfgFile)
		cfg.AI.APIKey = maskIfSet(cfg.AI.APIKey)
		cfg.GitHub.Token = maskIfSet(cfg.GitHub.Token)
		cfg.Jira.Token = maskIfSet(cfg.Jira.Token)
		return config.WriteYAML(cmd.OutOrStdout(), cfg)
	},
}

func maskIfSet(s string) string {
	if s == "" {
		return ""
	}
	return logging.MaskSensitive(s)
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
