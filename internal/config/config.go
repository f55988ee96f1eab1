// Package config provides centralized configuration management for the application.
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/danielolaszy/todotagger/internal/logging"
)

// Config holds all configuration parameters for the application.
type Config struct {
	Scan   ScanConfig   `mapstructure:",squash" yaml:",inline"`
	AI     AIConfig     `mapstructure:"ai_config" yaml:"ai_config"`
	GitHub GitHubConfig `mapstructure:"github" yaml:"github"`
	Jira   JiraConfig   `mapstructure:"jira" yaml:"jira"`
	Output OutputConfig `mapstructure:"output" yaml:"output"`
}

// ScanConfig controls which files are scanned and how TODO lines are matched.
type ScanConfig struct {
	// FilePatterns are globs selecting scan candidates, e.g. "*.py".
	FilePatterns []string `mapstructure:"file_patterns" yaml:"file_patterns"`
	// ExcludeDirs are doublestar globs; matching paths are never opened.
	ExcludeDirs []string `mapstructure:"exclude_dirs" yaml:"exclude_dirs"`
	// CommentPatterns are checked in order; the "default" entry is the fallback.
	CommentPatterns []CommentPattern `mapstructure:"comment_patterns" yaml:"comment_patterns"`
	// PriorityPatterns maps a tier name to the regexes that select it.
	PriorityPatterns map[string][]string `mapstructure:"priority_patterns" yaml:"priority_patterns"`
	// Workers bounds the number of files scanned concurrently.
	Workers int `mapstructure:"workers" yaml:"workers"`
}

// CommentPattern pairs a pipe-delimited extension list with a TODO regex.
// The regex must have two capture groups: assignee and text.
type CommentPattern struct {
	Extensions string `mapstructure:"extensions" yaml:"extensions"`
	Pattern    string `mapstructure:"pattern" yaml:"pattern"`
}

// AIConfig holds settings for the optional analysis side-path.
type AIConfig struct {
	Provider     string        `mapstructure:"provider" yaml:"provider"`
	APIKey       string        `mapstructure:"api_key" yaml:"api_key"`
	APIBase      string        `mapstructure:"api_base" yaml:"api_base"`
	APIVersion   string        `mapstructure:"api_version" yaml:"api_version"`
	Model        string        `mapstructure:"model" yaml:"model"`
	MaxTokens    int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature  float64       `mapstructure:"temperature" yaml:"temperature"`
	Proxy        string        `mapstructure:"proxy" yaml:"proxy"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Delay        time.Duration `mapstructure:"delay" yaml:"delay"`
	ContextLines int           `mapstructure:"context_lines" yaml:"context_lines"`
}

// GitHubConfig holds GitHub specific configuration.
type GitHubConfig struct {
	Token  string `mapstructure:"token" yaml:"token"`
	Domain string `mapstructure:"domain" yaml:"domain"`
}

// JiraConfig holds JIRA specific configuration.
type JiraConfig struct {
	URL      string `mapstructure:"url" yaml:"url"`
	Username string `mapstructure:"username" yaml:"username"`
	Token    string `mapstructure:"token" yaml:"token"`
}

// OutputConfig names the report files written by the scan command.
type OutputConfig struct {
	Dir          string `mapstructure:"dir" yaml:"dir"`
	MarkdownFile string `mapstructure:"markdown_file" yaml:"markdown_file"`
	JSONFile     string `mapstructure:"json_file" yaml:"json_file"`
	HTMLFile     string `mapstructure:"html_file" yaml:"html_file"`
}

// Supported analysis providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAzure     = "azure"
	ProviderQwenLocal = "qwen_local"
	ProviderDemo      = "demo"
)

// DefaultConfigName is the base name searched for in the working directory.
const DefaultConfigName = "todo_config"

var envBindings = map[string]string{
	"ai_config.provider":    "TODO_AI_PROVIDER",
	"ai_config.api_key":     "TODO_AI_API_KEY",
	"ai_config.api_base":    "TODO_AI_API_BASE",
	"ai_config.api_version": "TODO_AI_API_VERSION",
	"ai_config.model":       "TODO_AI_MODEL",
	"ai_config.max_tokens":  "TODO_AI_MAX_TOKENS",
	"ai_config.temperature": "TODO_AI_TEMPERATURE",
	"ai_config.proxy":       "TODO_AI_PROXY",
	"github.token":          "GITHUB_TOKEN",
	"github.domain":         "GITHUB_DOMAIN",
	"jira.url":              "JIRA_URL",
	"jira.username":         "JIRA_USERNAME",
	"jira.token":            "JIRA_TOKEN",
}

// Default returns a freshly allocated copy of the built-in configuration.
// Callers may modify the result without affecting later calls.
func Default() Config {
	return Config{
		Scan: ScanConfig{
			FilePatterns: []string{
				"*.py", "*.js", "*.jsx", "*.ts", "*.tsx", "*.go", "*.java",
				"*.c", "*.h", "*.cpp", "*.hpp", "*.cs", "*.rb", "*.php",
				"*.rs", "*.swift", "*.kt", "*.sh", "*.yaml", "*.yml",
				"*.html", "*.css", "*.scss", "*.vue", "*.md",
			},
			ExcludeDirs: []string{
				"**/.git/**", "**/node_modules/**", "**/vendor/**",
				"**/venv/**", "**/.venv/**", "**/__pycache__/**",
				"**/dist/**", "**/build/**", "**/.idea/**", "**/.vscode/**",
			},
			CommentPatterns: []CommentPattern{
				{
					Extensions: "py|rb|sh|yaml|yml|toml|pl|r",
					Pattern:    `#\s*TODO(?:\(([^)]*)\))?:\s*(.*)`,
				},
				{
					Extensions: "js|jsx|ts|tsx|go|java|c|h|cpp|hpp|cs|php|rs|swift|kt|css|scss",
					Pattern:    `(?://|/\*)\s*TODO(?:\(([^)]*)\))?:\s*(.*?)\s*(?:\*/)?$`,
				},
				{
					Extensions: "html|htm|xml|vue|md",
					Pattern:    `<!--\s*TODO(?:\(([^)]*)\))?:\s*(.*?)\s*(?:-->)?$`,
				},
				{
					Extensions: "default",
					Pattern:    DefaultCommentPattern,
				},
			},
			PriorityPatterns: map[string][]string{
				"critical": {`!!!`, `\bCRITICAL\b`, `\bcritical\b`, `\bURGENT\b`, `\burgent\b`, `\bFIXME\b`},
				"high":     {`!!`, `\bHIGH\b`, `\bhigh\b`, `\bIMPORTANT\b`, `\bimportant\b`},
				"medium":   {`!`, `\bMEDIUM\b`, `\bmedium\b`},
				"low":      {`\bLOW\b`, `\blow\b`, `\bMINOR\b`, `\bminor\b`, `\bsomeday\b`},
			},
			Workers: 4,
		},
		AI: AIConfig{
			Provider:     ProviderOpenAI,
			APIBase:      "https://api.openai.com/v1",
			Model:        "gpt-3.5-turbo",
			MaxTokens:    1000,
			Temperature:  0.3,
			Timeout:      60 * time.Second,
			Delay:        time.Second,
			ContextLines: 30,
		},
		GitHub: GitHubConfig{
			Domain: "github.com",
		},
		Output: OutputConfig{
			Dir:          ".",
			MarkdownFile: "todo_report.md",
			JSONFile:     "todo_report.json",
			HTMLFile:     "todo_report.html",
		},
	}
}

// DefaultCommentPattern recognizes "#", "//" and "<!-- -->" markers.
const DefaultCommentPattern = `(?:#|//|<!--)\s*TODO(?:\(([^)]*)\))?:\s*(.*?)\s*(?:-->)?$`

// LoadConfig builds the effective configuration: defaults, then the config
// file, then environment variables. When path is empty todo_config.* is
// looked up in the working directory. An unreadable or malformed file is
// logged and ignored so the scan can still run on defaults.
func LoadConfig(path string) *Config {
	v := viper.New()
	for key, env := range envBindings {
		// BindEnv only fails when called without a key.
		_ = v.BindEnv(key, env)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			logging.Warn("failed to load config file, using defaults",
				"path", path,
				"error", err)
		}
	} else {
		logging.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	var override Config
	decoded := true
	if err := v.Unmarshal(&override); err != nil {
		logging.Warn("failed to decode configuration, using defaults",
			"error", err)
		override = Config{}
		decoded = false
	}

	merged := Merge(Default(), override)

	// Zero is a valid temperature and delay; Merge cannot tell it from unset.
	if decoded && v.IsSet("ai_config.temperature") {
		merged.AI.Temperature = override.AI.Temperature
	}
	if decoded && v.IsSet("ai_config.delay") {
		merged.AI.Delay = override.AI.Delay
	}
	logging.Debug("effective configuration",
		"file_patterns", len(merged.Scan.FilePatterns),
		"exclude_dirs", len(merged.Scan.ExcludeDirs),
		"ai_provider", merged.AI.Provider,
		"ai_api_key", logging.MaskSensitive(merged.AI.APIKey))

	return &merged
}

// Merge returns a new Config where every non-zero field of override replaces
// the corresponding field of base. Neither argument is modified. Priority
// patterns merge per tier; all other lists are replaced wholesale. LoadConfig
// additionally applies explicit zero temperature and delay values.
func Merge(base, override Config) Config {
	out := base

	out.Scan.FilePatterns = pickStrings(base.Scan.FilePatterns, override.Scan.FilePatterns)
	out.Scan.ExcludeDirs = pickStrings(base.Scan.ExcludeDirs, override.Scan.ExcludeDirs)
	if len(override.Scan.CommentPatterns) > 0 {
		out.Scan.CommentPatterns = append([]CommentPattern(nil), override.Scan.CommentPatterns...)
	} else {
		out.Scan.CommentPatterns = append([]CommentPattern(nil), base.Scan.CommentPatterns...)
	}
	out.Scan.PriorityPatterns = make(map[string][]string, len(base.Scan.PriorityPatterns))
	for tier, patterns := range base.Scan.PriorityPatterns {
		out.Scan.PriorityPatterns[tier] = append([]string(nil), patterns...)
	}
	for tier, patterns := range override.Scan.PriorityPatterns {
		out.Scan.PriorityPatterns[strings.ToLower(tier)] = append([]string(nil), patterns...)
	}
	out.Scan.Workers = pickInt(base.Scan.Workers, override.Scan.Workers)

	out.AI.Provider = pick(base.AI.Provider, override.AI.Provider)
	out.AI.APIKey = pick(base.AI.APIKey, override.AI.APIKey)
	out.AI.APIBase = pick(base.AI.APIBase, override.AI.APIBase)
	out.AI.APIVersion = pick(base.AI.APIVersion, override.AI.APIVersion)
	out.AI.Model = pick(base.AI.Model, override.AI.Model)
	out.AI.MaxTokens = pickInt(base.AI.MaxTokens, override.AI.MaxTokens)
	if override.AI.Temperature != 0 {
		out.AI.Temperature = override.AI.Temperature
	}
	out.AI.Proxy = pick(base.AI.Proxy, override.AI.Proxy)
	if override.AI.Timeout != 0 {
		out.AI.Timeout = override.AI.Timeout
	}
	if override.AI.Delay != 0 {
		out.AI.Delay = override.AI.Delay
	}
	out.AI.ContextLines = pickInt(base.AI.ContextLines, override.AI.ContextLines)

	out.GitHub.Token = pick(base.GitHub.Token, override.GitHub.Token)
	out.GitHub.Domain = pick(base.GitHub.Domain, override.GitHub.Domain)

	out.Jira.URL = pick(base.Jira.URL, override.Jira.URL)
	out.Jira.Username = pick(base.Jira.Username, override.Jira.Username)
	out.Jira.Token = pick(base.Jira.Token, override.Jira.Token)

	out.Output.Dir = pick(base.Output.Dir, override.Output.Dir)
	out.Output.MarkdownFile = pick(base.Output.MarkdownFile, override.Output.MarkdownFile)
	out.Output.JSONFile = pick(base.Output.JSONFile, override.Output.JSONFile)
	out.Output.HTMLFile = pick(base.Output.HTMLFile, override.Output.HTMLFile)

	return out
}

func pick(base, override string) string {
	if override != "" {
		return override
	}
	return base
}

func pickInt(base, override int) int {
	if override != 0 {
		return override
	}
	return base
}

func pickStrings(base, override []string) []string {
	if len(override) > 0 {
		return append([]string(nil), override...)
	}
	return append([]string(nil), base...)
}

// WriteYAML encodes cfg as YAML. Secrets are written as-is, so callers
// exporting a loaded configuration should clear them first.
func WriteYAML(w io.Writer, cfg Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}

// ValidateAIConfig checks that the selected provider has what it needs.
func ValidateAIConfig(cfg AIConfig) error {
	var missingVars []string

	switch strings.ToLower(cfg.Provider) {
	case ProviderDemo:
		return nil
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			missingVars = append(missingVars, "TODO_AI_API_KEY")
		}
	case ProviderAzure:
		if cfg.APIKey == "" {
			missingVars = append(missingVars, "TODO_AI_API_KEY")
		}
		if cfg.APIVersion == "" {
			missingVars = append(missingVars, "TODO_AI_API_VERSION")
		}
	case ProviderQwenLocal:
		// Local deployments usually run without a key.
	default:
		return fmt.Errorf("unsupported ai provider %q", cfg.Provider)
	}

	if cfg.APIBase == "" {
		missingVars = append(missingVars, "TODO_AI_API_BASE")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}
	return nil
}

// ValidateGitHubConfig validates GitHub-specific configuration.
func ValidateGitHubConfig(config *Config) error {
	if config.GitHub.Token == "" {
		return fmt.Errorf("missing required environment variables: %v", []string{"GITHUB_TOKEN"})
	}
	return nil
}

// ValidateJiraConfig validates JIRA-specific configuration.
func ValidateJiraConfig(config *Config) error {
	var missingVars []string

	if config.Jira.URL == "" {
		missingVars = append(missingVars, "JIRA_URL")
	}
	if config.Jira.Username == "" {
		missingVars = append(missingVars, "JIRA_USERNAME")
	}
	if config.Jira.Token == "" {
		missingVars = append(missingVars, "JIRA_TOKEN")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	return nil
}
