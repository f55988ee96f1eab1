package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/todotagger/internal/analyzer"
	"github.com/danielolaszy/todotagger/internal/config"
	"github.com/danielolaszy/todotagger/internal/logging"
	"github.com/danielolaszy/todotagger/internal/report"
)

// Output formats accepted by --format.
const (
	formatConsole  = "console"
	formatMarkdown = "markdown"
	formatJSON     = "json"
	formatHTML     = "html"
	formatPreview  = "preview"
	formatAll      = "all"
)

var knownFormats = []string{formatConsole, formatMarkdown, formatJSON, formatHTML, formatPreview}

const previewWidth = 100

var (
	scanFormats    []string
	scanOutputDir  string
	scanPriorities []string
	scanAnalyze    bool
	scanDemo       bool
	scanWorkers    int
)

var scanCmd = &cobra.Command{
	Use:   "scan [directory]",
	Short: "Scan a directory for TODO comments and write reports",
	Long: `Scan a directory tree for TODO comments and report them grouped by priority.

Console and preview output go to stdout. Markdown, JSON and HTML reports are
written to files in the output directory, named by the output section of the
configuration (todo_report.md, todo_report.json, todo_report.html).

With --analyze every TODO is sent, with the surrounding code, to the
configured LLM provider for a complexity and effort estimate, and a work plan
is added to the reports. --demo produces the same output from a local
simulation without calling any API.

Example:
  todotagger scan ./src --format console,json --priority critical,high
  todotagger scan . --format all --output-dir reports --demo`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := scanRoot(args)
		cfg := config.LoadConfig(cfgFile)

		formats, err := parseFormats(scanFormats)
		if err != nil {
			return err
		}
		priorities, err := parsePriorities(scanPriorities)
		if err != nil {
			return err
		}

		logging.Info("starting scan",
			"root", root,
			"formats", formats,
			"priorities", priorities)

		todos, err := collectTodos(cmd.Context(), cfg, root, scanWorkers, priorities)
		if err != nil {
			return err
		}

		doc := report.Document{Todos: todos, GeneratedAt: time.Now()}

		if scanAnalyze || scanDemo {
			aiCfg := cfg.AI
			if scanDemo {
				aiCfg.Provider = config.ProviderDemo
				aiCfg.Delay = 0
			}

			a, err := analyzer.New(aiCfg)
			if err != nil {
				logging.Warn("analysis disabled", "provider", aiCfg.Provider, "error", err)
			} else {
				doc.Todos, doc.Analysis = analyzer.Run(cmd.Context(), a, todos, analyzer.Options{
					Delay:        aiCfg.Delay,
					ContextLines: aiCfg.ContextLines,
				})
			}
		}

		outputDir := cfg.Output.Dir
		if scanOutputDir != "" {
			outputDir = scanOutputDir
		}

		return writeReports(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg.Output, outputDir, formats, doc)
	},
}

func init() {
	scanCmd.Flags().StringSliceVarP(&scanFormats, "format", "f", nil,
		"output formats: console, markdown, json, html, preview or all (default console,markdown)")
	scanCmd.Flags().StringVarP(&scanOutputDir, "output-dir", "o", "", "directory for report files (default from config, usually .)")
	scanCmd.Flags().StringSliceVarP(&scanPriorities, "priority", "p", nil, "only report these priorities, e.g. critical,high")
	scanCmd.Flags().BoolVar(&scanAnalyze, "analyze", false, "estimate each TODO with the configured LLM provider")
	scanCmd.Flags().BoolVar(&scanDemo, "demo", false, "estimate each TODO with the offline simulation")
	scanCmd.Flags().IntVarP(&scanWorkers, "workers", "w", 0, "files scanned concurrently (default from config)")
}

// parseFormats normalizes --format values. "all" expands to every file
// format plus console; duplicates are dropped.
func parseFormats(values []string) ([]string, error) {
	var out []string
	add := func(f string) {
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}

	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			f := strings.ToLower(strings.TrimSpace(part))
			switch {
			case f == "":
			case f == formatAll:
				for _, all := range []string{formatConsole, formatMarkdown, formatJSON, formatHTML} {
					add(all)
				}
			case slices.Contains(knownFormats, f):
				add(f)
			default:
				return nil, fmt.Errorf("unknown format %q, expected one of %v or %q", part, knownFormats, formatAll)
			}
		}
	}

	if len(out) == 0 {
		out = []string{formatConsole, formatMarkdown}
	}
	return out, nil
}

// writeReports renders doc in every requested format. Terminal formats go
// to stdout; file formats are written under dir and announced on stderr.
func writeReports(stdout, stderr io.Writer, out config.OutputConfig, dir string, formats []string, doc report.Document) error {
	color := report.ShouldColor(stdout)

	for _, format := range formats {
		var (
			file   string
			render report.Renderer
		)

		switch format {
		case formatConsole:
			if err := report.Console(color)(stdout, doc); err != nil {
				return fmt.Errorf("failed to print report: %w", err)
			}
			continue
		case formatPreview:
			if err := report.Preview(color, previewWidth)(stdout, doc); err != nil {
				return fmt.Errorf("failed to render preview: %w", err)
			}
			continue
		case formatMarkdown:
			file, render = out.MarkdownFile, report.Markdown
		case formatJSON:
			file, render = out.JSONFile, report.JSON
		case formatHTML:
			file, render = out.HTMLFile, report.HTML
		}

		path := filepath.Join(dir, file)
		if err := report.WriteFile(path, doc, render); err != nil {
			return err
		}
		logging.Info("report written", "format", format, "path", path)
		fmt.Fprintf(stderr, "%s report written to %s\n", format, path)
	}

	return nil
}
