package report

import (
	"bytes"
	"fmt"
	"html"
	"io"

	"github.com/charmbracelet/glamour"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var htmlConverter = goldmark.New(goldmark.WithExtensions(extension.GFM))

// HTML converts the Markdown report into a standalone page.
func HTML(w io.Writer, doc Document) error {
	var md bytes.Buffer
	if err := Markdown(&md, doc); err != nil {
		return err
	}

	var body bytes.Buffer
	if err := htmlConverter.Convert(md.Bytes(), &body); err != nil {
		return fmt.Errorf("failed to convert markdown: %w", err)
	}

	_, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: sans-serif; max-width: 60em; margin: 2em auto; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 0.3em 0.8em; }
pre { background: #f6f8fa; padding: 0.5em; }
</style>
</head>
<body>
%s</body>
</html>
`, html.EscapeString("TODO Report"), body.String())
	return err
}

// Preview renders the Markdown report for a terminal. Styling is dropped
// when useColor is false.
func Preview(useColor bool, width int) Renderer {
	return func(w io.Writer, doc Document) error {
		var md bytes.Buffer
		if err := Markdown(&md, doc); err != nil {
			return err
		}

		style := "notty"
		if useColor {
			style = "dark"
		}
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStylePath(style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return fmt.Errorf("failed to create markdown renderer: %w", err)
		}

		out, err := renderer.Render(md.String())
		if err != nil {
			return fmt.Errorf("failed to render markdown: %w", err)
		}
		_, err = io.WriteString(w, out)
		return err
	}
}
