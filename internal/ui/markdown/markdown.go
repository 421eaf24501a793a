// Package markdown renders assistant answers for the terminal.
package markdown

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// noMarginStyle removes document margins so answers line up with the role
// labels.
const noMarginStyle = `{
	"document": {
		"margin": 0,
		"block_prefix": "",
		"block_suffix": ""
	}
}`

// Renderer wraps glamour with sleuth's configuration.
type Renderer struct {
	renderer *glamour.TermRenderer
	width    int
	style    string
}

// New creates a renderer wrapping at width. style is a glamour standard
// style name ("dark", "light", "notty", ...) or "auto" for detection.
func New(width int, style string) (*Renderer, error) {
	style = strings.ToLower(strings.TrimSpace(style))
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "" || style == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	opts = append(opts, glamour.WithStylesFromJSONBytes([]byte(noMarginStyle)))

	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, err
	}
	return &Renderer{renderer: r, width: width, style: style}, nil
}

// Width returns the configured word wrap width.
func (r *Renderer) Width() int {
	return r.width
}

// Resize returns a renderer for a new width, or r when unchanged.
func (r *Renderer) Resize(width int) (*Renderer, error) {
	if width == r.width {
		return r, nil
	}
	return New(width, r.style)
}

// Render transforms markdown to styled terminal output without trailing
// blank lines.
func (r *Renderer) Render(markdown string) (string, error) {
	out, err := r.renderer.Render(markdown)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n "), nil
}
