package markdown

import (
	"bytes"

	"github.com/rotisserie/eris"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// Renderer converts wiki markdown into HTML using goldmark. The renderer is
// stateless, so a single instance can be shared across requests.
type Renderer struct {
	engine goldmark.Markdown
}

// newEngine builds the goldmark instance shared by the renderer and the
// fence scanner, so fence detection and rendering always agree on what is
// code.
func newEngine() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)
}

// NewRenderer constructs a renderer with GFM extensions enabled. Raw HTML is
// emitted as-is; the sanitizer runs on the renderer's output before anything
// reaches a browser.
func NewRenderer() *Renderer {
	return &Renderer{engine: newEngine()}
}

// Render converts markdown text into HTML.
func (r *Renderer) Render(text string) (string, error) {
	var buf bytes.Buffer
	if err := r.engine.Convert([]byte(text), &buf); err != nil {
		return "", eris.Wrap(err, "rendering markdown")
	}

	return buf.String(), nil
}
