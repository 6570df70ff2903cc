package source

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dgallion1/wikipub/internal/storage"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// MarkdownRenderer handles Markdown files using goldmark. Output is XHTML so
// void elements are self-closed, and code blocks become code macros.
type MarkdownRenderer struct{}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(
		html.WithXHTML(),
		renderer.WithNodeRenderers(util.Prioritized(&codeMacroRenderer{}, 100)),
	),
)

func (r *MarkdownRenderer) Render(rd io.Reader, filename string) (*Page, error) {
	src, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := markdown.Convert(src, &buf); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}
	body := buf.String()
	// The body goes to the wiki as-is; make sure it is well formed first.
	if _, err := storage.Parse(body); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}
	return &Page{Title: trimExt(filename, ".md", ".markdown"), Body: body}, nil
}

// codeMacroRenderer replaces goldmark's <pre><code> output with code macros.
type codeMacroRenderer struct{}

func (r *codeMacroRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderCode)
	reg.Register(ast.KindCodeBlock, r.renderCode)
}

func (r *codeMacroRenderer) renderCode(w util.BufWriter, src []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	var language string
	if fenced, ok := node.(*ast.FencedCodeBlock); ok {
		language = string(fenced.Language(src))
	}
	var body bytes.Buffer
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		body.Write(line.Value(src))
	}

	if _, err := w.WriteString(serializeNode(codeMacro(language, body.String()))); err != nil {
		return ast.WalkStop, err
	}
	if err := w.WriteByte('\n'); err != nil {
		return ast.WalkStop, err
	}
	return ast.WalkSkipChildren, nil
}
