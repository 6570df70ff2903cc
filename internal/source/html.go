package source

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/wikipub/internal/doctree"
	"golang.org/x/net/html"
)

// HTMLRenderer handles HTML files. The document body is copied element by
// element; scripts, styles and page chrome are dropped, and <pre><code>
// blocks become code macros.
type HTMLRenderer struct{}

// keptAttrs are the attributes carried over from HTML sources.
var keptAttrs = map[string]bool{
	"href":    true,
	"src":     true,
	"alt":     true,
	"title":   true,
	"colspan": true,
	"rowspan": true,
}

func (r *HTMLRenderer) Render(rd io.Reader, filename string) (*Page, error) {
	doc, err := html.Parse(rd)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	title := trimExt(filename, ".html", ".htm")
	if t := findTitle(doc); t != "" {
		title = t
	}

	b := newPageBuilder()
	root := findBody(doc)
	if root == nil {
		root = doc
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if n := convertHTML(c); n != nil {
			b.add(n)
		}
	}
	return b.page(title), nil
}

func convertHTML(n *html.Node) *doctree.Node {
	switch n.Type {
	case html.TextNode:
		return doctree.NewText(n.Data)
	case html.ElementNode:
	default:
		return nil
	}

	switch n.Data {
	case "script", "style", "nav", "footer", "header", "noscript", "template":
		return nil
	case "pre":
		if code := n.FirstChild; code != nil && code.NextSibling == nil &&
			code.Type == html.ElementNode && code.Data == "code" {
			return codeMacro(codeLanguage(code), textContent(code))
		}
	}

	el := doctree.NewElement(n.Data)
	for _, a := range n.Attr {
		if a.Namespace == "" && keptAttrs[a.Key] {
			el.Attrs = append(el.Attrs, doctree.Attr{Name: a.Key, Value: a.Val})
		}
	}
	if doctree.IsVoid(n.Data) {
		el.Void = true
		return el
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if child := convertHTML(c); child != nil {
			el.Children = append(el.Children, child)
		}
	}
	return el
}

// codeLanguage reads a "language-xxx" class as written by most highlighters.
func codeLanguage(n *html.Node) string {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, class := range strings.Fields(a.Val) {
			if lang, ok := strings.CutPrefix(class, "language-"); ok {
				return lang
			}
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return buf.String()
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return strings.TrimSpace(textContent(n))
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
