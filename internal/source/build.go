package source

import (
	"strings"

	"github.com/dgallion1/wikipub/internal/doctree"
	"github.com/dgallion1/wikipub/internal/storage"
)

// pageBuilder accumulates the top-level blocks of a page.
type pageBuilder struct {
	tree *doctree.Tree
}

func newPageBuilder() *pageBuilder {
	return &pageBuilder{tree: doctree.New()}
}

func (b *pageBuilder) add(n *doctree.Node) {
	b.tree.Root.Children = append(b.tree.Root.Children, n)
}

func (b *pageBuilder) empty() bool {
	return len(b.tree.Root.Children) == 0
}

// block appends <tag>text</tag>.
func (b *pageBuilder) block(tag, text string) {
	b.add(textElement(tag, text))
}

// paragraph appends a <p> whose lines are separated by <br />.
func (b *pageBuilder) paragraph(lines []string) {
	p := doctree.NewElement("p")
	for i, line := range lines {
		if i > 0 {
			p.Children = append(p.Children, voidElement("br"))
		}
		p.Children = append(p.Children, doctree.NewText(line))
	}
	b.add(p)
}

func (b *pageBuilder) rule() {
	b.add(voidElement("hr"))
}

func (b *pageBuilder) page(title string) *Page {
	return &Page{Title: title, Body: storage.Serialize(b.tree)}
}

func textElement(tag, text string) *doctree.Node {
	el := doctree.NewElement(tag)
	if text != "" {
		el.Children = []*doctree.Node{doctree.NewText(text)}
	}
	return el
}

func voidElement(tag string) *doctree.Node {
	el := doctree.NewElement(tag)
	el.Void = true
	return el
}

// codeMacro builds a code block macro. The body is stored as CDATA; any "]]>"
// inside it is split across sections.
func codeMacro(language, body string) *doctree.Node {
	macro := doctree.NewElement("ac:structured-macro",
		doctree.Attr{Name: "ac:name", Value: "code"},
		doctree.Attr{Name: "ac:schema-version", Value: "1"},
	)
	if language != "" {
		macro.Children = append(macro.Children, textElement("ac:parameter", language))
		macro.Children[0].Attrs = []doctree.Attr{{Name: "ac:name", Value: "language"}}
	}
	plain := doctree.NewElement("ac:plain-text-body")
	parts := strings.Split(body, "]]>")
	for i, part := range parts {
		if i > 0 {
			part = ">" + part
		}
		if i < len(parts)-1 {
			part += "]]"
		}
		plain.Children = append(plain.Children, &doctree.Node{Kind: doctree.CDATANode, Text: part})
	}
	macro.Children = append(macro.Children, plain)
	return macro
}

// serializeNode renders a single detached node.
func serializeNode(n *doctree.Node) string {
	t := doctree.New()
	t.Root.Children = []*doctree.Node{n}
	return storage.Serialize(t)
}

// splitParagraphs groups non-blank lines into paragraphs. Lines holding only
// whitespace count as blank.
func splitParagraphs(text string) [][]string {
	var paragraphs [][]string
	var current []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			if len(current) > 0 {
				paragraphs = append(paragraphs, current)
				current = nil
			}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		paragraphs = append(paragraphs, current)
	}
	return paragraphs
}
