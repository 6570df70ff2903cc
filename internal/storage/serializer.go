package storage

import (
	"strings"

	"github.com/dgallion1/wikipub/internal/doctree"
	"github.com/dgallion1/wikipub/internal/entity"
)

// Serialize renders the tree back into storage-format text. No whitespace is
// added or removed.
func Serialize(t *doctree.Tree) string {
	var sb strings.Builder
	for _, c := range t.Root.Children {
		writeNode(&sb, c)
	}
	return sb.String()
}

func writeNode(sb *strings.Builder, n *doctree.Node) {
	switch n.Kind {
	case doctree.TextNode:
		if n.Raw != "" {
			sb.WriteString(n.Raw)
		} else {
			sb.WriteString(entity.Encode(n.Text))
		}
	case doctree.CDATANode:
		// Macro bodies are opaque and never re-encoded.
		sb.WriteString(cdataOpen)
		sb.WriteString(n.Text)
		sb.WriteString(cdataClose)
	case doctree.CommentNode, doctree.DirectiveNode:
		sb.WriteString(n.Raw)
	case doctree.ElementNode:
		writeElement(sb, n)
	}
}

func writeElement(sb *strings.Builder, n *doctree.Node) {
	if n.Raw != "" {
		sb.WriteString(n.Raw)
	} else {
		sb.WriteByte('<')
		sb.WriteString(n.Tag)
		for _, a := range n.Attrs {
			sb.WriteByte(' ')
			sb.WriteString(a.Name)
			sb.WriteString(`="`)
			sb.WriteString(entity.EncodeAttr(a.Value))
			sb.WriteByte('"')
		}
		if n.Void {
			sb.WriteString(" />")
		} else {
			sb.WriteByte('>')
		}
	}
	if n.Void {
		// Only set when the source closed a void tag explicitly.
		sb.WriteString(n.RawEnd)
		return
	}
	for _, c := range n.Children {
		writeNode(sb, c)
	}
	if n.RawEnd != "" {
		sb.WriteString(n.RawEnd)
	} else {
		sb.WriteString("</")
		sb.WriteString(n.Tag)
		sb.WriteByte('>')
	}
}
