package doctree

import (
	"fmt"
	"strings"

	"github.com/disiqueira/gotree/v3"
)

const describeTextLimit = 40

// Describe renders the tree as an indented outline for debugging.
func Describe(t *Tree) string {
	root := gotree.New("document")
	var add func(parent gotree.Tree, n *Node)
	add = func(parent gotree.Tree, n *Node) {
		branch := parent.Add(label(n))
		for _, c := range n.Children {
			add(branch, c)
		}
	}
	for _, c := range t.Root.Children {
		add(root, c)
	}
	return root.Print()
}

func label(n *Node) string {
	switch n.Kind {
	case ElementNode:
		var sb strings.Builder
		sb.WriteString(n.Tag)
		for _, a := range n.Attrs {
			fmt.Fprintf(&sb, " %s=%q", a.Name, a.Value)
		}
		if len(n.MarkerRefs) > 0 {
			fmt.Fprintf(&sb, " [markers: %s]", strings.Join(n.MarkerRefs, ","))
		}
		return sb.String()
	case TextNode:
		return fmt.Sprintf("%q", clip(n.Text))
	case CDATANode:
		return fmt.Sprintf("CDATA(%d bytes)", len(n.Text))
	default:
		return n.Kind.String()
	}
}

func clip(s string) string {
	r := []rune(s)
	if len(r) <= describeTextLimit {
		return s
	}
	return string(r[:describeTextLimit]) + "..."
}
