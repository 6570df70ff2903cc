package doctree

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the closed set of node variants in a storage-format document.
type Kind int

const (
	ElementNode Kind = iota
	TextNode
	CDATANode     // <![CDATA[...]]>, body kept verbatim in Text
	CommentNode   // <!-- ... -->, kept verbatim in Raw
	DirectiveNode // <?...?> and <!...>, kept verbatim in Raw
)

func (k Kind) String() string {
	switch k {
	case ElementNode:
		return "element"
	case TextNode:
		return "text"
	case CDATANode:
		return "cdata"
	case CommentNode:
		return "comment"
	case DirectiveNode:
		return "directive"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// MarkerTag is the element the wiki uses to anchor an inline comment.
const MarkerTag = "ac:inline-comment-marker"

// MarkerRefAttr carries the comment's ref id on a MarkerTag element.
const MarkerRefAttr = "ac:ref"

// Attr is one attribute of an element, value decoded.
type Attr struct {
	Name  string
	Value string
}

// Node is one element or character run in a parsed document.
type Node struct {
	Kind     Kind
	Tag      string // element name with namespace prefix, e.g. "ac:structured-macro"
	Attrs    []Attr // source order
	Children []*Node
	Text     string // decoded content for TextNode, verbatim body for CDATANode

	// Void elements have no children and no end tag.
	Void bool

	// Raw is the source text of a TextNode, CommentNode or DirectiveNode, or
	// the start tag of an ElementNode. RawEnd is an element's end tag. Both are
	// empty for nodes built in memory, which are serialized from the fields
	// above instead.
	Raw    string
	RawEnd string

	// MarkerRefs lists the comment ref ids anchored to this node by marker
	// transfer.
	MarkerRefs []string
}

// NewElement returns an element node with the given attributes.
func NewElement(tag string, attrs ...Attr) *Node {
	return &Node{Kind: ElementNode, Tag: tag, Attrs: attrs}
}

// NewText returns a text node holding decoded text.
func NewText(text string) *Node {
	return &Node{Kind: TextNode, Text: text}
}

// NewMarker returns an empty comment marker element for refID.
func NewMarker(refID string) *Node {
	return NewElement(MarkerTag, Attr{Name: MarkerRefAttr, Value: refID})
}

// Attr returns the value of the named attribute.
func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// SetAttr sets or appends an attribute. The source start tag is discarded so
// the element is re-serialized from its attributes.
func (n *Node) SetAttr(name, value string) {
	n.Raw = ""
	for i := range n.Attrs {
		if n.Attrs[i].Name == name {
			n.Attrs[i].Value = value
			return
		}
	}
	n.Attrs = append(n.Attrs, Attr{Name: name, Value: value})
}

// IsMarker reports whether n is a comment marker element.
func (n *Node) IsMarker() bool {
	return n.Kind == ElementNode && n.Tag == MarkerTag
}

// MarkerRef returns the ref id of a marker element.
func (n *Node) MarkerRef() (string, bool) {
	if !n.IsMarker() {
		return "", false
	}
	return n.Attr(MarkerRefAttr)
}

// Path addresses a node by child indices from the root.
type Path []int

func (p Path) String() string {
	if len(p) == 0 {
		return "/"
	}
	parts := make([]string, len(p))
	for i, idx := range p {
		parts[i] = strconv.Itoa(idx)
	}
	return "/" + strings.Join(parts, "/")
}

// Clone returns a copy that does not share the backing array.
func (p Path) Clone() Path {
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// Equal reports whether two paths address the same position.
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// Tree is a parsed storage-format document. Root is a synthetic element with
// an empty tag whose children are the document's top-level nodes.
//
// Signatures are memoized per tree. Code that mutates nodes directly must call
// Invalidate afterwards.
type Tree struct {
	Root *Node

	texts map[*Node]string
	sigs  map[*Node]string
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{Root: &Node{Kind: ElementNode}}
}

// Invalidate drops memoized signatures.
func (t *Tree) Invalidate() {
	t.texts = nil
	t.sigs = nil
}

// At returns the node at path p, or nil if the path leaves the tree.
func (t *Tree) At(p Path) *Node {
	n := t.Root
	for _, idx := range p {
		if idx < 0 || idx >= len(n.Children) {
			return nil
		}
		n = n.Children[idx]
	}
	return n
}

// Visit is called for every node in document order with its ancestors
// (root first) and path. Returning false skips the node's children.
type Visit func(n *Node, ancestors []*Node, path Path) bool

// Walk traverses the tree in document order, excluding the root itself.
func (t *Tree) Walk(fn Visit) {
	var walk func(n *Node, ancestors []*Node, path Path)
	walk = func(n *Node, ancestors []*Node, path Path) {
		ancestors = append(ancestors, n)
		for i, c := range n.Children {
			cp := append(path, i)
			if fn(c, ancestors, cp) {
				walk(c, ancestors, cp)
			}
		}
	}
	walk(t.Root, nil, nil)
}

// Count returns the number of nodes below the root.
func (t *Tree) Count() int {
	n := 0
	t.Walk(func(*Node, []*Node, Path) bool {
		n++
		return true
	})
	return n
}

func (t *Tree) String() string {
	return fmt.Sprintf("doctree(%d nodes)", t.Count())
}
