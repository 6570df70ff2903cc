package doctree

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// anchorTags are the block-level content elements a comment can be
// re-anchored to.
var anchorTags = map[string]bool{
	"p":          true,
	"h1":         true,
	"h2":         true,
	"h3":         true,
	"h4":         true,
	"h5":         true,
	"h6":         true,
	"li":         true,
	"td":         true,
	"th":         true,
	"blockquote": true,
	"pre":        true,
	"dt":         true,
	"dd":         true,
	"caption":    true,
}

// containerTags break text flow without being anchor targets themselves.
var containerTags = map[string]bool{
	"ul":                  true,
	"ol":                  true,
	"dl":                  true,
	"table":               true,
	"thead":               true,
	"tbody":               true,
	"tfoot":               true,
	"tr":                  true,
	"colgroup":            true,
	"div":                 true,
	"hr":                  true,
	"br":                  true,
	"ac:layout":           true,
	"ac:layout-section":   true,
	"ac:layout-cell":      true,
	"ac:rich-text-body":   true,
	"ac:plain-text-body":  true,
	"ac:task-list":        true,
	"ac:task":             true,
	"ac:structured-macro": true,
	"ac:adf-extension":    true,
	"ac:adf-node":         true,
	"ac:adf-content":      true,
	"ac:parameter":        true,
	"ac:image":            true,
	"ac:placeholder":      true,
	"ri:attachment":       true,
}

// voidTags may appear without a closing tag even when not written as <x/>.
var voidTags = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// metadataTags hold macro parameters, opaque bodies and resource
// identifiers. Their text is not page content.
var metadataTags = map[string]bool{
	"ac:parameter":            true,
	"ac:plain-text-body":      true,
	"ac:plain-text-link-body": true,
	"ac:task-id":              true,
	"ac:task-uuid":            true,
	"ac:task-status":          true,
	"ac:emoticon":             true,
	"ac:placeholder":          true,
}

// IsMetadata reports whether elements named tag carry macro or resource
// metadata rather than content. Inside a macro only ac:rich-text-body holds
// content.
func IsMetadata(tag string) bool {
	return metadataTags[tag] || strings.HasPrefix(tag, "ri:")
}

// IsVoid reports whether elements named tag never have content.
func IsVoid(tag string) bool {
	return voidTags[tag]
}

// IsAnchorTarget reports whether elements named tag may carry a re-anchored
// comment.
func IsAnchorTarget(tag string) bool {
	return anchorTags[tag]
}

// IsBlock reports whether elements named tag separate runs of inline text.
func IsBlock(tag string) bool {
	return anchorTags[tag] || containerTags[tag]
}

// Text returns the decoded text under n with markup removed. Block
// boundaries become single spaces; CDATA bodies, comments, directives and
// metadata elements contribute nothing.
func (t *Tree) Text(n *Node) string {
	if t.texts == nil {
		t.texts = make(map[*Node]string)
	}
	if s, ok := t.texts[n]; ok {
		return s
	}
	var s string
	switch n.Kind {
	case TextNode:
		s = n.Text
	case ElementNode:
		var sb strings.Builder
		for _, c := range n.Children {
			block := c.Kind == ElementNode && IsBlock(c.Tag)
			if block {
				sb.WriteByte(' ')
			}
			if c.Kind != ElementNode || !IsMetadata(c.Tag) {
				sb.WriteString(t.Text(c))
			}
			if block {
				sb.WriteByte(' ')
			}
		}
		s = sb.String()
	}
	t.texts[n] = s
	return s
}

// Signature returns the normalized text of n used for similarity comparison.
// The value is memoized until the next Invalidate.
func (t *Tree) Signature(n *Node) string {
	if t.sigs == nil {
		t.sigs = make(map[*Node]string)
	}
	if s, ok := t.sigs[n]; ok {
		return s
	}
	s := Normalize(t.Text(n))
	t.sigs[n] = s
	return s
}

// Normalize collapses whitespace runs to single spaces, trims the ends and
// applies Unicode NFC so composed and decomposed forms compare equal.
func Normalize(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}
