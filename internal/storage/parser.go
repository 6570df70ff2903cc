// Package storage reads and writes the wiki's storage format: an XHTML
// dialect with namespaced macro elements (ac:, ri:), HTML named entities and
// CDATA macro bodies.
//
// Parse keeps the source text of every node, so Serialize(Parse(x)) == x
// for any input that parses. Only nodes built or modified in memory are
// re-encoded.
package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgallion1/wikipub/internal/doctree"
	"github.com/dgallion1/wikipub/internal/entity"
)

var (
	ErrUnbalancedTags    = errors.New("unbalanced tags")
	ErrUnterminatedCDATA = errors.New("unterminated CDATA section")
	ErrTruncated         = errors.New("truncated input")
)

// ParseError locates a parse failure. Kind is one of the Err* sentinels.
type ParseError struct {
	Kind   error
	Offset int
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s at offset %d", e.Kind, e.Offset)
	}
	return fmt.Sprintf("%s at offset %d: %s", e.Kind, e.Offset, e.Detail)
}

func (e *ParseError) Unwrap() error { return e.Kind }

const (
	cdataOpen  = "<![CDATA["
	cdataClose = "]]>"
)

// Parse builds a document tree from storage-format text in a single forward
// pass.
func Parse(src string) (*doctree.Tree, error) {
	tree := doctree.New()
	p := &parser{src: src, stack: []*doctree.Node{tree.Root}}
	if err := p.run(); err != nil {
		return nil, err
	}
	return tree, nil
}

type parser struct {
	src   string
	pos   int
	stack []*doctree.Node
}

func (p *parser) top() *doctree.Node {
	return p.stack[len(p.stack)-1]
}

func (p *parser) append(n *doctree.Node) {
	top := p.top()
	top.Children = append(top.Children, n)
}

func (p *parser) fail(kind error, offset int, format string, args ...any) error {
	return &ParseError{Kind: kind, Offset: offset, Detail: fmt.Sprintf(format, args...)}
}

func (p *parser) run() error {
	for p.pos < len(p.src) {
		lt := strings.IndexByte(p.src[p.pos:], '<')
		if lt < 0 {
			p.text(len(p.src))
			break
		}
		if lt > 0 {
			p.text(p.pos + lt)
		}
		if err := p.markup(); err != nil {
			return err
		}
	}
	if len(p.stack) > 1 {
		return p.fail(ErrTruncated, len(p.src), "<%s> is never closed", p.top().Tag)
	}
	return nil
}

// text consumes literal characters up to end. A '<' that does not open
// markup is kept as text, so consecutive runs are merged.
func (p *parser) text(end int) {
	raw := p.src[p.pos:end]
	p.pos = end
	top := p.top()
	if k := len(top.Children); k > 0 && top.Children[k-1].Kind == doctree.TextNode {
		prev := top.Children[k-1]
		prev.Raw += raw
		prev.Text += entity.Decode(raw)
		return
	}
	p.append(&doctree.Node{Kind: doctree.TextNode, Text: entity.Decode(raw), Raw: raw})
}

func (p *parser) markup() error {
	rest := p.src[p.pos:]
	if len(rest) == 1 {
		return p.fail(ErrTruncated, p.pos, "input ends with '<'")
	}
	switch {
	case strings.HasPrefix(rest, cdataOpen):
		return p.cdata()
	case strings.HasPrefix(rest, "<!--"):
		return p.verbatim(doctree.CommentNode, "-->")
	case strings.HasPrefix(rest, "<?"):
		return p.verbatim(doctree.DirectiveNode, "?>")
	case strings.HasPrefix(rest, "<!"):
		return p.verbatim(doctree.DirectiveNode, ">")
	case strings.HasPrefix(rest, "</"):
		return p.endTag()
	case isNameStart(rest[1]):
		return p.startTag()
	}
	// A lone '<' is literal text.
	p.text(p.pos + 1)
	return nil
}

func (p *parser) cdata() error {
	start := p.pos
	body := p.pos + len(cdataOpen)
	end := strings.Index(p.src[body:], cdataClose)
	if end < 0 {
		return p.fail(ErrUnterminatedCDATA, start, "missing %q", cdataClose)
	}
	p.append(&doctree.Node{Kind: doctree.CDATANode, Text: p.src[body : body+end]})
	p.pos = body + end + len(cdataClose)
	return nil
}

func (p *parser) verbatim(kind doctree.Kind, terminator string) error {
	start := p.pos
	end := strings.Index(p.src[start+2:], terminator)
	if end < 0 {
		return p.fail(ErrTruncated, start, "missing %q", terminator)
	}
	p.pos = start + 2 + end + len(terminator)
	p.append(&doctree.Node{Kind: kind, Raw: p.src[start:p.pos]})
	return nil
}

func (p *parser) startTag() error {
	start := p.pos
	i := p.pos + 1
	name, i := p.name(i)

	n := &doctree.Node{Kind: doctree.ElementNode, Tag: name}
	for {
		i = p.skipSpace(i)
		if i >= len(p.src) {
			return p.fail(ErrTruncated, start, "unterminated start tag <%s", name)
		}
		switch c := p.src[i]; {
		case c == '>':
			i++
			n.Void = doctree.IsVoid(name)
			if err := p.open(n, start, i); err != nil {
				return err
			}
			if n.Void {
				p.voidEnd(n)
			}
			return nil
		case c == '/':
			if i+1 >= len(p.src) {
				return p.fail(ErrTruncated, start, "unterminated start tag <%s", name)
			}
			if p.src[i+1] != '>' {
				return p.fail(ErrUnbalancedTags, i, "unexpected '/' in <%s>", name)
			}
			n.Void = true
			return p.open(n, start, i+2)
		}

		var attr doctree.Attr
		var err error
		attr, i, err = p.attribute(i, start, name)
		if err != nil {
			return err
		}
		n.Attrs = append(n.Attrs, attr)
	}
}

func (p *parser) open(n *doctree.Node, start, end int) error {
	n.Raw = p.src[start:end]
	p.pos = end
	p.append(n)
	if !n.Void {
		p.stack = append(p.stack, n)
	}
	return nil
}

// voidEnd consumes an explicit end tag written straight after a void start
// tag, as in <br></br>, keeping it in RawEnd.
func (p *parser) voidEnd(n *doctree.Node) {
	rest := p.src[p.pos:]
	if !strings.HasPrefix(rest, "</"+n.Tag) {
		return
	}
	i := p.skipSpace(p.pos + 2 + len(n.Tag))
	if i >= len(p.src) || p.src[i] != '>' {
		return
	}
	n.RawEnd = p.src[p.pos : i+1]
	p.pos = i + 1
}

func (p *parser) attribute(i, tagStart int, tag string) (doctree.Attr, int, error) {
	nameStart := i
	for i < len(p.src) && !isSpace(p.src[i]) && p.src[i] != '=' && p.src[i] != '>' && p.src[i] != '/' {
		i++
	}
	attr := doctree.Attr{Name: p.src[nameStart:i]}
	i = p.skipSpace(i)
	if i >= len(p.src) {
		return attr, i, p.fail(ErrTruncated, tagStart, "unterminated start tag <%s", tag)
	}
	if p.src[i] != '=' {
		// Valueless attribute.
		return attr, i, nil
	}
	i = p.skipSpace(i + 1)
	if i >= len(p.src) {
		return attr, i, p.fail(ErrTruncated, tagStart, "unterminated start tag <%s", tag)
	}
	if q := p.src[i]; q == '"' || q == '\'' {
		end := strings.IndexByte(p.src[i+1:], q)
		if end < 0 {
			return attr, i, p.fail(ErrTruncated, i, "unterminated value for %s", attr.Name)
		}
		attr.Value = entity.Decode(p.src[i+1 : i+1+end])
		return attr, i + end + 2, nil
	}
	valStart := i
	for i < len(p.src) && !isSpace(p.src[i]) && p.src[i] != '>' {
		i++
	}
	attr.Value = entity.Decode(p.src[valStart:i])
	return attr, i, nil
}

func (p *parser) endTag() error {
	start := p.pos
	name, i := p.name(p.pos + 2)
	i = p.skipSpace(i)
	if i >= len(p.src) {
		return p.fail(ErrTruncated, start, "unterminated end tag </%s", name)
	}
	if p.src[i] != '>' {
		return p.fail(ErrUnbalancedTags, start, "malformed end tag </%s", name)
	}
	if len(p.stack) == 1 {
		return p.fail(ErrUnbalancedTags, start, "</%s> has no open element", name)
	}
	if top := p.top(); top.Tag != name {
		return p.fail(ErrUnbalancedTags, start, "</%s> closes <%s>", name, top.Tag)
	}
	p.top().RawEnd = p.src[start : i+1]
	p.stack = p.stack[:len(p.stack)-1]
	p.pos = i + 1
	return nil
}

func (p *parser) name(i int) (string, int) {
	start := i
	for i < len(p.src) && isNameChar(p.src[i]) {
		i++
	}
	return p.src[start:i], i
}

func (p *parser) skipSpace(i int) int {
	for i < len(p.src) && isSpace(p.src[i]) {
		i++
	}
	return i
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func isNameStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_' || c == ':' || c >= 0x80
}

func isNameChar(c byte) bool {
	return isNameStart(c) || c >= '0' && c <= '9' || c == '-' || c == '.'
}
