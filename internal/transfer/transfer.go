// Package transfer writes matched comment markers into a new document tree
// and reports what was kept and what was lost.
package transfer

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/wikipub/internal/doctree"
	"github.com/dgallion1/wikipub/internal/entity"
	"github.com/dgallion1/wikipub/internal/matcher"
)

// ErrCollision is matched by every *CollisionError.
var ErrCollision = errors.New("comment ref id collision")

// CollisionError reports a ref id that would appear twice in the output.
type CollisionError struct {
	RefID string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("%s: %q", ErrCollision, e.RefID)
}

func (e *CollisionError) Unwrap() error { return ErrCollision }

// Dropped is a marker that could not be carried forward.
type Dropped struct {
	RefID  string         `json:"ref_id"`
	Reason matcher.Reason `json:"reason"`
	Score  float64        `json:"best_score"`
}

// Report summarizes one transfer.
type Report struct {
	Total     int                   `json:"total_markers"`
	Records   []matcher.MatchRecord `json:"-"`
	Preserved []string              `json:"preserved"`
	Dropped   []Dropped             `json:"dropped"`
}

// PreservedCount returns the number of markers carried forward.
func (r Report) PreservedCount() int { return len(r.Preserved) }

// DroppedCount returns the number of markers lost.
func (r Report) DroppedCount() int { return len(r.Dropped) }

// Summary is a one-line description suitable for showing to an author.
func (r Report) Summary() string {
	return fmt.Sprintf("%d %s preserved, %d dropped",
		r.PreservedCount(), plural(r.PreservedCount(), "comment", "comments"), r.DroppedCount())
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// Apply inserts a marker for every matched record into tree. A marker whose
// ref id already sits inside its target is left in place; any other
// duplicate ref id aborts the transfer with a *CollisionError, and tree may
// then be partially modified.
func Apply(tree *doctree.Tree, records []matcher.MatchRecord) (Report, error) {
	report := Report{
		Total:     len(records),
		Records:   records,
		Preserved: []string{},
		Dropped:   []Dropped{},
	}

	existing := make(map[string]*doctree.Node)
	tree.Walk(func(n *doctree.Node, _ []*doctree.Node, _ doctree.Path) bool {
		if ref, ok := n.MarkerRef(); ok && ref != "" {
			if _, dup := existing[ref]; dup {
				return true
			}
			existing[ref] = n
		}
		return true
	})

	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		if seen[rec.RefID] {
			return report, &CollisionError{RefID: rec.RefID}
		}
		seen[rec.RefID] = true

		prior, present := existing[rec.RefID]
		if !rec.Matched() {
			if present {
				return report, &CollisionError{RefID: rec.RefID}
			}
			report.Dropped = append(report.Dropped, Dropped{RefID: rec.RefID, Reason: rec.Reason, Score: rec.Score})
			continue
		}

		if present {
			if !contains(rec.Target, prior) {
				return report, &CollisionError{RefID: rec.RefID}
			}
		} else {
			anchor(rec.Target, rec.RefID, rec.AnchorText)
			tree.Invalidate()
		}
		rec.Target.MarkerRefs = append(rec.Target.MarkerRefs, rec.RefID)
		report.Preserved = append(report.Preserved, rec.RefID)
	}
	refreshPaths(tree, report.Records)
	return report, nil
}

// refreshPaths rewrites the target path of each matched record to where its
// target sits once every marker is in place. Splitting a text run ahead of a
// nested target shifts that target's index among its siblings.
func refreshPaths(tree *doctree.Tree, records []matcher.MatchRecord) {
	paths := make(map[*doctree.Node]doctree.Path)
	tree.Walk(func(n *doctree.Node, _ []*doctree.Node, path doctree.Path) bool {
		paths[n] = path.Clone()
		return true
	})
	for i := range records {
		if p, ok := paths[records[i].Target]; ok && records[i].Matched() {
			records[i].TargetPath = p
		}
	}
}

func contains(root, n *doctree.Node) bool {
	if root == n {
		return true
	}
	for _, c := range root.Children {
		if contains(c, n) {
			return true
		}
	}
	return false
}

// anchor wraps the anchor text when it occurs verbatim in one text run of
// target, and otherwise wraps target's first run of inline content.
func anchor(target *doctree.Node, refID, anchorText string) {
	if anchorText != "" && wrapSpan(target, refID, anchorText) {
		return
	}
	if wrapInline(target, refID) {
		return
	}
	// Nothing textual to wrap: keep the comment attached to an empty marker.
	target.Children = append(target.Children, doctree.NewMarker(refID))
}

// wrapSpan splits the first text node under n that contains text and wraps
// the match.
func wrapSpan(n *doctree.Node, refID, text string) bool {
	for i, c := range n.Children {
		switch c.Kind {
		case doctree.TextNode:
			at := strings.Index(c.Text, text)
			if at < 0 {
				continue
			}
			before, span, after := splitText(c, at, at+len(text))
			marker := doctree.NewMarker(refID)
			marker.Children = []*doctree.Node{span}
			var parts []*doctree.Node
			if before.Text != "" {
				parts = append(parts, before)
			}
			parts = append(parts, marker)
			if after.Text != "" {
				parts = append(parts, after)
			}
			n.Children = splice(n.Children, i, parts)
			return true
		case doctree.ElementNode:
			if enterable(c) && wrapSpan(c, refID, text) {
				return true
			}
		}
	}
	return false
}

// splitText cuts text node n at the decoded offsets from and to. A parsed
// node is cut in its source form when both cut points fall between character
// references, so the bytes around the span keep their original spelling.
// Otherwise the pieces are built from decoded text and re-encoded on output.
func splitText(n *doctree.Node, from, to int) (before, span, after *doctree.Node) {
	texts := [3]string{n.Text[:from], n.Text[from:to], n.Text[to:]}
	if n.Raw != "" {
		if r, ok := rawOffsets(n.Raw, from, to); ok {
			raws := [3]string{n.Raw[:r[0]], n.Raw[r[0]:r[1]], n.Raw[r[1]:]}
			if entity.Decode(raws[0]) == texts[0] && entity.Decode(raws[1]) == texts[1] && entity.Decode(raws[2]) == texts[2] {
				piece := func(k int) *doctree.Node {
					return &doctree.Node{Kind: doctree.TextNode, Text: texts[k], Raw: raws[k]}
				}
				return piece(0), piece(1), piece(2)
			}
		}
	}
	return doctree.NewText(texts[0]), doctree.NewText(texts[1]), doctree.NewText(texts[2])
}

// rawOffsets maps increasing offsets in the decoded text to offsets in raw.
// It fails when an offset falls inside the expansion of a reference.
func rawOffsets(raw string, decoded ...int) ([]int, bool) {
	out := make([]int, 0, len(decoded))
	d, r := 0, 0
	for _, want := range decoded {
		for d < want && r < len(raw) {
			n := refLen(raw[r:])
			d += len(entity.Decode(raw[r : r+n]))
			r += n
		}
		if d != want {
			return nil, false
		}
		out = append(out, r)
	}
	return out, true
}

// maxRefLen bounds the length of a character reference, "&" to ";".
const maxRefLen = 34

// refLen returns the length of the character reference at the start of s, or
// of its first rune when s does not start with one.
func refLen(s string) int {
	if s[0] == '&' {
		if semi := strings.IndexByte(s, ';'); semi > 1 && semi < maxRefLen {
			if ref := s[:semi+1]; entity.Decode(ref) != ref {
				return semi + 1
			}
		}
	}
	_, n := utf8.DecodeRuneInString(s)
	return n
}

// wrapInline wraps the first run of inline children of n that carries text.
// When n has no such run it descends into its block children.
func wrapInline(n *doctree.Node, refID string) bool {
	for i := 0; i < len(n.Children); {
		if !isInline(n.Children[i]) {
			i++
			continue
		}
		j := i
		for j < len(n.Children) && isInline(n.Children[j]) {
			j++
		}
		if hasText(n.Children[i:j]) {
			marker := doctree.NewMarker(refID)
			marker.Children = append([]*doctree.Node(nil), n.Children[i:j]...)
			n.Children = splice(n.Children, i, []*doctree.Node{marker}, j-i)
			return true
		}
		i = j
	}
	for _, c := range n.Children {
		if c.Kind == doctree.ElementNode && enterable(c) && wrapInline(c, refID) {
			return true
		}
	}
	return false
}

// enterable reports whether a marker may be placed somewhere inside element
// n. Macro parameters and resource identifiers are never touched.
func enterable(n *doctree.Node) bool {
	return !n.Void && !doctree.IsMetadata(n.Tag)
}

func isInline(n *doctree.Node) bool {
	switch n.Kind {
	case doctree.TextNode:
		return true
	case doctree.ElementNode:
		return !doctree.IsBlock(n.Tag)
	}
	return false
}

func hasText(nodes []*doctree.Node) bool {
	for _, n := range nodes {
		switch n.Kind {
		case doctree.TextNode:
			if strings.TrimSpace(n.Text) != "" {
				return true
			}
		case doctree.ElementNode:
			if !doctree.IsMetadata(n.Tag) && hasText(n.Children) {
				return true
			}
		}
	}
	return false
}

// splice replaces count nodes (default 1) at index i with parts.
func splice(nodes []*doctree.Node, i int, parts []*doctree.Node, count ...int) []*doctree.Node {
	n := 1
	if len(count) > 0 {
		n = count[0]
	}
	out := make([]*doctree.Node, 0, len(nodes)-n+len(parts))
	out = append(out, nodes[:i]...)
	out = append(out, parts...)
	out = append(out, nodes[i+n:]...)
	return out
}
