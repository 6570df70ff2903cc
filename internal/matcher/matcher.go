// Package matcher finds, for every comment marker in a previously published
// document, the node of a freshly rendered document it should move to.
//
// Each marker is first compared against the node at the same position in the
// new tree. If that node is missing or too different, every anchor-eligible
// node of the new tree is scored and the best one wins, ties going to the
// earliest in document order.
package matcher

import (
	"math"

	"github.com/dgallion1/wikipub/internal/doctree"
)

// DefaultThreshold is the minimum similarity used when none is configured.
const DefaultThreshold = 0.80

// NearMissMargin is how far below the threshold the best score of an
// unmatched marker may fall and still be reported as BelowThreshold rather
// than NoCandidate.
const NearMissMargin = 0.20

// Strategy records how a marker was matched.
type Strategy string

const (
	StrategyPositional     Strategy = "positional"
	StrategyGlobalFallback Strategy = "global_fallback"
)

// Reason explains why a marker could not be matched.
type Reason string

const (
	// ReasonBelowThreshold: some node came within NearMissMargin of the threshold.
	ReasonBelowThreshold Reason = "BelowThreshold"
	// ReasonNoCandidate: nothing in the new document resembles the old content.
	ReasonNoCandidate Reason = "NoCandidate"
)

// Options tune matching.
type Options struct {
	// Threshold is the minimum similarity for a match. Values <= 0 or NaN
	// select DefaultThreshold.
	Threshold float64

	// Exclusive stops a new-tree node from receiving markers that came from
	// different old-tree nodes.
	Exclusive bool
}

// EffectiveThreshold returns the threshold matching actually uses.
func (o Options) EffectiveThreshold() float64 {
	if o.Threshold <= 0 || math.IsNaN(o.Threshold) {
		return DefaultThreshold
	}
	return o.Threshold
}

// Marker is a comment anchor found in the old tree.
type Marker struct {
	RefID      string
	AnchorText string       // normalized text wrapped by the marker
	SourcePath doctree.Path // path of the node holding the marker
	Holder     *doctree.Node
}

// MatchRecord is the outcome for one marker.
type MatchRecord struct {
	RefID      string
	AnchorText string
	SourcePath doctree.Path

	// Target is nil when the marker is unmatched.
	Target     *doctree.Node
	TargetPath doctree.Path
	Score      float64
	Strategy   Strategy
	Reason     Reason
}

// Matched reports whether a target was found.
func (r MatchRecord) Matched() bool {
	return r.Target != nil
}

// ExtractMarkers lists the markers of t in document order. A marker's holder
// is its nearest anchor-eligible ancestor, or its parent when it has none.
// Markers without a ref id are ignored.
func ExtractMarkers(t *doctree.Tree) []Marker {
	var markers []Marker
	t.Walk(func(n *doctree.Node, ancestors []*doctree.Node, path doctree.Path) bool {
		ref, ok := n.MarkerRef()
		if !ok || ref == "" {
			return true
		}
		// ancestors[0] is the root; ancestors[i] sits at path[:i].
		holderDepth := len(ancestors) - 1
		for i := len(ancestors) - 1; i > 0; i-- {
			if ancestors[i].Kind == doctree.ElementNode && doctree.IsAnchorTarget(ancestors[i].Tag) {
				holderDepth = i
				break
			}
		}
		markers = append(markers, Marker{
			RefID:      ref,
			AnchorText: t.Signature(n),
			SourcePath: path[:holderDepth].Clone(),
			Holder:     ancestors[holderDepth],
		})
		return true
	})
	return markers
}

type candidate struct {
	node *doctree.Node
	path doctree.Path
}

// MatchAll resolves every marker of oldTree against newTree. It never fails: each
// marker yields either a match or an unmatched record with a reason.
func MatchAll(oldTree, newTree *doctree.Tree, opts Options) []MatchRecord {
	threshold := opts.EffectiveThreshold()
	markers := ExtractMarkers(oldTree)

	var candidates []candidate
	newTree.Walk(func(n *doctree.Node, _ []*doctree.Node, path doctree.Path) bool {
		if n.Kind == doctree.ElementNode && doctree.IsAnchorTarget(n.Tag) {
			candidates = append(candidates, candidate{node: n, path: path.Clone()})
		}
		return true
	})

	// owner maps a claimed target to the old node its markers came from.
	owner := make(map[*doctree.Node]*doctree.Node)
	available := func(target, holder *doctree.Node) bool {
		if !opts.Exclusive {
			return true
		}
		h, taken := owner[target]
		return !taken || h == holder
	}

	records := make([]MatchRecord, 0, len(markers))
	for _, m := range markers {
		oldSig := oldTree.Signature(m.Holder)
		rec := MatchRecord{
			RefID:      m.RefID,
			AnchorText: m.AnchorText,
			SourcePath: m.SourcePath,
		}

		positionalScore := -1.0
		pos := newTree.At(m.SourcePath)
		if pos != nil && (pos.Kind != doctree.ElementNode || pos.Tag != m.Holder.Tag) {
			pos = nil
		}
		if pos != nil && available(pos, m.Holder) {
			positionalScore = Similarity(oldSig, newTree.Signature(pos))
			if positionalScore >= threshold {
				rec.Target = pos
				rec.TargetPath = m.SourcePath.Clone()
				rec.Score = positionalScore
				rec.Strategy = StrategyPositional
				owner[pos] = m.Holder
				records = append(records, rec)
				continue
			}
		}

		best := -1
		bestScore := -1.0
		for i, c := range candidates {
			if !available(c.node, m.Holder) {
				continue
			}
			// Strictly greater keeps the earliest node on ties.
			if s := Similarity(oldSig, newTree.Signature(c.node)); s > bestScore {
				best, bestScore = i, s
			}
		}

		rec.Strategy = StrategyGlobalFallback
		if best >= 0 && bestScore >= threshold {
			rec.Target = candidates[best].node
			rec.TargetPath = candidates[best].path
			rec.Score = bestScore
			owner[rec.Target] = m.Holder
			records = append(records, rec)
			continue
		}

		rec.Score = math.Max(0, math.Max(positionalScore, bestScore))
		rec.Reason = ReasonNoCandidate
		if rec.Score > 0 && rec.Score >= threshold-NearMissMargin {
			rec.Reason = ReasonBelowThreshold
		}
		records = append(records, rec)
	}
	return records
}
