package transfer

import (
	"errors"
	"strings"
	"testing"

	"github.com/dgallion1/wikipub/internal/doctree"
	"github.com/dgallion1/wikipub/internal/matcher"
	"github.com/dgallion1/wikipub/internal/storage"
)

func mustParse(t *testing.T, src string) *doctree.Tree {
	t.Helper()
	tree, err := storage.Parse(src)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	return tree
}

func matched(tree *doctree.Tree, ref, anchor string, path ...int) matcher.MatchRecord {
	return matcher.MatchRecord{
		RefID:      ref,
		AnchorText: anchor,
		Target:     tree.At(path),
		TargetPath: doctree.Path(path),
		Score:      0.9,
		Strategy:   matcher.StrategyPositional,
	}
}

func TestApply_WrapsAnchorText(t *testing.T) {
	tree := mustParse(t, `<p>This is the MODIFIED second paragraph with <strong>bold</strong>.</p>`)
	report, err := Apply(tree, []matcher.MatchRecord{matched(tree, "c1", "second paragraph", 0)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := `<p>This is the MODIFIED <ac:inline-comment-marker ac:ref="c1">second paragraph</ac:inline-comment-marker> with <strong>bold</strong>.</p>`
	if got := storage.Serialize(tree); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if report.PreservedCount() != 1 || report.Preserved[0] != "c1" {
		t.Errorf("expected c1 preserved, got %v", report.Preserved)
	}
	p := tree.At(doctree.Path{0})
	if len(p.MarkerRefs) != 1 || p.MarkerRefs[0] != "c1" {
		t.Errorf("expected target MarkerRefs [c1], got %v", p.MarkerRefs)
	}
}

func TestApply_WrapsInsideInlineElement(t *testing.T) {
	tree := mustParse(t, `<p>See <strong>the bold part</strong> here.</p>`)
	if _, err := Apply(tree, []matcher.MatchRecord{matched(tree, "b", "bold", 0)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `<p>See <strong>the <ac:inline-comment-marker ac:ref="b">bold</ac:inline-comment-marker> part</strong> here.</p>`
	if got := storage.Serialize(tree); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestApply_FallsBackToFirstInlineRun(t *testing.T) {
	tree := mustParse(t, `<p>Hello <em>world</em><br/>after</p>`)
	if _, err := Apply(tree, []matcher.MatchRecord{matched(tree, "r", "text that is gone", 0)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `<p><ac:inline-comment-marker ac:ref="r">Hello <em>world</em></ac:inline-comment-marker><br/>after</p>`
	if got := storage.Serialize(tree); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestApply_DescendsIntoBlocks(t *testing.T) {
	tree := mustParse(t, `<ul><li><p>Inner</p></li></ul>`)
	if _, err := Apply(tree, []matcher.MatchRecord{matched(tree, "r", "missing", 0, 0)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `<ul><li><p><ac:inline-comment-marker ac:ref="r">Inner</ac:inline-comment-marker></p></li></ul>`
	if got := storage.Serialize(tree); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestApply_EmptyTargetGetsEmptyMarker(t *testing.T) {
	tree := mustParse(t, `<p></p>`)
	if _, err := Apply(tree, []matcher.MatchRecord{matched(tree, "e", "", 0)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `<p><ac:inline-comment-marker ac:ref="e"></ac:inline-comment-marker></p>`
	if got := storage.Serialize(tree); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestApply_EncodesSplitText(t *testing.T) {
	tree := mustParse(t, `<p>a &amp; b &lt; c</p>`)
	if _, err := Apply(tree, []matcher.MatchRecord{matched(tree, "x", "b", 0)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `<p>a &amp; <ac:inline-comment-marker ac:ref="x">b</ac:inline-comment-marker> &lt; c</p>`
	if got := storage.Serialize(tree); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestApply_ReportsDropped(t *testing.T) {
	tree := mustParse(t, `<p>Only paragraph</p>`)
	records := []matcher.MatchRecord{
		matched(tree, "kept", "Only", 0),
		{RefID: "lost", Score: 0.42, Strategy: matcher.StrategyGlobalFallback, Reason: matcher.ReasonBelowThreshold},
		{RefID: "gone", Strategy: matcher.StrategyGlobalFallback, Reason: matcher.ReasonNoCandidate},
	}
	report, err := Apply(tree, records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Total != 3 {
		t.Errorf("expected total 3, got %d", report.Total)
	}
	if report.PreservedCount()+report.DroppedCount() != report.Total {
		t.Errorf("preserved %d + dropped %d != total %d", report.PreservedCount(), report.DroppedCount(), report.Total)
	}
	if report.DroppedCount() != 2 {
		t.Fatalf("expected 2 dropped, got %d", report.DroppedCount())
	}
	if d := report.Dropped[0]; d.RefID != "lost" || d.Reason != matcher.ReasonBelowThreshold || d.Score != 0.42 {
		t.Errorf("unexpected first drop %+v", d)
	}
	if d := report.Dropped[1]; d.RefID != "gone" || d.Reason != matcher.ReasonNoCandidate {
		t.Errorf("unexpected second drop %+v", d)
	}
	if got := report.Summary(); got != "1 comment preserved, 2 dropped" {
		t.Errorf("unexpected summary %q", got)
	}
	if strings.Contains(storage.Serialize(tree), "lost") {
		t.Errorf("dropped marker leaked into output")
	}
}

func TestApply_DuplicateRecordIsCollision(t *testing.T) {
	tree := mustParse(t, `<p>one</p><p>two</p>`)
	_, err := Apply(tree, []matcher.MatchRecord{
		matched(tree, "dup", "one", 0),
		matched(tree, "dup", "two", 1),
	})
	if !errors.Is(err, ErrCollision) {
		t.Fatalf("expected ErrCollision, got %v", err)
	}
	var ce *CollisionError
	if !errors.As(err, &ce) || ce.RefID != "dup" {
		t.Errorf("expected CollisionError for dup, got %v", err)
	}
}

func TestApply_ExistingMarkerElsewhereIsCollision(t *testing.T) {
	tree := mustParse(t, `<p>one</p><p><ac:inline-comment-marker ac:ref="c1">two</ac:inline-comment-marker></p>`)
	_, err := Apply(tree, []matcher.MatchRecord{matched(tree, "c1", "one", 0)})
	if !errors.Is(err, ErrCollision) {
		t.Fatalf("expected ErrCollision, got %v", err)
	}
}

func TestApply_ExistingMarkerInTargetIsKept(t *testing.T) {
	src := `<p>one <ac:inline-comment-marker ac:ref="c1">two</ac:inline-comment-marker></p>`
	tree := mustParse(t, src)
	report, err := Apply(tree, []matcher.MatchRecord{matched(tree, "c1", "two", 0)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := storage.Serialize(tree); got != src {
		t.Errorf("expected unchanged output %q, got %q", src, got)
	}
	if report.PreservedCount() != 1 {
		t.Errorf("expected 1 preserved, got %d", report.PreservedCount())
	}
}

func TestApply_NoRecords(t *testing.T) {
	src := `<p>untouched &nbsp; text</p>`
	tree := mustParse(t, src)
	report, err := Apply(tree, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Total != 0 || report.Summary() != "0 comments preserved, 0 dropped" {
		t.Errorf("unexpected report %+v", report)
	}
	if got := storage.Serialize(tree); got != src {
		t.Errorf("expected %q, got %q", src, got)
	}
}

func TestApply_KeepsEntitySpellingAroundSpan(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		anchor string
		want   string
	}{
		{
			name:   "plain anchor",
			src:    `<p>It&rsquo;s &quot;the plan&quot; for Q&amp;A</p>`,
			anchor: "the plan",
			want:   `<p>It&rsquo;s &quot;<ac:inline-comment-marker ac:ref="x">the plan</ac:inline-comment-marker>&quot; for Q&amp;A</p>`,
		},
		{
			name:   "anchor spanning a reference",
			src:    `<p>It&rsquo;s &quot;the plan&quot; for Q&amp;A</p>`,
			anchor: "Q&A",
			want:   `<p>It&rsquo;s &quot;the plan&quot; for <ac:inline-comment-marker ac:ref="x">Q&amp;A</ac:inline-comment-marker></p>`,
		},
		{
			name:   "numeric reference kept",
			src:    `<p>caf&#233; and&nbsp;bar</p>`,
			anchor: "and",
			want:   `<p>caf&#233; <ac:inline-comment-marker ac:ref="x">and</ac:inline-comment-marker>&nbsp;bar</p>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := mustParse(t, tt.src)
			if _, err := Apply(tree, []matcher.MatchRecord{matched(tree, "x", tt.anchor, 0)}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := storage.Serialize(tree); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSplitText_CutInsideReferenceFallsBack(t *testing.T) {
	// "—" decodes from a single reference, so a cut after its first byte has
	// no source position.
	n := &doctree.Node{Kind: doctree.TextNode, Text: "a—b", Raw: "a&mdash;b"}
	before, span, after := splitText(n, 0, 2)
	if before.Text != "" || span.Text != "a\xe2" || after.Text != "\x80\x94b" {
		t.Fatalf("unexpected pieces %q %q %q", before.Text, span.Text, after.Text)
	}
	if span.Raw != "" || after.Raw != "" {
		t.Errorf("expected re-encoded pieces, got raw %q %q", span.Raw, after.Raw)
	}

	before, span, after = splitText(n, 1, 4)
	if before.Raw != "a" || span.Raw != "&mdash;" || after.Raw != "b" {
		t.Errorf("expected source slices, got %q %q %q", before.Raw, span.Raw, after.Raw)
	}
}

func TestApply_StatusMacroParameterIsNotWrapped(t *testing.T) {
	tree := mustParse(t, `<li><ac:structured-macro ac:name="status"><ac:parameter ac:name="title">Done</ac:parameter></ac:structured-macro> task one for release</li>`)
	if _, err := Apply(tree, []matcher.MatchRecord{matched(tree, "c1", "Done", 0)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `<li><ac:structured-macro ac:name="status"><ac:parameter ac:name="title">Done</ac:parameter></ac:structured-macro><ac:inline-comment-marker ac:ref="c1"> task one for release</ac:inline-comment-marker></li>`
	if got := storage.Serialize(tree); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestApply_WrapsInsideMacroRichTextBody(t *testing.T) {
	tree := mustParse(t, `<ac:structured-macro ac:name="info"><ac:parameter ac:name="title">Heads up</ac:parameter><ac:rich-text-body><p>Heads up before deploying</p></ac:rich-text-body></ac:structured-macro>`)
	if _, err := Apply(tree, []matcher.MatchRecord{matched(tree, "c2", "Heads up", 0)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `<ac:structured-macro ac:name="info"><ac:parameter ac:name="title">Heads up</ac:parameter><ac:rich-text-body><p><ac:inline-comment-marker ac:ref="c2">Heads up</ac:inline-comment-marker> before deploying</p></ac:rich-text-body></ac:structured-macro>`
	if got := storage.Serialize(tree); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestApply_RefreshesNestedTargetPaths(t *testing.T) {
	tree := mustParse(t, `<ul><li>alpha text <p>inner para</p></li></ul>`)
	p := tree.At(doctree.Path{0, 0, 1})
	records := []matcher.MatchRecord{
		matched(tree, "outer", "text", 0, 0),
		matched(tree, "inner", "inner", 0, 0, 1),
	}
	report, err := Apply(tree, records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `<ul><li>alpha <ac:inline-comment-marker ac:ref="outer">text</ac:inline-comment-marker> <p><ac:inline-comment-marker ac:ref="inner">inner</ac:inline-comment-marker> para</p></li></ul>`
	if got := storage.Serialize(tree); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	inner := report.Records[1]
	if inner.TargetPath.String() != "/0/0/3" {
		t.Errorf("expected inner target /0/0/3, got %s", inner.TargetPath)
	}
	if tree.At(inner.TargetPath) != p {
		t.Errorf("expected target path to resolve to the inner paragraph")
	}
	if outer := report.Records[0]; outer.TargetPath.String() != "/0/0" {
		t.Errorf("expected outer target /0/0, got %s", outer.TargetPath)
	}
}
