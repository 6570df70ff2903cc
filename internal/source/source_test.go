package source

import (
	"strings"
	"testing"

	"github.com/dgallion1/wikipub/internal/storage"
)

func TestForFile(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"a.txt", "*source.TextRenderer"},
		{"a.md", "*source.MarkdownRenderer"},
		{"a.MARKDOWN", "*source.MarkdownRenderer"},
		{"a.csv", "*source.CSVRenderer"},
		{"a.htm", "*source.HTMLRenderer"},
		{"a.html", "*source.HTMLRenderer"},
		{"a.pdf", "*source.PDFRenderer"},
		{"a.docx", "*source.DOCXRenderer"},
	}
	for _, tt := range tests {
		r, err := ForFile(tt.filename, Options{})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.filename, err)
		}
		if got := typeName(r); got != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.filename, tt.want, got)
		}
		if !IsSupportedExtension(tt.filename) {
			t.Errorf("%s: expected supported", tt.filename)
		}
	}

	if _, err := ForFile("image.png", Options{}); err == nil {
		t.Error("expected error for unsupported extension")
	}
	if IsSupportedExtension("image.png") {
		t.Error("expected .png to be unsupported")
	}

	r, _ := ForFile("scan.pdf", Options{PDFFallbackPdftotext: true})
	if !r.(*PDFRenderer).FallbackPdftotext {
		t.Error("expected pdftotext fallback to be passed through")
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *TextRenderer:
		return "*source.TextRenderer"
	case *MarkdownRenderer:
		return "*source.MarkdownRenderer"
	case *CSVRenderer:
		return "*source.CSVRenderer"
	case *HTMLRenderer:
		return "*source.HTMLRenderer"
	case *PDFRenderer:
		return "*source.PDFRenderer"
	case *DOCXRenderer:
		return "*source.DOCXRenderer"
	}
	return "unknown"
}

func TestCSVRenderer(t *testing.T) {
	input := "name,qty\nwidget,3\n\"a, b\",x<y,extra\n"
	page, err := (&CSVRenderer{}).Render(strings.NewReader(input), "stock.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "<table><tbody>" +
		"<tr><th>name</th><th>qty</th></tr>" +
		"<tr><td>widget</td><td>3</td></tr>" +
		"<tr><td>a, b</td><td>x&lt;y</td><td>extra</td></tr>" +
		"</tbody></table>"
	if page.Body != want {
		t.Errorf("expected %q, got %q", want, page.Body)
	}
	if page.Title != "stock" {
		t.Errorf("expected title %q, got %q", "stock", page.Title)
	}
}

func TestHTMLRenderer(t *testing.T) {
	input := `<html><head><title>My Page</title><style>p{}</style></head><body>` +
		`<nav>menu</nav><h1 class="x">Hello</h1><p>a &amp; b<br>c <a href="/x?a=1&amp;b=2" onclick="f()">link</a></p>` +
		`<script>var x = "<p>";</script><pre><code class="hl language-go">x := 1 &lt; 2</code></pre></body></html>`
	page, err := (&HTMLRenderer{}).Render(strings.NewReader(input), "page.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Title != "My Page" {
		t.Errorf("expected title %q, got %q", "My Page", page.Title)
	}
	want := `<h1>Hello</h1><p>a &amp; b<br />c <a href="/x?a=1&amp;b=2">link</a></p>` +
		`<ac:structured-macro ac:name="code" ac:schema-version="1"><ac:parameter ac:name="language">go</ac:parameter>` +
		`<ac:plain-text-body><![CDATA[x := 1 < 2]]></ac:plain-text-body></ac:structured-macro>`
	if page.Body != want {
		t.Errorf("expected %q, got %q", want, page.Body)
	}
	if _, err := storage.Parse(page.Body); err != nil {
		t.Errorf("rendered body does not parse: %v", err)
	}
}

func TestHTMLRenderer_TitleFallsBackToFilename(t *testing.T) {
	page, err := (&HTMLRenderer{}).Render(strings.NewReader("<p>x</p>"), "dir/notes.htm")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Title != "notes" {
		t.Errorf("expected title %q, got %q", "notes", page.Title)
	}
	if page.Body != "<p>x</p>" {
		t.Errorf("expected %q, got %q", "<p>x</p>", page.Body)
	}
}
