package source

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// PDFRenderer handles PDF files. It tries the Go library first, then falls
// back to pdftotext if enabled. Pages are separated by a horizontal rule.
type PDFRenderer struct {
	FallbackPdftotext bool
}

func (r *PDFRenderer) Render(rd io.Reader, filename string) (*Page, error) {
	// ledongthuc/pdf opens by path, so write to a temp file.
	tmp, err := os.CreateTemp("", "wikipub-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, rd); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	text, err := extractPDFText(tmpPath)
	if err != nil && r.FallbackPdftotext {
		text, err = extractPdftotext(tmpPath)
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}
	return renderPages(strings.Split(text, "\f"), trimExt(filename, ".pdf")), nil
}

func renderPages(pages []string, title string) *Page {
	b := newPageBuilder()
	for _, page := range pages {
		paragraphs := splitParagraphs(page)
		if len(paragraphs) == 0 {
			continue
		}
		if !b.empty() {
			b.rule()
		}
		for _, para := range paragraphs {
			b.paragraph(para)
		}
	}
	return b.page(title)
}

func extractPDFText(path string) (string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if i > 1 {
			buf.WriteString("\f") // page separator
		}
		buf.WriteString(text)
	}
	return buf.String(), nil
}

func extractPdftotext(path string) (string, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}
