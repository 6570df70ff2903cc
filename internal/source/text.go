package source

import (
	"io"
)

// TextRenderer handles plain text files. Blank lines separate paragraphs;
// single line breaks inside a paragraph are kept as <br />.
type TextRenderer struct{}

func (r *TextRenderer) Render(rd io.Reader, filename string) (*Page, error) {
	src, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}

	b := newPageBuilder()
	for _, para := range splitParagraphs(string(src)) {
		b.paragraph(para)
	}
	return b.page(trimExt(filename, ".txt")), nil
}
