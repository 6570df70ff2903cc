// Package source renders authored documents into wiki storage-format page
// bodies. Renderers know nothing about comments; their output is the "new"
// side of comment preservation.
package source

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Page is a rendered document.
type Page struct {
	Title string
	Body  string
}

// Renderer converts raw document bytes into a storage-format page.
type Renderer interface {
	Render(r io.Reader, filename string) (*Page, error)
}

// Options configure renderer construction.
type Options struct {
	// PDFFallbackPdftotext retries PDF extraction with the pdftotext binary
	// when the Go reader fails.
	PDFFallbackPdftotext bool
}

// SupportedExtensions lists file extensions this service can render.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate renderer for a filename.
func ForFile(filename string, opts Options) (Renderer, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextRenderer{}, nil
	case ".md", ".markdown":
		return &MarkdownRenderer{}, nil
	case ".csv":
		return &CSVRenderer{}, nil
	case ".html", ".htm":
		return &HTMLRenderer{}, nil
	case ".pdf":
		return &PDFRenderer{FallbackPdftotext: opts.PDFFallbackPdftotext}, nil
	case ".docx":
		return &DOCXRenderer{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

func trimExt(filename string, exts ...string) string {
	base := filepath.Base(filename)
	for _, ext := range exts {
		if strings.HasSuffix(strings.ToLower(base), ext) {
			return base[:len(base)-len(ext)]
		}
	}
	return base
}
