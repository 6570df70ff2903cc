package source

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/dgallion1/wikipub/internal/doctree"
)

// CSVRenderer renders a CSV file as a single table. The first row becomes the
// header row.
type CSVRenderer struct{}

func (r *CSVRenderer) Render(rd io.Reader, filename string) (*Page, error) {
	reader := csv.NewReader(rd)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	b := newPageBuilder()
	title := trimExt(filename, ".csv")
	if len(records) == 0 {
		return b.page(title), nil
	}

	tbody := doctree.NewElement("tbody")
	for i, row := range records {
		cellTag := "td"
		if i == 0 {
			cellTag = "th"
		}
		tr := doctree.NewElement("tr")
		for _, cell := range row {
			tr.Children = append(tr.Children, textElement(cellTag, cell))
		}
		tbody.Children = append(tbody.Children, tr)
	}
	table := doctree.NewElement("table")
	table.Children = []*doctree.Node{tbody}
	b.add(table)
	return b.page(title), nil
}
