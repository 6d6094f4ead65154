package pipeline

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/dvloznov/blueprint-importer/internal/domain"
	"github.com/dvloznov/blueprint-importer/internal/richtext"
)

// ErrRichTextConversion wraps a converter failure on one cell.
var ErrRichTextConversion = errors.New("rich text conversion failed")

// TransformedCell is a source cell after conversion. RichText is set only for
// converted columns; every other cell keeps its raw Text.
type TransformedCell struct {
	Column   string
	Text     string
	RichText *richtext.Document
}

// Value returns the payload written for this cell.
func (c TransformedCell) Value() any {
	if c.RichText != nil {
		return c.RichText
	}
	return c.Text
}

// TransformedRow is a row ready for mapping. Asset holds the relocation
// outcome for the asset column; nil means no asset.
type TransformedRow struct {
	Line  int
	Cells []TransformedCell
	Asset *domain.AssetReference
}

// Get returns a cell by column name.
func (r *TransformedRow) Get(column string) (TransformedCell, bool) {
	for _, c := range r.Cells {
		if c.Column == column {
			return c, true
		}
	}
	return TransformedCell{}, false
}

// TransformRows converts the designated rich-text columns of every row.
// Empty or absent rich-text values are left absent. Converter errors abort.
func TransformRows(rows []domain.RawRow, richTextColumns []string, converter Converter) ([]*TransformedRow, error) {
	designated := make(map[string]bool, len(richTextColumns))
	for _, col := range richTextColumns {
		designated[col] = true
	}

	out := make([]*TransformedRow, 0, len(rows))
	for _, row := range rows {
		tr := &TransformedRow{
			Line:  row.Line,
			Cells: make([]TransformedCell, 0, len(row.Cells)),
		}
		for _, cell := range row.Cells {
			if !designated[cell.Column] {
				tr.Cells = append(tr.Cells, TransformedCell{Column: cell.Column, Text: cell.Value})
				continue
			}
			if cell.Value == "" {
				continue
			}

			doc, err := converter.Convert(cell.Value)
			if err != nil {
				return nil, fmt.Errorf("TransformRows: line %d column %q: %w: %w",
					row.Line, cell.Column, ErrRichTextConversion, err)
			}
			if doc == nil {
				continue
			}
			tr.Cells = append(tr.Cells, TransformedCell{Column: cell.Column, RichText: doc})
		}
		out = append(out, tr)
	}

	return out, nil
}
