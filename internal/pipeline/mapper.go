package pipeline

import (
	"github.com/dvloznov/blueprint-importer/internal/domain"
)

// MapOptions names the columns with special meaning and the status written.
type MapOptions struct {
	IDColumn    string
	TitleColumn string
	AssetColumn string
	StatusID    int
}

// DefaultMapOptions returns the blog post column layout.
func DefaultMapOptions() MapOptions {
	return MapOptions{
		IDColumn:    DefaultIDColumn,
		TitleColumn: DefaultTitleColumn,
		AssetColumn: DefaultAssetColumn,
		StatusID:    DefaultStatusID,
	}
}

// MapDocument builds the write request for one row. Columns without a
// matching schema field are left out and returned as dropped. The asset
// column is written as a one-element id list when the row has a relocated
// asset and is omitted otherwise.
func MapDocument(row *TransformedRow, schema *ResolvedSchema, opts MapOptions) (domain.DocumentWriteRequest, []string) {
	req := domain.DocumentWriteRequest{
		StatusID:    opts.StatusID,
		BlueprintID: schema.BlueprintID,
		Fields:      []domain.DocumentField{},
	}
	if cell, ok := row.Get(opts.IDColumn); ok {
		req.DocumentID = cell.Text
	}
	if cell, ok := row.Get(opts.TitleColumn); ok {
		req.Title = cell.Text
	}

	var dropped []string
	for _, cell := range row.Cells {
		field, ok := schema.Lookup(cell.Column)
		if !ok {
			if cell.Column != opts.IDColumn {
				dropped = append(dropped, cell.Column)
			}
			continue
		}
		if field.FieldID == "" {
			continue
		}

		if cell.Column == opts.AssetColumn {
			if row.Asset == nil {
				continue
			}
			req.Fields = append(req.Fields, domain.DocumentField{
				FieldID: field.FieldID,
				Data:    []string{row.Asset.DocumentID},
			})
			continue
		}

		req.Fields = append(req.Fields, domain.DocumentField{
			FieldID: field.FieldID,
			Data:    cell.Value(),
		})
	}

	return req, dropped
}
