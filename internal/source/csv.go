// Package source decodes the delimited import file into header-keyed rows.
package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/dvloznov/blueprint-importer/internal/domain"
	"github.com/dvloznov/blueprint-importer/internal/logger"
)

// DefaultPath is where the importer looks for its source file.
const DefaultPath = "./posts.csv"

// ErrEmptySource is returned when the file has no header line.
var ErrEmptySource = errors.New("source file has no header")

// ObjectFetcher reads objects from cloud storage for gs:// source paths.
type ObjectFetcher interface {
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
}

// Options controls decoding.
type Options struct {
	// Delimiter separates fields; zero means comma.
	Delimiter rune
}

// Load reads the source from a local path or a gs:// URI and decodes it.
// storage may be nil when only local paths are used.
func Load(ctx context.Context, path string, storage ObjectFetcher, opts Options) ([]domain.RawRow, error) {
	log := logger.FromContext(ctx)

	var data []byte
	var err error
	if strings.HasPrefix(path, "gs://") {
		if storage == nil {
			return nil, errors.WithHint(
				errors.Newf("Load: no storage client for %s", path),
				"configure GCP credentials to read sources from Cloud Storage")
		}
		data, err = storage.FetchFromGCS(ctx, path)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "Load: read %s", path)
	}

	rows, err := Decode(bytes.NewReader(data), opts)
	if err != nil {
		return nil, errors.Wrapf(err, "Load: decode %s", path)
	}

	log.Debug().Str("path", path).Int("rows", len(rows)).Msg("Decoded source file")
	return rows, nil
}

// Decode parses delimited text with a header line into rows.
// Lines shorter than the header leave the trailing columns absent; values
// beyond the header width are ignored. Blank lines are skipped.
func Decode(r io.Reader, opts Options) ([]domain.RawRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptySource
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read header")
	}

	columns := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		h = strings.TrimSpace(h)
		if h == "" {
			return nil, errors.Newf("header column %d is empty", i+1)
		}
		if seen[h] {
			return nil, errors.Newf("duplicate header column %q", h)
		}
		seen[h] = true
		columns[i] = h
	}

	var rows []domain.RawRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to read record")
		}

		line, _ := reader.FieldPos(0)
		row := domain.RawRow{Line: line, Cells: make([]domain.Cell, 0, len(columns))}
		for i, col := range columns {
			if i >= len(record) {
				break
			}
			row.Cells = append(row.Cells, domain.Cell{Column: col, Value: record[i]})
		}
		rows = append(rows, row)
	}

	return rows, nil
}
