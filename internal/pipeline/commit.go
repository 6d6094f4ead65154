package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"

	"github.com/dvloznov/blueprint-importer/internal/domain"
	"github.com/dvloznov/blueprint-importer/internal/logger"
)

// ErrBatchTransport marks a batch write that did not complete at all.
var ErrBatchTransport = errors.New("batch write failed")

// CommitBatch sends every request in a single write. Per-document errors are
// part of the returned result; an error return means the call itself failed.
// An empty request list makes no call.
func CommitBatch(ctx context.Context, writer BatchWriter, projectID string, requests []domain.DocumentWriteRequest) (*domain.BatchResult, error) {
	log := logger.FromContext(ctx)

	if len(requests) == 0 {
		log.Info().Msg("No documents to write, skipping batch commit")
		return &domain.BatchResult{}, nil
	}

	log.Info().Int("document_count", len(requests)).Msg("Committing document batch")

	result, err := writer.PutManyDocuments(ctx, projectID, requests)
	if err != nil {
		return nil, fmt.Errorf("CommitBatch: %d documents: %w: %w", len(requests), ErrBatchTransport, err)
	}
	if result == nil {
		result = &domain.BatchResult{}
	}

	log.Info().
		Int("succeeded", len(result.SuccessfulDocumentIDs)).
		Int("failed", len(result.Errors)).
		Msg("Batch commit completed")

	return result, nil
}

// Report prints the success count and, when present, a table of per-document errors.
func Report(w io.Writer, result *domain.BatchResult) error {
	if result == nil {
		result = &domain.BatchResult{}
	}

	if _, err := fmt.Fprintf(w, "successfully imported %d documents\n", len(result.SuccessfulDocumentIDs)); err != nil {
		return err
	}
	if !result.HasErrors() {
		return nil
	}

	data := pterm.TableData{{"Document ID", "Error"}}
	for _, e := range result.Errors {
		data = append(data, []string{e.DocumentID, e.Message})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return errors.Wrap(err, "Report: render error table")
	}

	_, err = fmt.Fprintf(w, "%d documents failed:\n%s\n", len(result.Errors), table)
	return err
}
