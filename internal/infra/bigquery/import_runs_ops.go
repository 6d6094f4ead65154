package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

const importRunsTable = "import_runs"

// InsertImportRun inserts one run into <dataset>.import_runs.
func InsertImportRun(ctx context.Context, projectID, datasetID string, row *ImportRunRow) error {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return fmt.Errorf("InsertImportRun: bigquery client: %w", err)
	}
	defer client.Close()

	return InsertImportRunWithClient(ctx, client, datasetID, row)
}

// InsertImportRunWithClient inserts one run using the provided BigQuery client.
func InsertImportRunWithClient(ctx context.Context, client *bigquery.Client, datasetID string, row *ImportRunRow) error {
	q := client.Query(fmt.Sprintf(`
		INSERT %s.%s (
			run_id,
			run_date,
			started_ts,
			finished_ts,
			backend,
			blueprint_name,
			blueprint_id,
			source,
			status,
			error_message,
			rows_read,
			documents_sent,
			documents_succeeded,
			documents_failed,
			assets_relocated,
			assets_failed,
			document_errors
		)
		VALUES (
			@run_id,
			@run_date,
			@started_ts,
			@finished_ts,
			@backend,
			@blueprint_name,
			@blueprint_id,
			@source,
			@status,
			@error_message,
			@rows_read,
			@documents_sent,
			@documents_succeeded,
			@documents_failed,
			@assets_relocated,
			@assets_failed,
			@document_errors
		)
	`, datasetID, importRunsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: row.RunID},
		{Name: "run_date", Value: row.RunDate},
		{Name: "started_ts", Value: row.StartedTS},
		{Name: "finished_ts", Value: row.FinishedTS},
		{Name: "backend", Value: row.Backend},
		{Name: "blueprint_name", Value: row.BlueprintName},
		{Name: "blueprint_id", Value: row.BlueprintID},
		{Name: "source", Value: row.Source},
		{Name: "status", Value: row.Status},
		{Name: "error_message", Value: row.ErrorMessage},
		{Name: "rows_read", Value: row.RowsRead},
		{Name: "documents_sent", Value: row.DocumentsSent},
		{Name: "documents_succeeded", Value: row.DocumentsSucceeded},
		{Name: "documents_failed", Value: row.DocumentsFailed},
		{Name: "assets_relocated", Value: row.AssetsRelocated},
		{Name: "assets_failed", Value: row.AssetsFailed},
		{Name: "document_errors", Value: row.DocumentErrors},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("InsertImportRun: running insert query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("InsertImportRun: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("InsertImportRun: job error: %w", err)
	}

	return nil
}

// ListRecentImportRunsWithClient returns up to limit runs, newest first.
func ListRecentImportRunsWithClient(ctx context.Context, client *bigquery.Client, datasetID string, limit int) ([]*ImportRunRow, error) {
	if limit <= 0 {
		limit = 20
	}

	q := client.Query(fmt.Sprintf(`
		SELECT *
		FROM %s.%s
		ORDER BY started_ts DESC
		LIMIT @limit
	`, datasetID, importRunsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "limit", Value: limit},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListRecentImportRunsWithClient: running query: %w", err)
	}

	var runs []*ImportRunRow
	for {
		var row ImportRunRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListRecentImportRunsWithClient: iterating: %w", err)
		}
		runs = append(runs, &row)
	}

	return runs, nil
}
