package bigquery

import (
	"context"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

// Import run statuses.
const (
	RunStatusSuccess = "SUCCESS"
	RunStatusPartial = "PARTIAL" // the batch was accepted but some documents failed
	RunStatusFailed  = "FAILED"
	RunStatusDryRun  = "DRY_RUN"
)

// RunRepository records import runs in the ledger.
type RunRepository interface {
	// InsertImportRun stores one finished run.
	InsertImportRun(ctx context.Context, row *ImportRunRow) error

	// ListRecentImportRuns returns the newest runs first.
	ListRecentImportRuns(ctx context.Context, limit int) ([]*ImportRunRow, error)
}

// ImportRunRow is one row of the import_runs table.
type ImportRunRow struct {
	RunID   string     `bigquery:"run_id"`   // REQUIRED
	RunDate civil.Date `bigquery:"run_date"` // REQUIRED, partition column

	StartedTS  time.Time              `bigquery:"started_ts"`  // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"` // NULLABLE

	Backend       string `bigquery:"backend"`        // REQUIRED
	BlueprintName string `bigquery:"blueprint_name"` // REQUIRED
	BlueprintID   string `bigquery:"blueprint_id"`   // NULLABLE
	Source        string `bigquery:"source"`         // REQUIRED

	Status       string `bigquery:"status"`        // REQUIRED
	ErrorMessage string `bigquery:"error_message"` // NULLABLE

	RowsRead           int64 `bigquery:"rows_read"`
	DocumentsSent      int64 `bigquery:"documents_sent"`
	DocumentsSucceeded int64 `bigquery:"documents_succeeded"`
	DocumentsFailed    int64 `bigquery:"documents_failed"`
	AssetsRelocated    int64 `bigquery:"assets_relocated"`
	AssetsFailed       int64 `bigquery:"assets_failed"`

	DocumentErrors bigquery.NullJSON `bigquery:"document_errors"` // NULLABLE, [{documentId, errorMessage}]
}
