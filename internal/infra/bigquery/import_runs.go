package bigquery

import (
	"encoding/json"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	bq "github.com/dvloznov/blueprint-importer/internal/bigquery"
	"github.com/dvloznov/blueprint-importer/internal/domain"
)

// ImportRunRow is re-exported from the shared package.
type ImportRunRow = bq.ImportRunRow

const maxErrorMessageLen = 2000

// NewImportRunRow starts a ledger row for a run beginning at started.
func NewImportRunRow(runID string, started time.Time) *ImportRunRow {
	return &ImportRunRow{
		RunID:     runID,
		RunDate:   civil.DateOf(started.UTC()),
		StartedTS: started.UTC(),
	}
}

// Finish stamps the finishing time and status. A non-nil runErr marks the run
// failed and records its message.
func Finish(row *ImportRunRow, finished time.Time, result *domain.BatchResult, runErr error) {
	row.FinishedTS = bigquery.NullTimestamp{Timestamp: finished.UTC(), Valid: true}

	if result != nil {
		row.DocumentsSucceeded = int64(len(result.SuccessfulDocumentIDs))
		row.DocumentsFailed = int64(len(result.Errors))
		if len(result.Errors) > 0 {
			if raw, err := json.Marshal(result.Errors); err == nil {
				row.DocumentErrors = bigquery.NullJSON{JSONVal: string(raw), Valid: true}
			}
		}
	}

	switch {
	case runErr != nil:
		row.Status = bq.RunStatusFailed
		row.ErrorMessage = truncateMessage(runErr.Error())
	case row.Status == bq.RunStatusDryRun:
	case result.HasErrors():
		row.Status = bq.RunStatusPartial
	default:
		row.Status = bq.RunStatusSuccess
	}
}

func truncateMessage(msg string) string {
	if len(msg) > maxErrorMessageLen {
		return msg[:maxErrorMessageLen]
	}
	return msg
}
