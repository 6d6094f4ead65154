// Package bigquery stores the import run ledger in BigQuery.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/option"

	bq "github.com/dvloznov/blueprint-importer/internal/bigquery"
	"github.com/dvloznov/blueprint-importer/internal/logger"
)

// Re-export interfaces from shared package.
type RunRepository = bq.RunRepository

// BigQueryRunRepository is the concrete implementation of RunRepository
// that interacts with BigQuery. It holds a shared BigQuery client to avoid
// creating a new connection for each operation.
type BigQueryRunRepository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewBigQueryRunRepository creates a new instance of BigQueryRunRepository
// with a shared BigQuery client.
func NewBigQueryRunRepository(ctx context.Context, projectID, datasetID string, opts ...option.ClientOption) (*BigQueryRunRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryRunRepository: creating client: %w", err)
	}
	return &BigQueryRunRepository{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
	}, nil
}

// Close closes the BigQuery client connection. This should be called when
// the repository is no longer needed to release resources.
func (r *BigQueryRunRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// InsertImportRun delegates to InsertImportRunWithClient with the shared client.
func (r *BigQueryRunRepository) InsertImportRun(ctx context.Context, row *ImportRunRow) error {
	return InsertImportRunWithClient(ctx, r.client, r.datasetID, row)
}

// ListRecentImportRuns delegates to ListRecentImportRunsWithClient with the shared client.
func (r *BigQueryRunRepository) ListRecentImportRuns(ctx context.Context, limit int) ([]*ImportRunRow, error) {
	return ListRecentImportRunsWithClient(ctx, r.client, r.datasetID, limit)
}

// Migrate applies pending ledger migrations.
func (r *BigQueryRunRepository) Migrate(ctx context.Context, appliedBy string) (int, error) {
	return NewMigrator(r.client, r.projectID, r.datasetID, appliedBy).Apply(ctx)
}

// NoopRunRepository discards runs. It stands in when no ledger is configured.
type NoopRunRepository struct{}

// InsertImportRun logs the run at debug level and drops it.
func (NoopRunRepository) InsertImportRun(ctx context.Context, row *ImportRunRow) error {
	log := logger.FromContext(ctx)
	log.Debug().
		Str("run_id", row.RunID).
		Str("status", row.Status).
		Msg("Run ledger disabled, not recording run")
	return nil
}

// ListRecentImportRuns always returns no runs.
func (NoopRunRepository) ListRecentImportRuns(context.Context, int) ([]*ImportRunRow, error) {
	return nil, nil
}
