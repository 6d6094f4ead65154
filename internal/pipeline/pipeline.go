// Package pipeline imports tabular rows into a blueprint of the content
// repository: rows are transformed, the blueprint is resolved, external
// assets are relocated and all documents are committed in one batch.
package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	bq "github.com/dvloznov/blueprint-importer/internal/bigquery"
	infra "github.com/dvloznov/blueprint-importer/internal/infra/bigquery"
	"github.com/dvloznov/blueprint-importer/internal/logger"
	"github.com/dvloznov/blueprint-importer/internal/source"
)

// Config is everything a run needs to know, built once at startup.
type Config struct {
	Backend         string // recorded in the run ledger
	ProjectID       string
	BlueprintName   string
	Allowlist       []string
	RichTextColumns []string
	SourcePath      string
	SourceOptions   source.Options
	Map             MapOptions
	MaxConcurrency  int
	DryRun          bool
}

// Dependencies are the collaborators a run talks to.
type Dependencies struct {
	Storage   source.ObjectFetcher // gs:// source paths; may be nil for local files
	Schema    SchemaSource
	Writer    BatchWriter
	Assets    AssetStore // nil disables asset relocation
	Fetcher   Fetcher
	Converter Converter
	Runs      RunRepository // nil means infra.NoopRunRepository
	Out       io.Writer     // dry-run request dump
}

// NewImportPipeline creates the standard 6-step import pipeline.
func NewImportPipeline(cfg Config, deps Dependencies) *Pipeline {
	var relocator *Relocator
	if deps.Assets != nil && deps.Fetcher != nil {
		relocator = NewRelocator(deps.Fetcher, deps.Assets, cfg.ProjectID)
		relocator.MaxConcurrency = cfg.MaxConcurrency
		relocator.DryRun = cfg.DryRun
	}

	return NewPipeline(
		&LoadSourceStep{Path: cfg.SourcePath, Storage: deps.Storage, Options: cfg.SourceOptions},
		&TransformRowsStep{Columns: cfg.RichTextColumns, Converter: deps.Converter},
		&ResolveSchemaStep{
			Source:        deps.Schema,
			ProjectID:     cfg.ProjectID,
			BlueprintName: cfg.BlueprintName,
			Allowlist:     cfg.Allowlist,
		},
		&RelocateAssetsStep{Relocator: relocator, Column: cfg.Map.AssetColumn},
		&MapDocumentsStep{Options: cfg.Map},
		&CommitBatchStep{Writer: deps.Writer, ProjectID: cfg.ProjectID, DryRun: cfg.DryRun, Out: deps.Out},
	)
}

// Run executes one import and records it in the run ledger. The ledger write
// is best-effort: its failure is logged and never changes the run's outcome.
func Run(ctx context.Context, cfg Config, deps Dependencies) (*PipelineState, error) {
	runID := uuid.NewString()
	log := logger.FromContext(ctx).With().Str("run_id", runID).Logger()
	ctx = logger.WithContext(ctx, log)

	log.Info().
		Str("source", cfg.SourcePath).
		Str("blueprint", cfg.BlueprintName).
		Bool("dry_run", cfg.DryRun).
		Msg("Starting import")

	row := infra.NewImportRunRow(runID, time.Now())
	row.Backend = cfg.Backend
	row.BlueprintName = cfg.BlueprintName
	row.Source = cfg.SourcePath
	if cfg.DryRun {
		row.Status = bq.RunStatusDryRun
	}

	state := &PipelineState{}
	runErr := NewImportPipeline(cfg, deps).Execute(ctx, state)

	row.RowsRead = int64(len(state.Rows))
	if state.Schema != nil {
		row.BlueprintID = state.Schema.BlueprintID
	}
	if !cfg.DryRun {
		row.DocumentsSent = int64(len(state.Requests))
	}
	row.AssetsRelocated = int64(state.Relocation.Relocated)
	row.AssetsFailed = int64(state.Relocation.Failed)
	infra.Finish(row, time.Now(), state.Result, runErr)

	runs := deps.Runs
	if runs == nil {
		runs = infra.NoopRunRepository{}
	}
	// The run context may already be cancelled; the ledger row is still written.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := runs.InsertImportRun(recordCtx, row); err != nil {
		log.Error().Err(err).Msg("Failed to record import run")
	}

	if runErr != nil {
		return state, runErr
	}

	log.Info().
		Str("status", row.Status).
		Int("rows", len(state.Rows)).
		Int("assets_relocated", state.Relocation.Relocated).
		Int("assets_failed", state.Relocation.Failed).
		Msg("Import finished")
	return state, nil
}
