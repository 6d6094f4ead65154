package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/dvloznov/blueprint-importer/internal/domain"
	"github.com/dvloznov/blueprint-importer/internal/logger"
	"github.com/dvloznov/blueprint-importer/internal/source"
)

// PipelineStep represents a single step in the import pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Rows           []domain.RawRow
	Transformed    []*TransformedRow
	Schema         *ResolvedSchema
	Relocation     RelocationStats
	Requests       []domain.DocumentWriteRequest
	DroppedColumns []string
	Result         *domain.BatchResult
}

// Step 1: LoadSourceStep decodes the source file into raw rows.
type LoadSourceStep struct {
	Path    string
	Storage source.ObjectFetcher
	Options source.Options
}

func (s *LoadSourceStep) Execute(ctx context.Context, state *PipelineState) error {
	rows, err := source.Load(ctx, s.Path, s.Storage, s.Options)
	if err != nil {
		return err
	}
	state.Rows = rows
	return nil
}

// Step 2: TransformRowsStep converts the rich-text columns.
type TransformRowsStep struct {
	Columns   []string
	Converter Converter
}

func (s *TransformRowsStep) Execute(ctx context.Context, state *PipelineState) error {
	rows, err := TransformRows(state.Rows, s.Columns, s.Converter)
	if err != nil {
		return err
	}
	state.Transformed = rows
	return nil
}

// Step 3: ResolveSchemaStep fetches and validates the blueprint.
type ResolveSchemaStep struct {
	Source        SchemaSource
	ProjectID     string
	BlueprintName string
	Allowlist     []string
}

func (s *ResolveSchemaStep) Execute(ctx context.Context, state *PipelineState) error {
	schema, err := ResolveSchema(ctx, s.Source, s.ProjectID, s.BlueprintName, s.Allowlist)
	if err != nil {
		return err
	}
	log := logger.FromContext(ctx)
	log.Info().
		Str("blueprint", s.BlueprintName).
		Str("blueprint_id", schema.BlueprintID).
		Int("field_count", len(schema.Fields)).
		Msg("Resolved blueprint")
	state.Schema = schema
	return nil
}

// Step 4: RelocateAssetsStep moves external assets into the asset store.
// A nil Relocator leaves every row without an asset.
type RelocateAssetsStep struct {
	Relocator *Relocator
	Column    string
}

func (s *RelocateAssetsStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)
	if s.Relocator == nil {
		log.Info().Msg("Asset relocation disabled")
		state.Relocation = RelocationStats{Skipped: len(state.Transformed)}
		return nil
	}

	state.Relocation = s.Relocator.RelocateAll(ctx, state.Transformed, s.Column)
	log.Info().
		Int("relocated", state.Relocation.Relocated).
		Int("skipped", state.Relocation.Skipped).
		Int("failed", state.Relocation.Failed).
		Msg("Asset relocation completed")
	return nil
}

// Step 5: MapDocumentsStep builds one write request per row, in row order.
type MapDocumentsStep struct {
	Options MapOptions
}

func (s *MapDocumentsStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)
	if state.Schema == nil {
		return errors.New("MapDocumentsStep: schema not resolved")
	}

	dropped := make(map[string]bool)
	requests := make([]domain.DocumentWriteRequest, 0, len(state.Transformed))
	for _, row := range state.Transformed {
		req, cols := MapDocument(row, state.Schema, s.Options)
		for _, c := range cols {
			dropped[c] = true
		}
		if req.DocumentID != "" {
			if _, err := uuid.Parse(req.DocumentID); err != nil {
				log.Warn().
					Int("line", row.Line).
					Str("document_id", req.DocumentID).
					Msg("Document id is not a UUID, passing it through unchanged")
			}
		}
		requests = append(requests, req)
	}

	state.DroppedColumns = make([]string, 0, len(dropped))
	for c := range dropped {
		state.DroppedColumns = append(state.DroppedColumns, c)
	}
	sort.Strings(state.DroppedColumns)
	if len(state.DroppedColumns) > 0 {
		log.Debug().Strs("columns", state.DroppedColumns).Msg("Columns without a blueprint field were not imported")
	}

	state.Requests = requests
	return nil
}

// Step 6: CommitBatchStep writes all requests in one call. In dry-run mode
// the requests are printed as JSON to Out instead.
type CommitBatchStep struct {
	Writer    BatchWriter
	ProjectID string
	DryRun    bool
	Out       io.Writer
}

func (s *CommitBatchStep) Execute(ctx context.Context, state *PipelineState) error {
	if s.DryRun {
		log := logger.FromContext(ctx)
		log.Info().
			Int("document_count", len(state.Requests)).
			Msg("[DRY RUN] Would commit document batch")
		if s.Out == nil {
			return nil
		}
		enc := json.NewEncoder(s.Out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(state.Requests); err != nil {
			return fmt.Errorf("CommitBatchStep: encode requests: %w", err)
		}
		return nil
	}

	result, err := CommitBatch(ctx, s.Writer, s.ProjectID, state.Requests)
	if err != nil {
		return err
	}
	state.Result = result
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "pipeline step %d not started", i+1)
		}
		if err := step.Execute(ctx, state); err != nil {
			return errors.Wrapf(err, "pipeline step %d failed", i+1)
		}
	}
	return nil
}
