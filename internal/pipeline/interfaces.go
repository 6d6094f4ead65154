package pipeline

import (
	"context"

	bq "github.com/dvloznov/blueprint-importer/internal/bigquery"
	"github.com/dvloznov/blueprint-importer/internal/domain"
	"github.com/dvloznov/blueprint-importer/internal/fetch"
	"github.com/dvloznov/blueprint-importer/internal/richtext"
)

// SchemaSource looks up blueprint definitions in the content repository.
type SchemaSource interface {
	// GetBlueprintByName returns (nil, nil) when no blueprint has that name.
	GetBlueprintByName(ctx context.Context, projectID, name string) (*domain.Blueprint, error)
}

// AssetStore keeps relocated asset bytes and returns a reference id.
type AssetStore interface {
	UploadAsset(ctx context.Context, projectID string, data []byte, meta domain.AssetMeta) (string, error)
}

// BatchWriter submits all document writes in one call.
type BatchWriter interface {
	PutManyDocuments(ctx context.Context, projectID string, docs []domain.DocumentWriteRequest) (*domain.BatchResult, error)
}

// Fetcher downloads external resources.
type Fetcher = fetch.Fetcher

// Converter turns raw rich-text column values into document trees.
type Converter = richtext.Converter

// RunRepository records finished runs in the ledger.
type RunRepository = bq.RunRepository
