package main

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/dvloznov/blueprint-importer/internal/caisy"
	"github.com/dvloznov/blueprint-importer/internal/config"
	"github.com/dvloznov/blueprint-importer/internal/fetch"
	"github.com/dvloznov/blueprint-importer/internal/gcsuploader"
	infra "github.com/dvloznov/blueprint-importer/internal/infra/bigquery"
	"github.com/dvloznov/blueprint-importer/internal/notionsync"
	"github.com/dvloznov/blueprint-importer/internal/pipeline"
	"github.com/dvloznov/blueprint-importer/internal/richtext"
	"github.com/dvloznov/blueprint-importer/internal/source"
)

// backend is a content repository the importer reads schemas from and writes documents to.
type backend interface {
	pipeline.SchemaSource
	pipeline.BatchWriter
}

// resources owns the clients opened for one command.
type resources struct {
	log     zerolog.Logger
	closers []func() error
}

func (r *resources) add(closer func() error) {
	r.closers = append(r.closers, closer)
}

// Close releases the clients in reverse order. Failures are logged since
// the command's result is already decided.
func (r *resources) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			r.log.Warn().Err(err).Msg("Failed to close client")
		}
	}
}

func (a *app) clientOptions() []option.ClientOption {
	if a.cfg.GCP.CredentialsFile == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(a.cfg.GCP.CredentialsFile)}
}

// newBackend builds the configured content backend. The Caisy client is
// returned separately so it can double as the asset store.
func (a *app) newBackend() (backend, *caisy.Client, error) {
	switch a.cfg.Backend {
	case config.BackendCaisy:
		client := caisy.NewClient(a.cfg.Caisy.Token,
			caisy.WithEndpoint(a.cfg.Caisy.Endpoint),
			caisy.WithRequestLogging(a.log),
		)
		return client, client, nil
	case config.BackendNotion:
		notion := notionsync.NewNotionClient(a.cfg.Notion.Token)
		return notionsync.NewBackend(notion, a.cfg.Notion.IDProperty), nil, nil
	default:
		return nil, nil, errors.Wrapf(config.ErrInvalidConfig, "unknown backend %q", a.cfg.Backend)
	}
}

// dependencies opens every client a run needs.
func (a *app) dependencies(ctx context.Context, res *resources) (pipeline.Dependencies, error) {
	be, caisyClient, err := a.newBackend()
	if err != nil {
		return pipeline.Dependencies{}, err
	}

	deps := pipeline.Dependencies{
		Schema:    be,
		Writer:    be,
		Converter: richtext.NewHTMLConverter(),
		Out:       a.out,
	}

	router := fetch.NewRouter().Handle(fetch.NewHTTPFetcher(nil), "http", "https")

	var storage *gcsuploader.GCSStorageService
	if a.cfg.NeedsGCS() {
		storage, err = gcsuploader.NewGCSStorageService(ctx, a.clientOptions()...)
		if err != nil {
			return pipeline.Dependencies{}, errors.WithHint(err, "check GOOGLE_APPLICATION_CREDENTIALS or --credentials-file")
		}
		res.add(storage.Close)
		deps.Storage = storage
		router.Handle(fetch.NewGCSFetcher(storage), "gs")
	}
	deps.Fetcher = router

	switch a.cfg.Assets.Store {
	case config.AssetStoreCaisy:
		if caisyClient != nil {
			deps.Assets = caisyClient
		}
	case config.AssetStoreGCS:
		deps.Assets = gcsuploader.NewAssetStore(storage, a.cfg.Assets.Bucket, a.cfg.Assets.Prefix, a.cfg.Assets.PublicBaseURL)
	}

	deps.Runs = infra.NoopRunRepository{}
	if a.cfg.LedgerEnabled() {
		repo, err := a.ledger(ctx, res)
		if err != nil {
			// The ledger is best-effort; the import still runs.
			a.log.Warn().Err(err).Msg("Run ledger unavailable, continuing without it")
		} else {
			deps.Runs = repo
		}
	}

	return deps, nil
}

func (a *app) ledger(ctx context.Context, res *resources) (*infra.BigQueryRunRepository, error) {
	repo, err := infra.NewBigQueryRunRepository(ctx, a.cfg.Ledger.ProjectID, a.cfg.Ledger.DatasetID, a.clientOptions()...)
	if err != nil {
		return nil, err
	}
	res.add(repo.Close)
	return repo, nil
}

// pipelineConfig translates the loaded settings into a run configuration.
func pipelineConfig(cfg *config.Config) pipeline.Config {
	return pipeline.Config{
		Backend:         cfg.Backend,
		ProjectID:       cfg.Caisy.ProjectID,
		BlueprintName:   cfg.Import.BlueprintName,
		Allowlist:       cfg.Import.Allowlist,
		RichTextColumns: cfg.Import.RichTextColumns,
		SourcePath:      cfg.Import.SourcePath,
		SourceOptions:   source.Options{Delimiter: cfg.Import.Delimiter},
		Map: pipeline.MapOptions{
			IDColumn:    cfg.Import.IDColumn,
			TitleColumn: cfg.Import.TitleColumn,
			AssetColumn: cfg.Import.AssetColumn,
			StatusID:    cfg.Import.StatusID,
		},
		MaxConcurrency: cfg.Import.MaxConcurrency,
		DryRun:         cfg.Import.DryRun,
	}
}
