package pipeline

import (
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/blueprint-importer/internal/domain"
	"github.com/dvloznov/blueprint-importer/internal/logger"
)

// Relocation outcomes.
const (
	outcomeSkipped = iota
	outcomeRelocated
	outcomeFailed
)

// RelocationStats counts relocation outcomes for one run.
type RelocationStats struct {
	Relocated int
	Skipped   int // no asset value
	Failed    int
}

// Relocator copies externally hosted assets into the asset store.
// It never fails a row: every problem degrades to "no asset".
type Relocator struct {
	fetcher   Fetcher
	store     AssetStore
	projectID string

	// MaxConcurrency caps parallel relocations in RelocateAll; zero means unbounded.
	MaxConcurrency int

	// DryRun validates values without downloading or uploading anything.
	DryRun bool
}

// NewRelocator creates a Relocator uploading into projectID.
func NewRelocator(fetcher Fetcher, store AssetStore, projectID string) *Relocator {
	return &Relocator{fetcher: fetcher, store: store, projectID: projectID}
}

// Relocate downloads the asset behind value and uploads it, returning the new
// reference. It returns nil for an empty value without touching the network,
// and nil after logging for any failure.
func (r *Relocator) Relocate(ctx context.Context, value string) *domain.AssetReference {
	ref, _ := r.relocate(ctx, value)
	return ref
}

func (r *Relocator) relocate(ctx context.Context, value string) (*domain.AssetReference, int) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, outcomeSkipped
	}

	log := logger.FromContext(ctx).With().Str("asset_url", value).Logger()

	u, err := parseAssetURL(value)
	if err != nil {
		log.Warn().Err(err).Msg("Invalid asset URL, continuing without asset")
		return nil, outcomeFailed
	}

	if sf, ok := r.fetcher.(schemeFetcher); ok && !sf.Supports(u.Scheme) {
		log.Warn().Str("scheme", u.Scheme).Msg("No fetcher for asset URL scheme, continuing without asset")
		return nil, outcomeFailed
	}

	filename, ok := assetFilename(u)
	if !ok {
		log.Warn().Msg("Asset URL has no file name, continuing without asset")
		return nil, outcomeFailed
	}

	if r.DryRun {
		log.Info().Str("filename", filename).Msg("[DRY RUN] Would relocate asset")
		return nil, outcomeSkipped
	}

	res, err := r.fetcher.Fetch(ctx, value)
	if err != nil {
		log.Warn().Err(err).Msg("Asset download failed, continuing without asset")
		return nil, outcomeFailed
	}

	id, err := r.store.UploadAsset(ctx, r.projectID, res.Data, domain.AssetMeta{
		Filename:    filename,
		ContentType: res.ContentType,
	})
	if err != nil {
		log.Warn().Err(err).Str("filename", filename).Msg("Asset upload failed, continuing without asset")
		return nil, outcomeFailed
	}
	if id == "" {
		log.Warn().Str("filename", filename).Msg("Asset store returned no id, continuing without asset")
		return nil, outcomeFailed
	}

	log.Debug().
		Str("filename", filename).
		Int("bytes", len(res.Data)).
		Str("asset_id", id).
		Msg("Relocated asset")
	return &domain.AssetReference{DocumentID: id}, outcomeRelocated
}

// RelocateAll relocates the asset column of every row concurrently and waits
// for all of them. Each outcome is stored on its own row, so row order is
// unaffected by completion order.
func (r *Relocator) RelocateAll(ctx context.Context, rows []*TransformedRow, column string) RelocationStats {
	outcomes := make([]int, len(rows))

	var g errgroup.Group
	if r.MaxConcurrency > 0 {
		g.SetLimit(r.MaxConcurrency)
	}

	for i, row := range rows {
		cell, ok := row.Get(column)
		if !ok || cell.Text == "" {
			row.Asset = nil
			outcomes[i] = outcomeSkipped
			continue
		}

		rowCtx := logger.WithContext(ctx, logger.FromContext(ctx).With().Int("line", row.Line).Logger())
		g.Go(func() error {
			row.Asset, outcomes[i] = r.relocate(rowCtx, cell.Text)
			return nil
		})
	}
	_ = g.Wait()

	var stats RelocationStats
	for _, o := range outcomes {
		switch o {
		case outcomeRelocated:
			stats.Relocated++
		case outcomeFailed:
			stats.Failed++
		default:
			stats.Skipped++
		}
	}
	return stats
}

// schemeFetcher is a Fetcher that knows which URL schemes it can serve.
type schemeFetcher interface {
	Supports(scheme string) bool
}

var assetSchemes = map[string]bool{"http": true, "https": true, "gs": true}

// parseAssetURL accepts absolute http, https and gs URLs.
func parseAssetURL(value string) (*url.URL, error) {
	u, err := url.Parse(value)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.New("URL must be absolute")
	}
	if !assetSchemes[strings.ToLower(u.Scheme)] {
		return nil, errors.Newf("unsupported URL scheme %q", u.Scheme)
	}
	return u, nil
}

// assetFilename derives the uploaded file name from the last path segment.
func assetFilename(u *url.URL) (string, bool) {
	name := path.Base(u.Path)
	switch name {
	case "", "/", ".":
		return "", false
	}
	return name, true
}
