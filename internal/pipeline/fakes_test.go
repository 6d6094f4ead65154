package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	bq "github.com/dvloznov/blueprint-importer/internal/bigquery"
	"github.com/dvloznov/blueprint-importer/internal/domain"
	"github.com/dvloznov/blueprint-importer/internal/fetch"
)

type fakeSchemaSource struct {
	blueprint *domain.Blueprint
	err       error
	calls     int
}

func (f *fakeSchemaSource) GetBlueprintByName(_ context.Context, _, _ string) (*domain.Blueprint, error) {
	f.calls++
	return f.blueprint, f.err
}

type fakeBatchWriter struct {
	result *domain.BatchResult
	err    error
	calls  int
	docs   []domain.DocumentWriteRequest
}

func (f *fakeBatchWriter) PutManyDocuments(_ context.Context, _ string, docs []domain.DocumentWriteRequest) (*domain.BatchResult, error) {
	f.calls++
	f.docs = docs
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.DocumentID)
	}
	return &domain.BatchResult{SuccessfulDocumentIDs: ids}, nil
}

// fakeFetcher serves canned resources by URL; unknown URLs fail.
type fakeFetcher struct {
	resources map[string]*fetch.Resource
	block     map[string]chan struct{} // optional gates per URL
	calls     atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) (*fetch.Resource, error) {
	f.calls.Add(1)
	if gate, ok := f.block[rawURL]; ok {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if res, ok := f.resources[rawURL]; ok {
		return res, nil
	}
	return nil, errors.New("connection refused")
}

type uploadCall struct {
	projectID string
	data      []byte
	meta      domain.AssetMeta
}

type fakeAssetStore struct {
	mu      sync.Mutex
	err     error
	uploads []uploadCall
	nextID  func(meta domain.AssetMeta) string
}

func (f *fakeAssetStore) UploadAsset(_ context.Context, projectID string, data []byte, meta domain.AssetMeta) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.uploads = append(f.uploads, uploadCall{projectID: projectID, data: data, meta: meta})
	if f.nextID != nil {
		return f.nextID(meta), nil
	}
	return "asset-" + meta.Filename, nil
}

type fakeRunRepository struct {
	rows []*bq.ImportRunRow
	err  error
}

func (f *fakeRunRepository) InsertImportRun(_ context.Context, row *bq.ImportRunRow) error {
	f.rows = append(f.rows, row)
	return f.err
}

func (f *fakeRunRepository) ListRecentImportRuns(context.Context, int) ([]*bq.ImportRunRow, error) {
	return f.rows, nil
}

func blogBlueprint() *domain.Blueprint {
	return &domain.Blueprint{
		BlueprintID: "bp-blog",
		Name:        DefaultBlueprintName,
		Groups: [][]domain.BlueprintField{
			{
				{Name: "title", FieldID: "f-title"},
				{Name: "text", FieldID: "f-text"},
				{Name: "thumbnail", FieldID: "f-thumb"},
				{Name: "author", FieldID: "f-author"},
			},
		},
	}
}
