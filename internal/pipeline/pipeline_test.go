package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bq "github.com/dvloznov/blueprint-importer/internal/bigquery"
	"github.com/dvloznov/blueprint-importer/internal/domain"
	"github.com/dvloznov/blueprint-importer/internal/fetch"
	"github.com/dvloznov/blueprint-importer/internal/richtext"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "posts.csv")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func testConfig(path string) Config {
	return Config{
		Backend:         "caisy",
		ProjectID:       "proj-1",
		BlueprintName:   DefaultBlueprintName,
		Allowlist:       DefaultAllowlist(),
		RichTextColumns: []string{DefaultRichTextColumn},
		SourcePath:      path,
		Map:             DefaultMapOptions(),
	}
}

type harness struct {
	schema  *fakeSchemaSource
	writer  *fakeBatchWriter
	fetcher *fakeFetcher
	store   *fakeAssetStore
	runs    *fakeRunRepository
	out     *bytes.Buffer
}

func newHarness() *harness {
	return &harness{
		schema:  &fakeSchemaSource{blueprint: blogBlueprint()},
		writer:  &fakeBatchWriter{},
		fetcher: &fakeFetcher{resources: map[string]*fetch.Resource{}},
		store:   &fakeAssetStore{},
		runs:    &fakeRunRepository{},
		out:     &bytes.Buffer{},
	}
}

func (h *harness) deps() Dependencies {
	return Dependencies{
		Schema:    h.schema,
		Writer:    h.writer,
		Assets:    h.store,
		Fetcher:   h.fetcher,
		Converter: richtext.NewHTMLConverter(),
		Runs:      h.runs,
		Out:       h.out,
	}
}

func fieldIDs(req domain.DocumentWriteRequest) []string {
	ids := make([]string, 0, len(req.Fields))
	for _, f := range req.Fields {
		ids = append(ids, f.FieldID)
	}
	return ids
}

func TestRun_EmptyThumbnailMakesNoAssetCall(t *testing.T) {
	h := newHarness()
	path := writeCSV(t, "id,title,text,thumbnail\n1,Hello,<p>hi</p>,\n")

	state, err := Run(context.Background(), testConfig(path), h.deps())
	require.NoError(t, err)

	require.Len(t, h.writer.docs, 1)
	req := h.writer.docs[0]
	assert.Equal(t, "1", req.DocumentID)
	assert.Equal(t, "Hello", req.Title)
	assert.Equal(t, DefaultStatusID, req.StatusID)
	assert.Equal(t, "bp-blog", req.BlueprintID)
	assert.Equal(t, []string{"f-title", "f-text"}, fieldIDs(req))

	text, ok := req.Fields[1].Data.(*richtext.Document)
	require.True(t, ok)
	assert.Equal(t, "hi", richtext.PlainText(text))

	assert.Zero(t, h.fetcher.calls.Load())
	assert.Empty(t, h.store.uploads)
	assert.Equal(t, 1, state.Relocation.Skipped)
}

func TestRun_RelocatedThumbnail(t *testing.T) {
	h := newHarness()
	h.fetcher.resources["https://example.com/a.png"] = &fetch.Resource{Data: []byte("png"), ContentType: "image/png"}
	h.store.nextID = func(domain.AssetMeta) string { return "asset-77" }
	path := writeCSV(t, "id,title,text,thumbnail\n1,Hello,<p>hi</p>,https://example.com/a.png\n")

	_, err := Run(context.Background(), testConfig(path), h.deps())
	require.NoError(t, err)

	require.Len(t, h.writer.docs, 1)
	req := h.writer.docs[0]
	assert.Equal(t, []string{"f-title", "f-text", "f-thumb"}, fieldIDs(req))
	assert.Equal(t, []string{"asset-77"}, req.Fields[2].Data)

	require.Len(t, h.store.uploads, 1)
	assert.Equal(t, "a.png", h.store.uploads[0].meta.Filename)
	assert.Equal(t, "proj-1", h.store.uploads[0].projectID)
}

func TestRun_FailedDownloadStillCommits(t *testing.T) {
	h := newHarness()
	path := writeCSV(t, "id,title,text,thumbnail\n1,Hello,<p>hi</p>,https://example.com/a.png\n")

	state, err := Run(context.Background(), testConfig(path), h.deps())
	require.NoError(t, err)

	assert.Equal(t, 1, h.writer.calls)
	require.Len(t, h.writer.docs, 1)
	assert.Equal(t, []string{"f-title", "f-text"}, fieldIDs(h.writer.docs[0]))
	assert.Equal(t, 1, state.Relocation.Failed)
	assert.Equal(t, int32(1), h.fetcher.calls.Load())
}

func TestRun_DropsUnmatchedColumnsAndKeepsRowOrder(t *testing.T) {
	h := newHarness()
	path := writeCSV(t, "id,title,text,thumbnail,author,slug\n"+
		"3,C,,,ann,c\n"+
		"1,A,<p>a</p>,,bob,a\n"+
		"2,B\n")

	state, err := Run(context.Background(), testConfig(path), h.deps())
	require.NoError(t, err)

	require.Len(t, h.writer.docs, 3)
	var ids []string
	for _, d := range h.writer.docs {
		ids = append(ids, d.DocumentID)
		for _, f := range d.Fields {
			assert.NotEqual(t, "f-author", f.FieldID, "author is outside the allowlist")
		}
	}
	assert.Equal(t, []string{"3", "1", "2"}, ids)
	assert.Equal(t, []string{"author", "slug"}, state.DroppedColumns)
}

func TestRun_StableDocumentIDsAcrossRuns(t *testing.T) {
	path := writeCSV(t, "id,title,text,thumbnail\nabc,One,,\ndef,Two,,\n")

	var runs [][]string
	for i := 0; i < 2; i++ {
		h := newHarness()
		_, err := Run(context.Background(), testConfig(path), h.deps())
		require.NoError(t, err)
		var ids []string
		for _, d := range h.writer.docs {
			ids = append(ids, d.DocumentID)
		}
		runs = append(runs, ids)
	}
	assert.Equal(t, runs[0], runs[1])
	assert.Equal(t, []string{"abc", "def"}, runs[0])
}

func TestRun_SchemaMismatchFailsFast(t *testing.T) {
	h := newHarness()
	h.schema.blueprint = &domain.Blueprint{BlueprintID: "bp", Groups: [][]domain.BlueprintField{{
		{Name: "title", FieldID: "f-title"},
		{Name: "text", FieldID: "f-text"},
	}}}
	path := writeCSV(t, "id,title,text,thumbnail\n1,Hello,<p>hi</p>,https://example.com/a.png\n")

	state, err := Run(context.Background(), testConfig(path), h.deps())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaFieldMismatch)

	assert.Zero(t, h.writer.calls)
	assert.Zero(t, h.fetcher.calls.Load())
	assert.Empty(t, state.Requests)

	require.Len(t, h.runs.rows, 1)
	assert.Equal(t, bq.RunStatusFailed, h.runs.rows[0].Status)
	assert.Contains(t, h.runs.rows[0].ErrorMessage, "blueprint fields do not match")
}

func TestRun_SchemaNotFound(t *testing.T) {
	h := newHarness()
	h.schema.blueprint = nil
	path := writeCSV(t, "id,title,text,thumbnail\n1,Hello,,\n")

	_, err := Run(context.Background(), testConfig(path), h.deps())
	assert.ErrorIs(t, err, ErrSchemaNotFound)
	assert.Zero(t, h.writer.calls)
}

func TestRun_PartialBatchIsNotAnError(t *testing.T) {
	h := newHarness()
	h.writer.result = &domain.BatchResult{
		SuccessfulDocumentIDs: []string{"1", "2"},
		Errors:                []domain.DocumentError{{DocumentID: "3", Message: "x"}},
	}
	path := writeCSV(t, "id,title,text,thumbnail\n1,A,,\n2,B,,\n3,C,,\n")

	state, err := Run(context.Background(), testConfig(path), h.deps())
	require.NoError(t, err)
	assert.Equal(t, 1, h.writer.calls)
	assert.Len(t, h.writer.docs, 3)

	pterm.DisableStyling()
	defer pterm.EnableStyling()

	var out bytes.Buffer
	require.NoError(t, Report(&out, state.Result))
	assert.Contains(t, out.String(), "successfully imported 2 documents")
	assert.Contains(t, out.String(), "1 documents failed")
	assert.Contains(t, out.String(), "3")
	assert.Contains(t, out.String(), "x")

	require.Len(t, h.runs.rows, 1)
	row := h.runs.rows[0]
	assert.Equal(t, bq.RunStatusPartial, row.Status)
	assert.Equal(t, int64(3), row.RowsRead)
	assert.Equal(t, int64(3), row.DocumentsSent)
	assert.Equal(t, int64(2), row.DocumentsSucceeded)
	assert.Equal(t, int64(1), row.DocumentsFailed)
	assert.Equal(t, "bp-blog", row.BlueprintID)
}

func TestRun_TransportFailureIsFatal(t *testing.T) {
	h := newHarness()
	h.writer.err = errors.New("connection reset by peer")
	path := writeCSV(t, "id,title,text,thumbnail\n1,A,,\n")

	state, err := Run(context.Background(), testConfig(path), h.deps())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBatchTransport)
	assert.Contains(t, err.Error(), "connection reset by peer")
	assert.Nil(t, state.Result)
}

func TestRun_NoRowsMakesNoCommit(t *testing.T) {
	h := newHarness()
	path := writeCSV(t, "id,title,text,thumbnail\n")

	state, err := Run(context.Background(), testConfig(path), h.deps())
	require.NoError(t, err)
	assert.Zero(t, h.writer.calls)
	assert.Empty(t, state.Result.SuccessfulDocumentIDs)

	var out bytes.Buffer
	require.NoError(t, Report(&out, state.Result))
	assert.Equal(t, "successfully imported 0 documents\n", out.String())
}

func TestRun_DryRun(t *testing.T) {
	h := newHarness()
	h.fetcher.resources["https://example.com/a.png"] = &fetch.Resource{Data: []byte("png")}
	path := writeCSV(t, "id,title,text,thumbnail\n1,Hello,<p>hi</p>,https://example.com/a.png\n")

	cfg := testConfig(path)
	cfg.DryRun = true
	_, err := Run(context.Background(), cfg, h.deps())
	require.NoError(t, err)

	assert.Zero(t, h.writer.calls)
	assert.Zero(t, h.fetcher.calls.Load())
	assert.Empty(t, h.store.uploads)

	var printed []map[string]any
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &printed))
	require.Len(t, printed, 1)
	assert.Equal(t, "1", printed[0]["documentId"])
	assert.Equal(t, "bp-blog", printed[0]["blueprintId"])

	require.Len(t, h.runs.rows, 1)
	assert.Equal(t, bq.RunStatusDryRun, h.runs.rows[0].Status)
	assert.Zero(t, h.runs.rows[0].DocumentsSent)
}

func TestRun_LedgerFailureDoesNotFailRun(t *testing.T) {
	h := newHarness()
	h.runs.err = errors.New("bigquery unavailable")
	path := writeCSV(t, "id,title,text,thumbnail\n1,A,,\n")

	_, err := Run(context.Background(), testConfig(path), h.deps())
	require.NoError(t, err)
	assert.Equal(t, 1, h.writer.calls)
}

func TestRun_WithoutLedger(t *testing.T) {
	h := newHarness()
	path := writeCSV(t, "id,title,text,thumbnail\n1,A,,\n")

	deps := h.deps()
	deps.Runs = nil
	state, err := Run(context.Background(), testConfig(path), deps)
	require.NoError(t, err)
	assert.Equal(t, 1, h.writer.calls)
	assert.Len(t, state.Result.SuccessfulDocumentIDs, 1)
}

func TestRun_RelocationDisabled(t *testing.T) {
	h := newHarness()
	path := writeCSV(t, "id,title,text,thumbnail\n1,A,,https://example.com/a.png\n")

	deps := h.deps()
	deps.Assets = nil
	state, err := Run(context.Background(), testConfig(path), deps)
	require.NoError(t, err)

	assert.Zero(t, h.fetcher.calls.Load())
	assert.Equal(t, []string{"f-title"}, fieldIDs(h.writer.docs[0]))
	assert.Equal(t, 1, state.Relocation.Skipped)
}

func TestRun_CancelledContext(t *testing.T) {
	h := newHarness()
	path := writeCSV(t, "id,title,text,thumbnail\n1,A,,\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, testConfig(path), h.deps())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, h.schema.calls)
	assert.Zero(t, h.writer.calls)
	require.Len(t, h.runs.rows, 1, "the ledger row is written even after cancellation")
}

func TestPipeline_ExecuteWrapsStepNumber(t *testing.T) {
	p := NewPipeline(&MapDocumentsStep{Options: DefaultMapOptions()})
	err := p.Execute(context.Background(), &PipelineState{})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "pipeline step 1 failed"), err.Error())
}
