package pipeline

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/blueprint-importer/internal/domain"
)

func TestCommitBatch_NoRequests(t *testing.T) {
	w := &fakeBatchWriter{}
	result, err := CommitBatch(context.Background(), w, "proj", nil)
	require.NoError(t, err)
	assert.Zero(t, w.calls)
	assert.NotNil(t, result)
	assert.False(t, result.HasErrors())
}

func TestCommitBatch_NilResultBecomesEmpty(t *testing.T) {
	w := &nilResultWriter{}
	result, err := CommitBatch(context.Background(), w, "proj", []domain.DocumentWriteRequest{{DocumentID: "1"}})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Empty(t, result.SuccessfulDocumentIDs)
}

type nilResultWriter struct{}

func (nilResultWriter) PutManyDocuments(context.Context, string, []domain.DocumentWriteRequest) (*domain.BatchResult, error) {
	return nil, nil
}

func TestCommitBatch_SendsAllRequestsInOrder(t *testing.T) {
	w := &fakeBatchWriter{}
	reqs := []domain.DocumentWriteRequest{{DocumentID: "b"}, {DocumentID: "a"}, {DocumentID: "c"}}

	result, err := CommitBatch(context.Background(), w, "proj", reqs)
	require.NoError(t, err)
	assert.Equal(t, 1, w.calls)
	assert.Equal(t, []string{"b", "a", "c"}, result.SuccessfulDocumentIDs)
}

func TestReport(t *testing.T) {
	pterm.DisableStyling()
	defer pterm.EnableStyling()

	tests := []struct {
		name     string
		result   *domain.BatchResult
		contains []string
		lines    int
	}{
		{
			name:     "all succeeded",
			result:   &domain.BatchResult{SuccessfulDocumentIDs: []string{"1", "2"}},
			contains: []string{"successfully imported 2 documents"},
			lines:    1,
		},
		{
			name: "with errors",
			result: &domain.BatchResult{
				SuccessfulDocumentIDs: []string{"1", "2"},
				Errors:                []domain.DocumentError{{DocumentID: "doc-3", Message: "field too long"}},
			},
			contains: []string{"successfully imported 2 documents", "1 documents failed:", "Document ID", "doc-3", "field too long"},
		},
		{
			name:     "nil result",
			result:   nil,
			contains: []string{"successfully imported 0 documents"},
			lines:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Report(&buf, tt.result))
			for _, s := range tt.contains {
				assert.Contains(t, buf.String(), s)
			}
			if tt.lines > 0 {
				assert.Equal(t, tt.lines, strings.Count(buf.String(), "\n"))
			}
		})
	}
}
