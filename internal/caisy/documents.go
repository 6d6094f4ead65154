package caisy

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/dvloznov/blueprint-importer/internal/domain"
)

const putManyDocumentsMutation = `mutation PutManyDocuments($input: PutManyDocumentsRequest) {
  PutManyDocuments(input: $input) {
    successfulDocumentIds
    errors {
      documentId
      errorMessage
    }
  }
}`

type putManyDocumentsData struct {
	PutManyDocuments *domain.BatchResult `json:"PutManyDocuments"`
}

// PutManyDocuments upserts all documents in a single call. Per-document
// failures come back inside the result; an error means the call itself failed.
func (c *Client) PutManyDocuments(ctx context.Context, projectID string, docs []domain.DocumentWriteRequest) (*domain.BatchResult, error) {
	var data putManyDocumentsData
	err := c.do(ctx, putManyDocumentsMutation, map[string]any{
		"input": map[string]any{
			"projectId":      projectID,
			"documentInputs": docs,
		},
	}, &data)
	if err != nil {
		return nil, errors.Wrapf(err, "PutManyDocuments: %d documents", len(docs))
	}

	if data.PutManyDocuments == nil {
		return &domain.BatchResult{}, nil
	}
	return data.PutManyDocuments, nil
}
