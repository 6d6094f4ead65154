package domain

// DocumentField is one (field id, value) entry of a document write.
// Data is a string, a rich-text document tree or a list of asset ids.
type DocumentField struct {
	FieldID string `json:"blueprintFieldId"`
	Data    any    `json:"data"`
}

// DocumentWriteRequest is one document upsert sent in the batch.
type DocumentWriteRequest struct {
	DocumentID  string          `json:"documentId,omitempty"` // empty lets the repository assign one
	Title       string          `json:"title"`
	StatusID    int             `json:"statusId"`
	BlueprintID string          `json:"blueprintId"`
	Fields      []DocumentField `json:"fields"`
}

// DocumentError is a per-document failure reported inside a batch response.
type DocumentError struct {
	DocumentID string `json:"documentId"`
	Message    string `json:"errorMessage"`
}

// BatchResult is the repository's verdict on a batch write.
type BatchResult struct {
	SuccessfulDocumentIDs []string        `json:"successfulDocumentIds"`
	Errors                []DocumentError `json:"errors"`
}

// HasErrors reports whether any document in the batch failed.
func (r *BatchResult) HasErrors() bool {
	return r != nil && len(r.Errors) > 0
}
