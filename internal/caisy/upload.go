package caisy

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/cockroachdb/errors"

	"github.com/dvloznov/blueprint-importer/internal/domain"
)

const createAssetUploadMutation = `mutation CreateAssetUpload($input: CreateAssetUploadRequest) {
  CreateAssetUpload(input: $input) {
    documentId
    uploadUrl
  }
}`

type createAssetUploadData struct {
	CreateAssetUpload *struct {
		DocumentID string `json:"documentId"`
		UploadURL  string `json:"uploadUrl"`
	} `json:"CreateAssetUpload"`
}

// UploadAsset stores data in the project's asset store and returns the id of
// the asset document. The upload is two calls: reserve an asset document and
// a signed upload URL, then PUT the bytes to that URL.
func (c *Client) UploadAsset(ctx context.Context, projectID string, data []byte, meta domain.AssetMeta) (string, error) {
	var reserved createAssetUploadData
	err := c.do(ctx, createAssetUploadMutation, map[string]any{
		"input": map[string]any{
			"projectId": projectID,
			"meta":      meta,
		},
	}, &reserved)
	if err != nil {
		return "", errors.Wrapf(err, "UploadAsset: reserve %s", meta.Filename)
	}
	if reserved.CreateAssetUpload == nil || reserved.CreateAssetUpload.UploadURL == "" {
		return "", errors.Newf("UploadAsset: no upload URL returned for %s", meta.Filename)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, reserved.CreateAssetUpload.UploadURL, bytes.NewReader(data))
	if err != nil {
		return "", errors.Wrap(err, "UploadAsset: build upload request")
	}
	req.ContentLength = int64(len(data))
	if meta.ContentType != "" {
		req.Header.Set("Content-Type", meta.ContentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "UploadAsset: upload %s", meta.Filename)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return "", errors.Wrapf(&StatusError{StatusCode: resp.StatusCode, Body: string(body)},
			"UploadAsset: upload %s", meta.Filename)
	}

	return reserved.CreateAssetUpload.DocumentID, nil
}
