package caisy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/blueprint-importer/internal/domain"
)

type capturedRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// fakeCaisy answers GraphQL posts with canned payloads keyed by operation name.
type fakeCaisy struct {
	t         *testing.T
	responses map[string]string
	requests  []capturedRequest
	tokens    []string
	uploads   [][]byte
	uploadErr int
}

func (f *fakeCaisy) handler(srvURL func() string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			body, _ := io.ReadAll(r.Body)
			f.uploads = append(f.uploads, body)
			if f.uploadErr != 0 {
				w.WriteHeader(f.uploadErr)
				return
			}
			w.WriteHeader(http.StatusOK)
			return
		}

		var req capturedRequest
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		f.requests = append(f.requests, req)
		f.tokens = append(f.tokens, r.Header.Get(tokenHeader))

		for op, resp := range f.responses {
			if strings.Contains(req.Query, op+"(") {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(strings.ReplaceAll(resp, "{{URL}}", srvURL())))
				return
			}
		}
		http.Error(w, "unknown operation", http.StatusBadRequest)
	})
}

func newFakeServer(t *testing.T, responses map[string]string) (*fakeCaisy, *httptest.Server) {
	f := &fakeCaisy{t: t, responses: responses}
	var srv *httptest.Server
	srv = httptest.NewServer(f.handler(func() string { return srv.URL }))
	t.Cleanup(srv.Close)
	return f, srv
}

func TestGetBlueprintByName(t *testing.T) {
	fake, srv := newFakeServer(t, map[string]string{
		"GetBlueprintByName": `{"data":{"GetBlueprintByName":{"blueprint":{
			"blueprintId":"bp-1","name":"BlogPost",
			"groups":[{"name":"main","fields":[
				{"blueprintFieldId":"f-title","name":"title","type":"STRING"},
				{"blueprintFieldId":"f-text","name":"text","type":"RICHTEXT"}
			]},{"name":"seo","fields":[]}]}}}}`,
	})

	client := NewClient("secret", WithEndpoint(srv.URL), WithHTTPClient(srv.Client()))
	bp, err := client.GetBlueprintByName(context.Background(), "proj-1", "BlogPost")
	require.NoError(t, err)
	require.NotNil(t, bp)

	assert.Equal(t, "bp-1", bp.BlueprintID)
	require.Len(t, bp.Groups, 2)
	assert.Equal(t, []domain.BlueprintField{
		{Name: "title", FieldID: "f-title", Type: "STRING"},
		{Name: "text", FieldID: "f-text", Type: "RICHTEXT"},
	}, bp.Groups[0])

	require.Len(t, fake.requests, 1)
	input := fake.requests[0].Variables["input"].(map[string]any)
	assert.Equal(t, "BlogPost", input["blueprintName"])
	assert.Equal(t, "proj-1", input["projectId"])
	assert.Equal(t, []string{"secret"}, fake.tokens)
}

func TestGetBlueprintByName_NotFound(t *testing.T) {
	_, srv := newFakeServer(t, map[string]string{
		"GetBlueprintByName": `{"data":{"GetBlueprintByName":{"blueprint":null}}}`,
	})

	bp, err := NewClient("t", WithEndpoint(srv.URL)).GetBlueprintByName(context.Background(), "p", "Missing")
	require.NoError(t, err)
	assert.Nil(t, bp)
}

func TestGetBlueprintByName_GraphQLError(t *testing.T) {
	_, srv := newFakeServer(t, map[string]string{
		"GetBlueprintByName": `{"errors":[{"message":"unauthorized"}]}`,
	})

	_, err := NewClient("t", WithEndpoint(srv.URL)).GetBlueprintByName(context.Background(), "p", "BlogPost")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGraphQL)
	assert.Contains(t, err.Error(), "unauthorized")
}

func TestGetBlueprintByName_JoinsGraphQLErrors(t *testing.T) {
	_, srv := newFakeServer(t, map[string]string{
		"GetBlueprintByName": `{"data":null,"errors":[{"message":"project not found"},{"message":"token expired"}]}`,
	})

	_, err := NewClient("t", WithEndpoint(srv.URL)).GetBlueprintByName(context.Background(), "p", "BlogPost")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGraphQL)
	assert.Contains(t, err.Error(), "project not found; token expired")

	var statusErr *StatusError
	assert.False(t, errors.As(err, &statusErr), "a GraphQL error is not an HTTP failure")
}

func TestGetBlueprintByName_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid token"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewClient("t", WithEndpoint(srv.URL)).GetBlueprintByName(context.Background(), "p", "BlogPost")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrGraphQL)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "invalid token")
}

func TestGetBlueprintByName_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	_, err := NewClient("t", WithEndpoint(endpoint)).GetBlueprintByName(context.Background(), "p", "BlogPost")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrGraphQL)
	assert.Contains(t, err.Error(), "send request")
}

func TestPutManyDocuments(t *testing.T) {
	fake, srv := newFakeServer(t, map[string]string{
		"PutManyDocuments": `{"data":{"PutManyDocuments":{
			"successfulDocumentIds":["1","2"],
			"errors":[{"documentId":"3","errorMessage":"x"}]}}}`,
	})

	docs := []domain.DocumentWriteRequest{
		{DocumentID: "1", Title: "Hello", StatusID: 2, BlueprintID: "bp-1", Fields: []domain.DocumentField{{FieldID: "f-title", Data: "Hello"}}},
		{DocumentID: "2", Title: "Two", StatusID: 2, BlueprintID: "bp-1"},
		{DocumentID: "3", Title: "Three", StatusID: 2, BlueprintID: "bp-1"},
	}

	result, err := NewClient("t", WithEndpoint(srv.URL)).PutManyDocuments(context.Background(), "proj-1", docs)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, result.SuccessfulDocumentIDs)
	assert.Equal(t, []domain.DocumentError{{DocumentID: "3", Message: "x"}}, result.Errors)

	require.Len(t, fake.requests, 1)
	input := fake.requests[0].Variables["input"].(map[string]any)
	assert.Equal(t, "proj-1", input["projectId"])
	inputs := input["documentInputs"].([]any)
	require.Len(t, inputs, 3)
	first := inputs[0].(map[string]any)
	assert.Equal(t, "1", first["documentId"])
	assert.Equal(t, float64(2), first["statusId"])
	assert.Equal(t, "bp-1", first["blueprintId"])
	fields := first["fields"].([]any)
	assert.Equal(t, map[string]any{"blueprintFieldId": "f-title", "data": "Hello"}, fields[0])
}

func TestPutManyDocuments_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient("t", WithEndpoint(srv.URL)).PutManyDocuments(context.Background(), "p", nil)
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
}

func TestUploadAsset(t *testing.T) {
	fake, srv := newFakeServer(t, map[string]string{
		"CreateAssetUpload": `{"data":{"CreateAssetUpload":{"documentId":"asset-9","uploadUrl":"{{URL}}/upload/asset-9"}}}`,
	})

	id, err := NewClient("t", WithEndpoint(srv.URL), WithHTTPClient(srv.Client())).
		UploadAsset(context.Background(), "proj-1", []byte("png"), domain.AssetMeta{Filename: "a.png", ContentType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, "asset-9", id)
	assert.Equal(t, [][]byte{[]byte("png")}, fake.uploads)

	input := fake.requests[0].Variables["input"].(map[string]any)
	assert.Equal(t, map[string]any{"filename": "a.png", "contentType": "image/png"}, input["meta"])
}

func TestUploadAsset_Rejected(t *testing.T) {
	fake, srv := newFakeServer(t, map[string]string{
		"CreateAssetUpload": `{"data":{"CreateAssetUpload":{"documentId":"asset-9","uploadUrl":"{{URL}}/upload"}}}`,
	})
	fake.uploadErr = http.StatusForbidden

	_, err := NewClient("t", WithEndpoint(srv.URL)).UploadAsset(context.Background(), "p", []byte("x"), domain.AssetMeta{Filename: "a.png"})
	require.Error(t, err)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
}

func TestLoggingTransport(t *testing.T) {
	_, srv := newFakeServer(t, map[string]string{
		"GetBlueprintByName": `{"data":{"GetBlueprintByName":{"blueprint":null}}}`,
	})

	buf := &bytes.Buffer{}
	log := zerolog.New(buf).Level(zerolog.DebugLevel)

	client := NewClient("super-secret", WithEndpoint(srv.URL), WithRequestLogging(log))
	_, err := client.GetBlueprintByName(context.Background(), "p", "BlogPost")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"method":"POST"`)
	assert.Contains(t, out, `"status":200`)
	assert.NotContains(t, out, "super-secret")
}
