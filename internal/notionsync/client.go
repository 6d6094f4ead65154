package notionsync

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/jomei/notionapi"
)

// DefaultMaxRetries is how often a rate limited request is retried.
const DefaultMaxRetries = 3

// NotionClient talks to the database that stands in for a blueprint. Pages
// of the database are the imported documents.
type NotionClient struct {
	client *notionapi.Client
}

// Option configures a NotionClient.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	retries    int
}

// WithHTTPClient replaces the pooled HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = hc }
}

// WithRetry sets how often a request answered with 429 is retried.
func WithRetry(retries int) Option {
	return func(o *clientOptions) { o.retries = retries }
}

// NewNotionClient creates a client for an internal integration token. The
// target database must be shared with that integration.
func NewNotionClient(token string, opts ...Option) *NotionClient {
	o := clientOptions{
		httpClient: cleanhttp.DefaultPooledClient(),
		retries:    DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &NotionClient{
		client: notionapi.NewClient(notionapi.Token(token),
			notionapi.WithHTTPClient(o.httpClient),
			notionapi.WithRetry(o.retries),
		),
	}
}

// GetDatabase loads the database whose properties make up the blueprint fields.
func (n *NotionClient) GetDatabase(ctx context.Context, databaseID string) (*notionapi.Database, error) {
	db, err := n.client.Database.Get(ctx, notionapi.DatabaseID(databaseID))
	if err != nil {
		return nil, fmt.Errorf("GetDatabase %s: %w", databaseID, err)
	}
	return db, nil
}

// CreatePage adds a document that has no page yet.
func (n *NotionClient) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	page, err := n.client.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	})
	if err != nil {
		return nil, fmt.Errorf("CreatePage in %s: %w", databaseID, err)
	}
	return page, nil
}

// UpdatePage overwrites the properties of a page matched by its document id.
// Properties not listed are left as they are.
func (n *NotionClient) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	page, err := n.client.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{
		Properties: properties,
	})
	if err != nil {
		return nil, fmt.Errorf("UpdatePage %s: %w", pageID, err)
	}
	return page, nil
}

// QueryDatabase returns one page of results; the caller follows NextCursor.
func (n *NotionClient) QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	resp, err := n.client.Database.Query(ctx, notionapi.DatabaseID(databaseID), req)
	if err != nil {
		return nil, fmt.Errorf("QueryDatabase %s: %w", databaseID, err)
	}
	return resp, nil
}
