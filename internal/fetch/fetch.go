// Package fetch downloads externally hosted assets fully into memory.
package fetch

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-cleanhttp"

	"github.com/dvloznov/blueprint-importer/internal/gcs"
)

// ErrUnsupportedScheme is returned for URLs no fetcher is registered for.
var ErrUnsupportedScheme = errors.New("unsupported URL scheme")

// Resource is a downloaded asset.
type Resource struct {
	Data        []byte
	ContentType string
}

// Fetcher downloads the resource behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Resource, error)
}

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// HTTPFetcher downloads http(s) URLs.
type HTTPFetcher struct {
	client *http.Client
	// MaxBytes caps a download; zero means no cap.
	MaxBytes int64
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates a fetcher. A nil client means a pooled cleanhttp client,
// so concurrent downloads reuse connections per host.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
	}
	return &HTTPFetcher{client: client}
}

// Fetch performs a GET and reads the whole body.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Resource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "Fetch: build request")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "Fetch: GET %s", rawURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	var body io.Reader = resp.Body
	if f.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, f.MaxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, errors.Wrapf(err, "Fetch: read body of %s", rawURL)
	}
	if f.MaxBytes > 0 && int64(len(data)) > f.MaxBytes {
		return nil, errors.Newf("Fetch: %s exceeds %d bytes", rawURL, f.MaxBytes)
	}

	return &Resource{Data: data, ContentType: contentType(resp.Header.Get("Content-Type"), data)}, nil
}

// GCSFetcher downloads gs:// URLs through the storage service.
type GCSFetcher struct {
	storage gcs.StorageService
}

var _ Fetcher = (*GCSFetcher)(nil)

// NewGCSFetcher creates a fetcher for gs:// URLs.
func NewGCSFetcher(storage gcs.StorageService) *GCSFetcher {
	return &GCSFetcher{storage: storage}
}

// Fetch reads the object behind a gs:// URI.
func (f *GCSFetcher) Fetch(ctx context.Context, rawURL string) (*Resource, error) {
	data, err := f.storage.FetchFromGCS(ctx, rawURL)
	if err != nil {
		return nil, errors.Wrapf(err, "Fetch: %s", rawURL)
	}
	return &Resource{Data: data, ContentType: contentType("", data)}, nil
}

// Router dispatches on the URL scheme.
type Router struct {
	schemes map[string]Fetcher
}

var _ Fetcher = (*Router)(nil)

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{schemes: make(map[string]Fetcher)}
}

// Handle registers f for the given schemes.
func (r *Router) Handle(f Fetcher, schemes ...string) *Router {
	for _, s := range schemes {
		r.schemes[strings.ToLower(s)] = f
	}
	return r
}

// Supports reports whether a scheme has a fetcher.
func (r *Router) Supports(scheme string) bool {
	_, ok := r.schemes[strings.ToLower(scheme)]
	return ok
}

// Fetch picks the fetcher registered for the URL's scheme.
func (r *Router) Fetch(ctx context.Context, rawURL string) (*Resource, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "Fetch: parse URL")
	}
	f, ok := r.schemes[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedScheme, "Fetch: %q", u.Scheme)
	}
	return f.Fetch(ctx, rawURL)
}

func contentType(header string, data []byte) string {
	if header != "" {
		if mt, _, err := mime.ParseMediaType(header); err == nil {
			return mt
		}
	}
	return http.DetectContentType(data)
}
