// Package caisy talks to the Caisy content repository: blueprint lookup,
// asset upload and batched document writes over its GraphQL API.
package caisy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-cleanhttp"
	graphql "github.com/hasura/go-graphql-client"
	"github.com/rs/zerolog"
)

const (
	// DefaultEndpoint is the Caisy GraphQL API.
	DefaultEndpoint = "https://cloud.caisy.io/api/graphql"

	tokenHeader = "x-caisy-token"
)

// ErrGraphQL marks responses that carried top-level GraphQL errors.
var ErrGraphQL = errors.New("graphql error")

// StatusError reports a non-2xx answer from the API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("caisy API returned status %d: %s", e.StatusCode, e.Body)
}

// Client is a Caisy API client bound to one access token.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client // also carries raw asset uploads
	gql        *graphql.Client
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the GraphQL endpoint.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// WithHTTPClient sets the HTTP client used for API and upload calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRequestLogging wraps the client's transport with request logging.
func WithRequestLogging(log zerolog.Logger) Option {
	return func(c *Client) {
		clone := *c.httpClient
		clone.Transport = NewLoggingTransport(c.httpClient.Transport, log)
		c.httpClient = &clone
	}
}

// NewClient creates a new Caisy client with the provided access token.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		endpoint:   DefaultEndpoint,
		token:      token,
		httpClient: cleanhttp.DefaultPooledClient(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.gql = graphql.NewClient(c.endpoint, c.httpClient).
		WithRequestModifier(func(r *http.Request) {
			r.Header.Set("Accept", "application/json")
			r.Header.Set(tokenHeader, c.token)
		})
	return c
}

// do runs one GraphQL operation and decodes its data into out.
func (c *Client) do(ctx context.Context, query string, variables map[string]any, out any) error {
	data, err := c.gql.ExecRaw(ctx, query, variables)
	if err != nil {
		return graphQLFailure(err)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, "decode data")
	}
	return nil
}

// httpStatus is the status carried by a request that never reached GraphQL.
type httpStatus interface {
	StatusCode() int
	Body() string
}

// graphQLFailure separates HTTP failures from errors the API reported.
func graphQLFailure(err error) error {
	var gqlErrs graphql.Errors
	if !errors.As(err, &gqlErrs) {
		return errors.Wrap(err, "send request")
	}

	msgs := make([]string, 0, len(gqlErrs))
	for _, e := range gqlErrs {
		var status httpStatus
		if errors.As(e, &status) {
			return &StatusError{StatusCode: status.StatusCode(), Body: truncate(status.Body(), 500)}
		}
		if code, _ := e.Extensions["code"].(string); code == graphql.ErrRequestError {
			return errors.Wrap(e, "send request")
		}
		msgs = append(msgs, e.Message)
	}
	return errors.Wrapf(ErrGraphQL, "%s", strings.Join(msgs, "; "))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
