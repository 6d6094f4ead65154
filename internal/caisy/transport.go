package caisy

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// loggingTransport adds structured logging to outgoing requests.
// Headers are never logged; they carry the access token.
type loggingTransport struct {
	base http.RoundTripper
	log  zerolog.Logger
}

// NewLoggingTransport wraps base (nil means http.DefaultTransport).
func NewLoggingTransport(base http.RoundTripper, log zerolog.Logger) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &loggingTransport{base: base, log: log}
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.log.Debug().
			Err(err).
			Str("method", req.Method).
			Str("host", req.URL.Host).
			Str("path", req.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("HTTP request failed")
		return nil, err
	}

	t.log.Debug().
		Str("method", req.Method).
		Str("host", req.URL.Host).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("HTTP request")
	return resp, nil
}
