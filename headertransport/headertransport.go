// Package headertransport provides an http.RoundTripper that injects a fixed
// set of headers into every outgoing request.
package headertransport

import (
	"net/http"
)

// DefaultUserAgent identifies requests made by redirectmap.
const DefaultUserAgent = "redirectmap/1.0 (+https://github.com/mccutchen/redirectmap)"

// BrowserHeaders simulate the appearance of a real web browser. Some sites
// redirect bots and browsers differently, so auditing what a browser would
// see sometimes requires pretending to be one.
var BrowserHeaders = map[string]string{
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.5",
	"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:109.0) Gecko/20100101 Firefox/113.0",
}

// Transport is an http.RoundTripper implementation that injects a set of
// headers into every outgoing request.
type Transport struct {
	transport     http.RoundTripper
	injectHeaders map[string]string
}

var _ http.RoundTripper = &Transport{} // Transport implements http.RoundTripper

// New creates a new header injecting transport. By default, only a
// User-Agent header is injected.
func New(transport http.RoundTripper, opts ...Option) *Transport {
	t := &Transport{
		transport: transport,
		injectHeaders: map[string]string{
			"User-Agent": DefaultUserAgent,
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RoundTrip executes a single HTTP transaction, after injecting a set of
// headers into the outgoing request.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request
	req = req.Clone(req.Context())
	// existing headers take precedence over injected headers
	for key, value := range t.injectHeaders {
		if req.Header.Get(key) == "" {
			req.Header.Set(key, value)
		}
	}
	return t.transport.RoundTrip(req)
}

// Option customizes a Transport.
type Option func(*Transport)

// WithHeaders replaces the set of headers injected into each request.
func WithHeaders(injectHeaders map[string]string) Option {
	return func(t *Transport) {
		headers := make(map[string]string, len(injectHeaders))
		for k, v := range injectHeaders {
			headers[k] = v
		}
		t.injectHeaders = headers
	}
}

// WithUserAgent overrides the injected User-Agent header. Apply it after
// WithHeaders to customize a header set like BrowserHeaders.
func WithUserAgent(userAgent string) Option {
	return func(t *Transport) {
		if userAgent != "" {
			t.injectHeaders["User-Agent"] = userAgent
		}
	}
}
