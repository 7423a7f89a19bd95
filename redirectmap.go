// Package redirectmap resolves batches of URLs by following their HTTP
// redirects, reporting which URLs ended up somewhere else.
package redirectmap

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTimeout      = 10 * time.Second
	DefaultMaxRedirects = 10

	// maxDrainBytes bounds how much of a final response body is read so the
	// connection can be reused.
	maxDrainBytes = 4 << 10
)

// Interface defines the interface for a URL resolver.
type Interface interface {
	Resolve(ctx context.Context, givenURL string) (string, error)
}

// Resolver resolves a URL by following any redirects and reporting the URL
// of the final response.
//
// A Resolver is safe for concurrent use. All resolutions share its
// transport, and with it a single connection pool and TLS configuration.
type Resolver struct {
	maxRedirects      int
	singleflightGroup *singleflight.Group
	timeout           time.Duration
	transport         http.RoundTripper
}

var _ Interface = &Resolver{} // Resolver implements Interface

// New creates a new Resolver that will use the given transport. A nil
// transport, zero timeout or zero maxRedirects selects the default.
func New(transport http.RoundTripper, timeout time.Duration, maxRedirects int) *Resolver {
	if transport == nil {
		transport = NewTransport(nil)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxRedirects <= 0 {
		maxRedirects = DefaultMaxRedirects
	}
	return &Resolver{
		maxRedirects:      maxRedirects,
		singleflightGroup: &singleflight.Group{},
		timeout:           timeout,
		transport:         transport,
	}
}

// Resolve issues a GET request for the given URL, follows any redirects, and
// returns the URL of the final response. If no redirect occurred, the given
// URL is returned unchanged.
//
// Concurrent calls for the same URL are coalesced into a single request.
func (r *Resolver) Resolve(ctx context.Context, givenURL string) (string, error) {
	val, err, _ := r.singleflightGroup.Do(givenURL, func() (interface{}, error) {
		return r.doResolve(ctx, givenURL)
	})
	return val.(string), err
}

func (r *Resolver) doResolve(ctx context.Context, givenURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, givenURL, nil)
	if err != nil {
		return "", &NetworkError{URL: givenURL, Err: err}
	}

	resp, err := r.httpClient().Do(req)
	if err != nil {
		return "", &NetworkError{URL: givenURL, Err: err}
	}
	// We only care where we ended up, never what we found there.
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes)) //nolint:errcheck
	resp.Body.Close()

	return resp.Request.URL.String(), nil
}

func (r *Resolver) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) > r.maxRedirects {
		return ErrTooManyRedirects
	}
	return nil
}

// httpClient returns a client wrapping the shared transport. Each resolution
// gets its own cookie jar, so that sites which set a cookie before
// redirecting work as expected without leaking cookies between resolutions.
func (r *Resolver) httpClient() *http.Client {
	cookieJar, _ := cookiejar.New(&cookiejar.Options{
		PublicSuffixList: publicsuffix.List,
	})
	return &http.Client{
		CheckRedirect: r.checkRedirect,
		Jar:           cookieJar,
		Transport:     r.transport,
		Timeout:       r.timeout,
	}
}
