package redirectmap

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/mccutchen/redirectmap/safedialer"
)

// Errors that might be returned while resolving URLs or preparing a batch.
var (
	ErrTooManyRedirects = errors.New("too many redirects")
	ErrNoInput          = errors.New("no input URLs given")
)

// InputError indicates that the URLs given to a batch could not be obtained
// or parsed. It is always reported before any network activity happens.
type InputError struct {
	Input string
	Err   error
}

func (e *InputError) Error() string {
	if e.Input == "" {
		return fmt.Sprintf("invalid input: %s", e.Err)
	}
	return fmt.Sprintf("invalid input %q: %s", e.Input, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// ConfigError indicates an unusable configuration value, e.g. an unknown
// output format.
type ConfigError struct {
	Field string
	Value string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NetworkError indicates that a single URL could not be resolved. A
// NetworkError from any URL aborts the whole batch.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("error resolving %s: %s", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Reason classifies the underlying failure into a short, stable label
// suitable for logs and metrics.
func (e *NetworkError) Reason() string {
	switch {
	case errors.Is(e.Err, ErrTooManyRedirects):
		return "too_many_redirects"
	case isUnsafeError(e.Err):
		return "unsafe"
	case isTimeoutError(e.Err):
		return "timeout"
	case errors.Is(e.Err, context.Canceled):
		return "canceled"
	case isDNSError(e.Err):
		return "dns"
	default:
		return "connection"
	}
}

func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isDNSError(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func isUnsafeError(err error) bool {
	return errors.Is(err, safedialer.ErrUnsafeIP) ||
		errors.Is(err, safedialer.ErrUnsafePort) ||
		errors.Is(err, safedialer.ErrUnsafeNetwork)
}
