package redirectmap

import (
	"net"
	"net/http"
	"syscall"
	"time"
)

const (
	// dialer
	dialTimeout = 5 * time.Second
	keepAlive   = 30 * time.Second

	// transport
	expectContinueTimeout = 1 * time.Second
	idleConnTimeout       = 90 * time.Second
	maxIdleConns          = 100
	maxIdleConnsPerHost   = 10
	tlsHandshakeTimeout   = 5 * time.Second
)

// ControlFunc is called by the dialer after creating a network connection
// but before actually dialing, see net.Dialer.Control.
type ControlFunc func(network, address string, c syscall.RawConn) error

// NewTransport creates the http.Transport shared by every resolution in a
// batch. If control is non-nil, it is installed on the underlying dialer
// (e.g. safedialer.Control).
func NewTransport(control ControlFunc) *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Control:   control,
			Timeout:   dialTimeout,
			KeepAlive: keepAlive,
		}).DialContext,
		ExpectContinueTimeout: expectContinueTimeout,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       idleConnTimeout,
		MaxIdleConns:          maxIdleConns,
		MaxIdleConnsPerHost:   maxIdleConnsPerHost,
		Proxy:                 http.ProxyFromEnvironment,
		TLSHandshakeTimeout:   tlsHandshakeTimeout,
	}
}
