// Package urllist parses the URLs given to a batch, either directly or as a
// newline-delimited list.
package urllist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/mccutchen/redirectmap"
)

// Stdin is the file name that makes ReadFile read from standard input.
const Stdin = "-"

// Errors describing why a URL was rejected.
var (
	ErrNotAbsolute = errors.New("url must be absolute")
	ErrNoHost      = errors.New("url must have a hostname")
	ErrBadScheme   = errors.New("url scheme must be http or https")
)

// Parse parses a single URL, which must be an absolute http(s) URL with a
// hostname. Failures are returned as *redirectmap.InputError.
func Parse(rawURL string) (*url.URL, error) {
	// Separate conditionals instead of one-liner let us use code coverage to
	// make sure we're covering the cases we care about.
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, &redirectmap.InputError{Input: rawURL, Err: err}
	}
	if !parsed.IsAbs() {
		return nil, &redirectmap.InputError{Input: rawURL, Err: ErrNotAbsolute}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, &redirectmap.InputError{Input: rawURL, Err: ErrBadScheme}
	}
	if parsed.Hostname() == "" {
		return nil, &redirectmap.InputError{Input: rawURL, Err: ErrNoHost}
	}
	return parsed, nil
}

// ParseAll parses each of the given URLs, failing on the first invalid one.
func ParseAll(rawURLs []string) ([]*url.URL, error) {
	urls := make([]*url.URL, 0, len(rawURLs))
	for _, rawURL := range rawURLs {
		u, err := Parse(rawURL)
		if err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, nil
}

// Read parses a newline-delimited list of URLs. Surrounding whitespace is
// ignored, as are blank lines and lines starting with #.
func Read(r io.Reader) ([]*url.URL, error) {
	var (
		urls    []*url.URL
		lineNum int
	)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		u, err := Parse(line)
		if err != nil {
			var inputErr *redirectmap.InputError
			if errors.As(err, &inputErr) {
				inputErr.Input = fmt.Sprintf("line %d: %s", lineNum, line)
			}
			return nil, err
		}
		urls = append(urls, u)
	}
	if err := scanner.Err(); err != nil {
		return nil, &redirectmap.InputError{Err: fmt.Errorf("error reading url list: %w", err)}
	}
	return urls, nil
}

// ReadFile reads a newline-delimited list of URLs from the named file, or
// from stdin if name is "-".
func ReadFile(name string) ([]*url.URL, error) {
	if name == Stdin {
		return Read(os.Stdin)
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, &redirectmap.InputError{Input: name, Err: err}
	}
	defer f.Close()
	return Read(f)
}
