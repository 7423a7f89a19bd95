package redirectmap

import (
	"net/url"
	"testing"
)

type testCase struct {
	name     string
	given    string
	strip    bool
	expected string
}

func TestCanonicalize(t *testing.T) {
	t.Parallel()

	testCases := []testCase{
		// Normalization
		{
			name:     "scheme and host are lowercased, default port removed",
			given:    "HTTP://Example.COM:80/Path",
			expected: "http://example.com/Path",
		},
		{
			name:     "dot segments are resolved",
			given:    "http://example.com/a/./b/../c",
			expected: "http://example.com/a/c",
		},
		{
			name:     "duplicate slashes are collapsed",
			given:    "http://example.com//foo//bar",
			expected: "http://example.com/foo/bar",
		},
		{
			name:     "fragment is dropped",
			given:    "http://example.com/foo#section-2",
			expected: "http://example.com/foo",
		},
		{
			name:     "https default port removed",
			given:    "https://example.com:443/",
			expected: "https://example.com/",
		},
		{
			name:     "non-default port kept",
			given:    "http://example.com:8080/",
			expected: "http://example.com:8080/",
		},

		// Tracking params
		{
			name:     "tracking params kept unless stripping",
			given:    "https://example.com/foo?bar=baz&utm_source=src",
			expected: "https://example.com/foo?bar=baz&utm_source=src",
		},
		{
			name:     "tracking params are stripped",
			given:    "https://example.com/foo?bar=baz&utm_source=src",
			strip:    true,
			expected: "https://example.com/foo?bar=baz",
		},
		{
			name:     "tracking param matching is case insensitive",
			given:    "https://example.com/foo?UTM_Campaign=x&FBCLID=y&q=1",
			strip:    true,
			expected: "https://example.com/foo?q=1",
		},
		{
			name:     "query dropped entirely when only tracking params",
			given:    "https://example.com/foo?gclid=1&mc_cid=2&_hsenc=3",
			strip:    true,
			expected: "https://example.com/foo",
		},
		{
			name:     "params merely resembling tracking params are kept",
			given:    "https://example.com/foo?omega_utm_source=x",
			strip:    true,
			expected: "https://example.com/foo?omega_utm_source=x",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			u, err := url.Parse(tc.given)
			if err != nil {
				t.Fatalf("error parsing %s: %s", tc.given, err)
			}

			result := Canonicalize(u, tc.strip)
			if result != tc.expected {
				t.Errorf("\nGot:  %s\nWant: %s", result, tc.expected)
			}
		})
	}
}

func TestEquivalent(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name                 string
		a, b                 string
		ignoreTrackingParams bool
		want                 bool
	}{
		{name: "identical", a: "http://a.example/", b: "http://a.example/", want: true},
		{name: "host case and default port", a: "http://a.example/", b: "http://A.EXAMPLE:80/", want: true},
		{name: "fragment only", a: "http://a.example/", b: "http://a.example/#top", want: true},
		{name: "different path", a: "http://a.example/", b: "http://a.example/home", want: false},
		{name: "scheme upgrade", a: "http://a.example/", b: "https://a.example/", want: false},
		{name: "different host", a: "http://a.example/", b: "http://www.a.example/", want: false},
		{name: "tracking params count by default", a: "http://a.example/", b: "http://a.example/?utm_source=x", want: false},
		{name: "tracking params ignored", a: "http://a.example/", b: "http://a.example/?utm_source=x", ignoreTrackingParams: true, want: true},
		{name: "real params never ignored", a: "http://a.example/", b: "http://a.example/?page=2", ignoreTrackingParams: true, want: false},
		{name: "unparseable identical", a: "%%", b: "%%", want: true},
		{name: "unparseable different", a: "%%", b: "http://a.example/", want: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := Equivalent(tc.a, tc.b, tc.ignoreTrackingParams); got != tc.want {
				t.Errorf("Equivalent(%q, %q, %v) = %v, want %v", tc.a, tc.b, tc.ignoreTrackingParams, got, tc.want)
			}
		})
	}
}
