package redirectmap

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/purell"
)

// NormalizationFlags defines the normalization flags the purell package will
// use when deciding whether two URLs are equivalent.
//
// See https://godoc.org/github.com/PuerkitoBio/purell#NormalizationFlags
var NormalizationFlags = (purell.FlagsSafe |
	purell.FlagRemoveDotSegments |
	purell.FlagRemoveDuplicateSlashes |
	purell.FlagRemoveFragment |
	purell.FlagRemoveUnnecessaryHostDots |
	purell.FlagRemoveEmptyPortSeparator)

// Query parameters matching these patterns are ignored when comparing URLs
// with ignoreTrackingParams set. The categorized patterns below were largely
// sourced from this Chrome Extension:
//
// https://github.com/newhouse/url-tracking-stripper/blob/dea6c144/README.md#documentation
var trackingParamPattern = listToRegexp(`(?i)^(`, `)$`, []string{
	// Google's Urchin Tracking Module & Google Adwords
	`utm_.+`,
	`gclid`,

	// Adobe Omniture SiteCatalyst
	`icid`,

	// Facebook
	`fbclid`,

	// Hubspot
	`_hsenc`,
	`_hsmi`,

	// Marketo
	`mkt_.+`,

	// MailChimp
	`mc_.+`,

	// Simple Reach
	`sr_.+`,

	// Vero
	`vero_.+`,

	// Unknown
	`nr_email_referer`,
	`ncid`,
})

// Equivalent reports whether two URLs identify the same resource once
// normalized: scheme and host case, default ports, escaping, dot segments and
// fragments do not matter. Unparseable URLs are only equivalent if they are
// byte-for-byte identical.
func Equivalent(a, b string, ignoreTrackingParams bool) bool {
	if a == b {
		return true
	}
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return Canonicalize(ua, ignoreTrackingParams) == Canonicalize(ub, ignoreTrackingParams)
}

// Canonicalize normalizes a URL, optionally dropping tracking query params
// first. The given URL is modified in place.
func Canonicalize(u *url.URL, stripTrackingParams bool) string {
	if stripTrackingParams {
		u.RawQuery = filterParams(u).Encode()
	}
	return purell.NormalizeURL(u, NormalizationFlags)
}

func filterParams(u *url.URL) url.Values {
	filtered := url.Values{}
	for param, values := range u.Query() {
		if trackingParamPattern.MatchString(param) {
			continue
		}
		for _, v := range values {
			filtered.Add(param, v)
		}
	}
	return filtered
}

func listToRegexp(prefix string, suffix string, patterns []string) *regexp.Regexp {
	combinedPattern := fmt.Sprintf("%s%s%s", prefix, strings.Join(patterns, "|"), suffix)
	return regexp.MustCompile(combinedPattern)
}
