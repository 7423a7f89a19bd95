// Package output renders a RedirectMap for humans or machines.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/mccutchen/redirectmap"
)

// Format selects how a RedirectMap is rendered.
type Format string

// Supported formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"

	DefaultFormat = FormatText
)

// ErrUnknownFormat is wrapped by the *redirectmap.ConfigError returned for
// unrecognized formats.
var ErrUnknownFormat = errors.New("output format must be json or text")

// text column layout
const (
	minWidth = 0
	tabWidth = 8
	padding  = 4
	padChar  = ' '
)

// ParseFormat parses an output format name. The empty string selects
// DefaultFormat. Names are matched exactly, so "JSON" is rejected.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "":
		return DefaultFormat, nil
	case FormatText, FormatJSON:
		return Format(s), nil
	default:
		return "", &redirectmap.ConfigError{Field: "output format", Value: s, Err: ErrUnknownFormat}
	}
}

// Render writes m to w in the given format. Entries are always written in
// source URL order.
func Render(w io.Writer, m redirectmap.RedirectMap, format Format) error {
	switch format {
	case FormatJSON:
		return renderJSON(w, m)
	case FormatText, "":
		return renderText(w, m)
	default:
		return &redirectmap.ConfigError{Field: "output format", Value: string(format), Err: ErrUnknownFormat}
	}
}

func renderJSON(w io.Writer, m redirectmap.RedirectMap) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m.Entries()); err != nil {
		return fmt.Errorf("error encoding json: %w", err)
	}
	return nil
}

func renderText(w io.Writer, m redirectmap.RedirectMap) error {
	tw := tabwriter.NewWriter(w, minWidth, tabWidth, padding, padChar, 0)
	for _, r := range m.Entries() {
		fmt.Fprintf(tw, "%s\t%s\n", r.Source, r.Redirect)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("error writing text: %w", err)
	}
	return nil
}
