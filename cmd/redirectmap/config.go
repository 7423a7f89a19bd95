package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mccutchen/redirectmap"
	"github.com/mccutchen/redirectmap/output"
	"github.com/mccutchen/redirectmap/telemetry"
)

const (
	defaultCacheTTL = 24 * time.Hour
	defaultLogLevel = "info"
)

var (
	errNotPositive = errors.New("must be a positive integer")
	errNoEndpoint  = errors.New("otlp exporter requires OTEL_EXPORTER_OTLP_ENDPOINT or -trace-endpoint")
)

// config is the fully validated command line configuration.
type config struct {
	URLs      []string
	InputFile string
	Output    output.Format

	Concurrency  int
	Timeout      time.Duration
	MaxRedirects int

	UserAgent            string
	FakeBrowser          bool
	BlockPrivate         bool
	IgnoreTrackingParams bool

	RedisURL string
	CacheTTL time.Duration

	MetricsFile   string
	TraceExporter string
	TraceEndpoint string

	LogLevel  zerolog.Level
	LogPretty bool
}

// urlsFlag collects repeated -u/-url flags.
type urlsFlag []string

func (f *urlsFlag) String() string {
	return strings.Join(*f, ",")
}

func (f *urlsFlag) Set(value string) error {
	*f = append(*f, value)
	return nil
}

// parseConfig parses command line arguments, falling back to environment
// variables looked up via getenv where a flag was not given. Usage and flag
// parsing errors are written to usageOut.
func parseConfig(args []string, getenv func(string) string, usageOut io.Writer) (*config, error) {
	fs := flag.NewFlagSet("redirectmap", flag.ContinueOnError)
	fs.SetOutput(usageOut)
	fs.Usage = func() {
		fmt.Fprintf(usageOut, "Usage: redirectmap [flags] [URL...]\n\n")
		fmt.Fprintf(usageOut, "Resolves each URL, following redirects, and reports the ones that redirected.\n\n")
		fs.PrintDefaults()
	}

	var (
		cfg          = &config{}
		urls         urlsFlag
		outputFormat string
		concurrency  string
		timeout      string
		maxRedirects string
		cacheTTL     string
		logLevel     string
	)

	fs.Var(&urls, "u", "URL to resolve (repeatable)")
	fs.Var(&urls, "url", "URL to resolve (repeatable)")
	fs.StringVar(&cfg.InputFile, "i", "", "file of newline-delimited URLs, - for stdin")
	fs.StringVar(&cfg.InputFile, "input", "", "file of newline-delimited URLs, - for stdin")
	fs.StringVar(&outputFormat, "o", string(output.DefaultFormat), "output format: text or json")
	fs.StringVar(&outputFormat, "output", string(output.DefaultFormat), "output format: text or json")

	fs.StringVar(&concurrency, "concurrency", envOr(getenv, "REDIRECTMAP_CONCURRENCY", strconv.Itoa(redirectmap.DefaultConcurrency)), "maximum number of URLs resolved at once")
	fs.StringVar(&timeout, "timeout", redirectmap.DefaultTimeout.String(), "per-URL request timeout")
	fs.StringVar(&maxRedirects, "max-redirects", strconv.Itoa(redirectmap.DefaultMaxRedirects), "maximum number of redirects followed per URL")

	fs.StringVar(&cfg.UserAgent, "user-agent", "", "User-Agent header sent with every request")
	fs.BoolVar(&cfg.FakeBrowser, "fake-browser", false, "send browser-like request headers")
	fs.BoolVar(&cfg.BlockPrivate, "block-private", false, "refuse to connect to private, loopback or non-web destinations")
	fs.BoolVar(&cfg.IgnoreTrackingParams, "ignore-tracking-params", false, "do not report redirects that only change tracking query params")

	fs.StringVar(&cfg.RedisURL, "redis-url", getenv("REDIS_URL"), "redis:// URL used to cache resolutions")
	fs.StringVar(&cacheTTL, "cache-ttl", defaultCacheTTL.String(), "how long cached resolutions are kept")

	fs.StringVar(&cfg.MetricsFile, "metrics-file", "", "write Prometheus metrics to this file in textfile collector format")
	fs.StringVar(&cfg.TraceExporter, "trace", "", "trace exporter: stdout or otlp")
	fs.StringVar(&cfg.TraceEndpoint, "trace-endpoint", getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), "OTLP collector endpoint")

	fs.StringVar(&logLevel, "log-level", envOr(getenv, "LOG_LEVEL", defaultLogLevel), "log level: debug, info, warn or error")
	fs.BoolVar(&cfg.LogPretty, "log-pretty", false, "human readable logs instead of JSON")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, &redirectmap.ConfigError{Field: "arguments", Value: strings.Join(args, " "), Err: err}
	}

	cfg.URLs = append(urls, fs.Args()...)

	var err error
	if cfg.Output, err = output.ParseFormat(outputFormat); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = parsePositiveInt("concurrency", concurrency); err != nil {
		return nil, err
	}
	if cfg.MaxRedirects, err = parsePositiveInt("max-redirects", maxRedirects); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = parseDuration("timeout", timeout); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = parseDuration("cache-ttl", cacheTTL); err != nil {
		return nil, err
	}
	if cfg.LogLevel, err = parseLogLevel(logLevel); err != nil {
		return nil, err
	}

	switch cfg.TraceExporter {
	case telemetry.ExporterNone, telemetry.ExporterStdout:
	case telemetry.ExporterOTLP:
		if cfg.TraceEndpoint == "" {
			return nil, &redirectmap.ConfigError{Field: "trace endpoint", Value: cfg.TraceEndpoint, Err: errNoEndpoint}
		}
	default:
		return nil, &redirectmap.ConfigError{Field: "trace exporter", Value: cfg.TraceExporter, Err: telemetry.ErrUnknownExporter}
	}

	return cfg, nil
}

func envOr(getenv func(string) string, key, fallback string) string {
	if value := getenv(key); value != "" {
		return value
	}
	return fallback
}

func parsePositiveInt(field, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, &redirectmap.ConfigError{Field: field, Value: value, Err: err}
	}
	if n < 1 {
		return 0, &redirectmap.ConfigError{Field: field, Value: value, Err: errNotPositive}
	}
	return n, nil
}

func parseDuration(field, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, &redirectmap.ConfigError{Field: field, Value: value, Err: err}
	}
	if d <= 0 {
		return 0, &redirectmap.ConfigError{Field: field, Value: value, Err: errors.New("must be positive")}
	}
	return d, nil
}

func parseLogLevel(value string) (zerolog.Level, error) {
	switch strings.ToLower(value) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "info", "":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, &redirectmap.ConfigError{Field: "log level", Value: value, Err: errors.New("must be one of debug, info, warn or error")}
	}
}

// redactURL hides any password in a URL before it is logged or reported.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<unparseable>"
	}
	return u.Redacted()
}
