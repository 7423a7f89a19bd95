package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/mccutchen/redirectmap"
	"github.com/mccutchen/redirectmap/cachedresolver"
	"github.com/mccutchen/redirectmap/headertransport"
	"github.com/mccutchen/redirectmap/metrics"
	"github.com/mccutchen/redirectmap/output"
	"github.com/mccutchen/redirectmap/safedialer"
	"github.com/mccutchen/redirectmap/telemetry"
	"github.com/mccutchen/redirectmap/urllist"
)

const (
	serviceName     = "redirectmap"
	shutdownTimeout = 5 * time.Second

	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Getenv, os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, getenv func(string) string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := parseConfig(args, getenv, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "redirectmap: %s\n", err)
		return exitUsage
	}

	logger := newLogger(stderr, cfg.LogLevel, cfg.LogPretty)

	urls, err := loadURLs(cfg, stdin)
	if err != nil {
		logger.Error().Err(err).Msg("invalid input")
		return exitUsage
	}

	stopTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		Exporter:    cfg.TraceExporter,
		Endpoint:    cfg.TraceEndpoint,
		ServiceName: serviceName,
		Writer:      stderr,
	})
	if err != nil {
		logger.Error().Err(err).Msg("error initializing telemetry")
		return exitUsage
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := stopTelemetry(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("error flushing traces")
		}
	}()

	var m *metrics.Metrics
	if cfg.MetricsFile != "" {
		m = metrics.New()
	}

	resolver, closeResolver, err := initResolver(cfg, m, logger)
	if err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return exitUsage
	}
	defer closeResolver()

	processor := redirectmap.NewProcessor(urls,
		redirectmap.WithResolver(resolver),
		redirectmap.WithConcurrency(cfg.Concurrency),
		redirectmap.WithIgnoreTrackingParams(cfg.IgnoreTrackingParams),
		redirectmap.WithLogger(logger),
	)
	redirects, err := processor.Process(ctx)

	if m != nil {
		if writeErr := m.WriteTextfile(cfg.MetricsFile); writeErr != nil {
			logger.Warn().Err(writeErr).Str("path", cfg.MetricsFile).Msg("error writing metrics")
		}
	}

	if err != nil {
		var netErr *redirectmap.NetworkError
		if errors.As(err, &netErr) {
			fmt.Fprintf(stderr, "redirectmap: %s (%s)\n", err, netErr.Reason())
		} else {
			fmt.Fprintf(stderr, "redirectmap: %s\n", err)
		}
		return exitFailure
	}

	if err := output.Render(stdout, redirects, cfg.Output); err != nil {
		logger.Error().Err(err).Msg("error writing output")
		return exitFailure
	}
	return exitOK
}

func newLogger(w io.Writer, level zerolog.Level, pretty bool) zerolog.Logger {
	if pretty {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// loadURLs gathers the URLs given on the command line and in the input file,
// in that order.
func loadURLs(cfg *config, stdin io.Reader) ([]*url.URL, error) {
	urls, err := urllist.ParseAll(cfg.URLs)
	if err != nil {
		return nil, err
	}

	if cfg.InputFile != "" {
		var fromFile []*url.URL
		if cfg.InputFile == urllist.Stdin {
			fromFile, err = urllist.Read(stdin)
		} else {
			fromFile, err = urllist.ReadFile(cfg.InputFile)
		}
		if err != nil {
			return nil, err
		}
		urls = append(urls, fromFile...)
	}

	if len(urls) == 0 {
		return nil, &redirectmap.InputError{Err: redirectmap.ErrNoInput}
	}
	return urls, nil
}

// initResolver builds the resolver chain for a batch. The returned func
// releases any connections the chain holds open.
func initResolver(cfg *config, m *metrics.Metrics, logger zerolog.Logger) (redirectmap.Interface, func(), error) {
	var control redirectmap.ControlFunc
	if cfg.BlockPrivate {
		control = safedialer.Control
	}

	var headerOpts []headertransport.Option
	if cfg.FakeBrowser {
		headerOpts = append(headerOpts, headertransport.WithHeaders(headertransport.BrowserHeaders))
	}
	headerOpts = append(headerOpts, headertransport.WithUserAgent(cfg.UserAgent))

	baseTransport := redirectmap.NewTransport(control)
	var transport http.RoundTripper = headertransport.New(baseTransport, headerOpts...)
	if cfg.TraceExporter != "" {
		transport = telemetry.WrapTransport(transport)
	}

	var (
		resolver    redirectmap.Interface = redirectmap.New(transport, cfg.Timeout, cfg.MaxRedirects)
		redisClient *redis.Client
	)

	if cfg.RedisURL != "" {
		client, redisCache, err := cachedresolver.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, nil, &redirectmap.ConfigError{Field: "redis url", Value: redactURL(cfg.RedisURL), Err: err}
		}
		redisClient = client
		namespace := resolverFingerprint(cfg)
		resolver = cachedresolver.NewCachedResolver(resolver, cachedresolver.NewRedisCache(redisCache, cfg.CacheTTL, logger,
			cachedresolver.WithNamespace(namespace)))
		logger.Debug().
			Str("redis_url", redactURL(cfg.RedisURL)).
			Str("namespace", namespace).
			Dur("ttl", cfg.CacheTTL).
			Msg("caching enabled")
	}

	if m != nil {
		resolver = metrics.InstrumentResolver(resolver, m, cfg.IgnoreTrackingParams)
	}

	cleanup := func() {
		baseTransport.CloseIdleConnections()
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing redis client")
			}
		}
	}
	return resolver, cleanup, nil
}

// resolverFingerprint identifies every setting that can change where, or
// whether, a URL resolves. Cached results are only shared between runs with
// the same fingerprint.
func resolverFingerprint(cfg *config) string {
	return cachedresolver.Fingerprint(
		"max_redirects="+strconv.Itoa(cfg.MaxRedirects),
		"timeout="+cfg.Timeout.String(),
		"user_agent="+cfg.UserAgent,
		"fake_browser="+strconv.FormatBool(cfg.FakeBrowser),
		"block_private="+strconv.FormatBool(cfg.BlockPrivate),
	)
}
