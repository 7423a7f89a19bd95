package redirectmap

import (
	"context"
	"net/url"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of URLs a Processor resolves at once
// unless configured otherwise.
const DefaultConcurrency = 5

const tracerName = "github.com/mccutchen/redirectmap"

// RedirectMap maps each redirected source URL to the final URL it resolved
// to. URLs that did not redirect are never present.
type RedirectMap map[string]string

// Redirect is a single RedirectMap entry.
type Redirect struct {
	Source   string `json:"source"`
	Redirect string `json:"redirect"`
}

// Entries returns the map's entries sorted by source URL.
func (m RedirectMap) Entries() []Redirect {
	entries := make([]Redirect, 0, len(m))
	for src, dst := range m {
		entries = append(entries, Redirect{Source: src, Redirect: dst})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Source < entries[j].Source
	})
	return entries
}

// Processor resolves a batch of URLs concurrently.
type Processor struct {
	concurrency          int
	ignoreTrackingParams bool
	logger               zerolog.Logger
	resolver             Interface
	urls                 []*url.URL
}

// Option customizes a Processor.
type Option func(*Processor)

// WithResolver overrides the Resolver created for the batch.
func WithResolver(resolver Interface) Option {
	return func(p *Processor) {
		p.resolver = resolver
	}
}

// WithConcurrency sets the maximum number of URLs resolved at once. Values
// less than 1 select DefaultConcurrency.
func WithConcurrency(n int) Option {
	return func(p *Processor) {
		if n < 1 {
			n = DefaultConcurrency
		}
		p.concurrency = n
	}
}

// WithLogger sets the logger used to report batch progress.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithIgnoreTrackingParams makes redirects that only add or remove tracking
// query params (utm_source, fbclid, etc) count as no redirect at all.
func WithIgnoreTrackingParams(ignore bool) Option {
	return func(p *Processor) {
		p.ignoreTrackingParams = ignore
	}
}

// NewProcessor creates a Processor for the given URLs. Order is preserved
// and duplicates are allowed. Unless WithResolver is given, a single Resolver
// with default settings is created and shared by the whole batch.
func NewProcessor(urls []*url.URL, opts ...Option) *Processor {
	p := &Processor{
		concurrency: DefaultConcurrency,
		logger:      zerolog.Nop(),
		urls:        urls,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.resolver == nil {
		p.resolver = New(nil, 0, 0)
	}
	return p
}

// Process resolves every URL in the batch and returns the ones that
// redirected somewhere else.
//
// Processing is fail-fast: the first resolution error cancels any
// outstanding work and is returned along with a nil RedirectMap.
func (p *Processor) Process(ctx context.Context) (RedirectMap, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "redirectmap.process", trace.WithAttributes(
		attribute.Int("batch.size", len(p.urls)),
		attribute.Int("batch.concurrency", p.concurrency),
	))
	defer span.End()

	start := time.Now()
	p.logger.Debug().
		Int("urls", len(p.urls)).
		Int("concurrency", p.concurrency).
		Msg("dispatching batch")

	resolved, err := p.resolveAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Error().
			Err(err).
			Int("urls", len(p.urls)).
			Dur("duration", time.Since(start)).
			Msg("batch failed")
		return nil, err
	}

	redirects := p.reduce(resolved)
	span.SetAttributes(attribute.Int("batch.redirects", len(redirects)))
	p.logger.Info().
		Int("urls", len(p.urls)).
		Int("redirects", len(redirects)).
		Dur("duration", time.Since(start)).
		Msg("batch complete")

	return redirects, nil
}

// resolveAll resolves every URL, returning final URLs in input order.
func (p *Processor) resolveAll(ctx context.Context) ([]string, error) {
	resolved := make([]string, len(p.urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, u := range p.urls {
		// Stop dispatching once the batch has failed or been cancelled
		if gctx.Err() != nil {
			break
		}

		i, givenURL := i, u.String()
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			finalURL, err := p.resolve(gctx, givenURL)
			if err != nil {
				return err
			}
			resolved[i] = finalURL
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	// Caller cancelled before anything was dispatched
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return resolved, nil
}

func (p *Processor) resolve(ctx context.Context, givenURL string) (string, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "redirectmap.resolve", trace.WithAttributes(
		attribute.String("url.given", givenURL),
	))
	defer span.End()

	start := time.Now()
	finalURL, err := p.resolver.Resolve(ctx, givenURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Debug().
			Err(err).
			Str("url", givenURL).
			Dur("duration", time.Since(start)).
			Msg("resolution failed")
		return "", err
	}

	span.SetAttributes(attribute.String("url.resolved", finalURL))
	p.logger.Debug().
		Str("url", givenURL).
		Str("resolved_url", finalURL).
		Dur("duration", time.Since(start)).
		Msg("resolved url")
	return finalURL, nil
}

// reduce pairs each input URL with its final URL, keeping only the pairs
// that actually changed. A later duplicate overwrites an earlier one.
func (p *Processor) reduce(resolved []string) RedirectMap {
	redirects := make(RedirectMap)
	for i, u := range p.urls {
		src, dst := u.String(), resolved[i]
		if Equivalent(src, dst, p.ignoreTrackingParams) {
			continue
		}
		redirects[src] = dst
	}
	return redirects
}
