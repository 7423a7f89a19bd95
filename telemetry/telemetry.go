// Package telemetry configures OpenTelemetry tracing for a batch run and
// instruments outgoing HTTP requests.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials"
)

const tracerName = "github.com/mccutchen/redirectmap/telemetry"

// Supported span exporters
const (
	ExporterNone   = ""
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// ErrUnknownExporter is returned by Init for unsupported exporters.
var ErrUnknownExporter = errors.New("unknown trace exporter")

// Config configures tracing.
type Config struct {
	// Exporter selects where spans are sent, one of the Exporter* constants.
	Exporter string

	// Endpoint is the OTLP collector's host:port. A http:// prefix selects
	// an insecure connection, otherwise TLS is used.
	Endpoint string

	// ServiceName is reported as the service.name resource attribute.
	ServiceName string

	// Writer receives spans from the stdout exporter (default: os.Stderr).
	Writer io.Writer
}

// Init installs a global tracer provider according to cfg. The returned
// shutdown func flushes any buffered spans and must be called before
// exiting.
func Init(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	switch cfg.Exporter {
	case ExporterNone:
		return func(context.Context) error { return nil }, nil
	case ExporterStdout:
		w := cfg.Writer
		if w == nil {
			w = os.Stderr
		}
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(w))
	case ExporterOTLP:
		if cfg.Endpoint == "" {
			return nil, errors.New("otlp exporter requires an endpoint")
		}
		exporter, err = otlptracegrpc.New(ctx, otlpOptions(cfg.Endpoint)...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExporter, cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("error creating %s exporter: %w", cfg.Exporter, err)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "redirectmap"
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

func otlpOptions(endpoint string) []otlptracegrpc.Option {
	switch {
	case strings.HasPrefix(endpoint, "http://"):
		return []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(strings.TrimPrefix(endpoint, "http://")),
			otlptracegrpc.WithInsecure(),
		}
	default:
		return []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(strings.TrimPrefix(endpoint, "https://")),
			otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")),
		}
	}
}
