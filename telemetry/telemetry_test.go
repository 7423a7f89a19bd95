//nolint:errcheck
package telemetry

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

// These tests install a global tracer provider, so they do not run in
// parallel.

func TestInitNone(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitErrors(t *testing.T) {
	testCases := map[string]struct {
		cfg     Config
		wantErr error
	}{
		"unknown exporter": {
			cfg:     Config{Exporter: "zipkin"},
			wantErr: ErrUnknownExporter,
		},
		"otlp without endpoint": {
			cfg: Config{Exporter: ExporterOTLP},
		},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := Init(context.Background(), tc.cfg)
			assert.Error(t, err)
			if tc.wantErr != nil {
				assert.True(t, errors.Is(err, tc.wantErr), "unexpected error: %v", err)
			}
		})
	}
}

func TestWrapTransport(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	shutdown, err := Init(context.Background(), Config{
		Exporter:    ExporterStdout,
		ServiceName: "redirectmap-test",
		Writer:      &buf,
	})
	require.NoError(t, err)

	ctx, span := otel.Tracer("test").Start(context.Background(), "test.parent")
	req, err := http.NewRequestWithContext(ctx, "GET", srv.URL, nil)
	require.NoError(t, err)

	client := &http.Client{Transport: WrapTransport(http.DefaultTransport)}
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	span.End()

	require.NoError(t, shutdown(context.Background()))

	out := buf.String()
	assert.Contains(t, out, "test.parent")
	assert.Contains(t, out, "net.connect")
	assert.Contains(t, out, "net.conn.time_to_first_byte")
	assert.Contains(t, out, "redirectmap-test")
}

func TestOTLPOptions(t *testing.T) {
	assert.Len(t, otlpOptions("http://localhost:4317"), 2)
	assert.Len(t, otlpOptions("collector.example.com:4317"), 2)
}
