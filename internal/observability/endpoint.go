package observability

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/tphakala/audiopulse/internal/errors"
	"github.com/tphakala/audiopulse/internal/logging"
	metricspkg "github.com/tphakala/audiopulse/internal/observability/metrics"
)

// ComponentTelemetry identifies telemetry endpoint errors
const ComponentTelemetry = "telemetry"

// Endpoint serves Prometheus-compatible metrics over HTTP.
type Endpoint struct {
	listenAddress string
	metrics       *Metrics
	logger        *slog.Logger

	mu   sync.Mutex
	addr net.Addr
}

// NewEndpoint creates a telemetry endpoint for metrics on listenAddress.
// The server is not started until Run is called.
func NewEndpoint(listenAddress string, metrics *Metrics) *Endpoint {
	logger := logging.ForService(ComponentTelemetry)
	if logger == nil {
		logger = slog.Default()
	}
	return &Endpoint{
		listenAddress: listenAddress,
		metrics:       metrics,
		logger:        logger,
	}
}

// Handler returns the HTTP handler serving /metrics
func (e *Endpoint) Handler() http.Handler {
	mux := http.NewServeMux()
	e.metrics.RegisterHandlers(mux)
	return mux
}

// Addr returns the bound address once Run is listening
func (e *Endpoint) Addr() net.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addr
}

// Run serves until ctx is cancelled, then shuts the server down gracefully.
// It returns nil on a clean shutdown.
func (e *Endpoint) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", e.listenAddress)
	if err != nil {
		return errors.New(err).
			Component(ComponentTelemetry).
			Category(errors.CategoryNetwork).
			Context("listen_address", e.listenAddress).
			Context("operation", "listen").
			Build()
	}

	e.mu.Lock()
	e.addr = ln.Addr()
	e.mu.Unlock()

	server := &http.Server{
		Handler:           e.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		e.logger.Info("telemetry endpoint starting", "address", ln.Addr().String())
		serveErr <- server.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.New(err).
			Component(ComponentTelemetry).
			Category(errors.CategoryNetwork).
			Context("operation", "serve").
			Build()
	case <-ctx.Done():
	}

	e.logger.Info("stopping telemetry server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), metricspkg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		e.logger.Error("telemetry server shutdown error", "error", err)
	}
	<-serveErr
	return nil
}
