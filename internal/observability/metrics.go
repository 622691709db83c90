package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"chatlimit/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer serves Prometheus metrics on a dedicated port.
type MetricsServer struct {
	server *http.Server

	mu       sync.Mutex
	listener net.Listener
}

// NewMetricsServer creates a server exposing gatherer at cfg.Path. A nil
// gatherer selects the default Prometheus registry, which is where the otel
// exporter registers.
func NewMetricsServer(cfg models.MetricsConfig, gatherer prometheus.Gatherer) *MetricsServer {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return &MetricsServer{
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Port),
			Handler: mux,
		},
	}
}

// Start listens and serves until Shutdown. It returns http.ErrServerClosed on
// graceful shutdown.
func (ms *MetricsServer) Start() error {
	ln, err := net.Listen("tcp", ms.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", ms.server.Addr, err)
	}

	ms.mu.Lock()
	ms.listener = ln
	ms.mu.Unlock()

	slog.Info("Starting metrics server", "addr", ln.Addr().String())
	return ms.server.Serve(ln)
}

// Addr returns the bound address once Start has begun listening.
func (ms *MetricsServer) Addr() string {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.listener == nil {
		return ""
	}
	return ms.listener.Addr().String()
}

// Shutdown gracefully stops the metrics server.
func (ms *MetricsServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}
