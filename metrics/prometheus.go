// Package metrics exposes Prometheus instrumentation for client
// traffic. Collection is passive; the client increments these when
// metrics are enabled in its options.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gonats_messages_sent_total",
		Help: "Total messages published",
	})

	MessagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gonats_messages_received_total",
		Help: "Total messages delivered by the server",
	})

	BytesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gonats_bytes_sent_total",
		Help: "Total payload bytes published",
	})

	BytesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gonats_bytes_received_total",
		Help: "Total payload bytes received",
	})

	Reconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gonats_reconnects_total",
		Help: "Successful reconnections",
	})

	PingsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gonats_pings_sent_total",
		Help: "Keepalive PINGs emitted",
	})

	RequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gonats_requests_in_flight",
		Help: "Requests awaiting a reply",
	})
)

// ServerConfig configures the metrics HTTP endpoint.
type ServerConfig struct {
	Listen string
	Path   string
}

// RunServer serves the Prometheus scrape endpoint until the context
// ends.
func RunServer(ctx context.Context, cfg ServerConfig) error {
	mux := http.NewServeMux()
	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}
	mux.Handle(path, promhttp.Handler())

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
