// Package metrics exports wallet manager state to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Klingon-tech/walletkit/internal/log"
)

const namespace = "walletkit"

// Collector holds the wallet metrics on a private registry.
type Collector struct {
	reg       *prometheus.Registry
	balance   *prometheus.GaugeVec
	transfers *prometheus.CounterVec
	height    *prometheus.GaugeVec
	requests  *prometheus.CounterVec
	syncDur   *prometheus.HistogramVec
}

// New creates a Collector and registers its metrics.
func New() *Collector {
	c := &Collector{
		reg: prometheus.NewRegistry(),
		balance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wallet_balance",
			Help:      "Wallet balance in the currency's default unit",
		}, []string{"network", "currency"}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_total",
			Help:      "Transfers added to wallets by direction",
		}, []string{"network", "currency", "direction"}),
		height: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "network_height",
			Help:      "Last announced block height",
		}, []string{"network"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_requests_total",
			Help:      "Client requests by kind and outcome",
		}, []string{"network", "kind", "status"}),
		syncDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Duration of completed syncs",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"network"}),
	}
	c.reg.MustRegister(c.balance, c.transfers, c.height, c.requests, c.syncDur)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

func (c *Collector) SetBalance(network, currency string, value float64) {
	c.balance.WithLabelValues(network, currency).Set(value)
}

func (c *Collector) CountTransfer(network, currency, direction string) {
	c.transfers.WithLabelValues(network, currency, direction).Inc()
}

func (c *Collector) SetHeight(network string, height uint64) {
	c.height.WithLabelValues(network).Set(float64(height))
}

// CountRequest records a finished client request.
func (c *Collector) CountRequest(network, kind string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.requests.WithLabelValues(network, kind, status).Inc()
}

func (c *Collector) ObserveSync(network string, d time.Duration) {
	c.syncDur.WithLabelValues(network).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// Serve exposes /metrics and /healthz on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Metrics.Info().Str("addr", addr).Msg("Metrics server started")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
