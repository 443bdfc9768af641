// Package metrics defines the Prometheus collectors of the indexer and the
// HTTP handler that exposes them.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Field extraction outcomes.
const (
	OutcomeOK     = "ok"
	OutcomeEmpty  = "empty"
	OutcomeNoType = "no_data_type"
	OutcomeFailed = "failed"
	ResultHit     = "hit"
	ResultMiss    = "miss"
	OpIndex       = "index"
	OpDeIndex     = "deindex"
)

type Metrics struct {
	FieldsExtracted   *prometheus.CounterVec
	DocumentsIndexed  *prometheus.CounterVec
	EntityCacheLookup *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		FieldsExtracted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fields_extracted_total",
				Help: "Field index values extracted, by editor alias and outcome.",
			},
			[]string{"editor", "outcome"},
		),
		DocumentsIndexed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "documents_indexed_total",
				Help: "Documents handed to the search index, by operation.",
			},
			[]string{"op"},
		),
		EntityCacheLookup: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entity_cache_requests_total",
				Help: "Entity cache lookups, by store and result.",
			},
			[]string{"store", "result"},
		),
		gatherer: reg,
	}
	reg.MustRegister(m.FieldsExtracted, m.DocumentsIndexed, m.EntityCacheLookup)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
