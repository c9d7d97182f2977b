// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package vectorrepo

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store"
)

type metrics struct {
	opLatency      *prometheus.HistogramVec
	recordsWritten *prometheus.CounterVec
	indexCreations *prometheus.CounterVec
}

// newMetrics builds the collectors and registers them with reg when reg is
// non-nil. Unregistered collectors still work; they are just not exported.
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "scout",
			Subsystem: "vectorrepo",
			Name:      "operation_seconds",
			Help:      "Latency of repository operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "status"}),
		recordsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scout",
			Subsystem: "vectorrepo",
			Name:      "records_written_total",
			Help:      "Records written, by kind.",
		}, []string{"kind"}),
		indexCreations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scout",
			Subsystem: "vectorrepo",
			Name:      "index_creations_total",
			Help:      "Similarity index creation requests, by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.opLatency, m.recordsWritten, m.indexCreations)
	}
	return m
}

// observe records the latency of op since start.
func (m *metrics) observe(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.opLatency.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
}

// countWritten adds one committed batch to the written-records counter.
func (m *metrics) countWritten(kinds []store.Kind) {
	counts := make(map[store.Kind]int, 3)
	for _, k := range kinds {
		counts[k]++
	}
	for kind, n := range counts {
		m.recordsWritten.WithLabelValues(string(kind)).Add(float64(n))
	}
}
