// Package metrics exposes Prometheus counters for the message pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesTotal counts inbound messages by kind (text, receipt, transfer).
	MessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vaquita",
		Name:      "messages_total",
		Help:      "Inbound messages processed, by kind.",
	}, []string{"kind"})

	// ReconciliationsTotal counts reconciliation outcomes by payment status.
	ReconciliationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vaquita",
		Name:      "reconciliations_total",
		Help:      "Completed reconciliations, by payment status.",
	}, []string{"status"})

	// OracleFailures counts model calls that returned an error.
	OracleFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vaquita",
		Name:      "oracle_failures_total",
		Help:      "Model calls that failed and fell back to empty results.",
	})
)
