// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package metrics exposes per-operator Prometheus counters and gauges,
// served over an HTTP endpoint via promhttp. Grounded on linkerd-linkerd2's
// service-mirror metrics (promauto.NewCounterVec/NewGaugeVec curried by a
// label identifying the owning component).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const workerLabel = "worker"

// Vecs holds every counter/gauge vector registered by this package, curried
// per worker at construction time by Worker.
type Vecs struct {
	eventsDecoded   *prometheus.CounterVec
	decodeErrors    *prometheus.CounterVec
	gcDropped       *prometheus.CounterVec
	spamFlagged     *prometheus.CounterVec
	capabilitySec   *prometheus.GaugeVec
	deferredPending *prometheus.GaugeVec
}

var defaultVecs *Vecs

func init() {
	defaultVecs = newVecs()
}

func newVecs() *Vecs {
	labels := []string{workerLabel}
	return &Vecs{
		eventsDecoded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dspa_events_decoded_total",
			Help: "Number of events successfully decoded by the source operator (C2).",
		}, labels),
		decodeErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dspa_decode_errors_total",
			Help: "Number of records that failed to decode (soft error, record dropped).",
		}, labels),
		gcDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dspa_posttree_gc_dropped_total",
			Help: "Number of deferred events garbage-collected by the post-tree operator (C4).",
		}, labels),
		spamFlagged: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dspa_spam_flagged_total",
			Help: "Number of persons flagged by a spam detector (C9), by detector kind.",
		}, []string{workerLabel, "detector"}),
		capabilitySec: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dspa_source_capability_epoch_seconds",
			Help: "Current event-time output capability of the source operator (C2).",
		}, labels),
		deferredPending: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dspa_posttree_deferred_pending",
			Help: "Number of events currently parked awaiting an unresolved parent (C4).",
		}, labels),
	}
}

// Worker scopes the default Vecs to one worker index's label.
type Worker struct {
	eventsDecoded   prometheus.Counter
	decodeErrors    prometheus.Counter
	gcDropped       prometheus.Counter
	spamFlagged     *prometheus.CounterVec
	capabilitySec   prometheus.Gauge
	deferredPending prometheus.Gauge
}

// ForWorker returns metrics curried with the given worker's label.
func ForWorker(worker int) *Worker {
	label := prometheus.Labels{workerLabel: itoa(worker)}
	spam, _ := defaultVecs.spamFlagged.CurryWith(label)
	return &Worker{
		eventsDecoded:   defaultVecs.eventsDecoded.With(label),
		decodeErrors:    defaultVecs.decodeErrors.With(label),
		gcDropped:       defaultVecs.gcDropped.With(label),
		spamFlagged:     spam,
		capabilitySec:   defaultVecs.capabilitySec.With(label),
		deferredPending: defaultVecs.deferredPending.With(label),
	}
}

func (w *Worker) EventDecoded()      { w.eventsDecoded.Inc() }
func (w *Worker) DecodeError()       { w.decodeErrors.Inc() }
func (w *Worker) GCDropped(n uint64) { w.gcDropped.Add(float64(n)) }
func (w *Worker) SpamFlagged(detector string) {
	w.spamFlagged.WithLabelValues(detector).Inc()
}
func (w *Worker) Capability(epochSec int64)  { w.capabilitySec.Set(float64(epochSec)) }
func (w *Worker) DeferredPending(n int)      { w.deferredPending.Set(float64(n)) }

// Serve starts the Prometheus scrape endpoint at addr (e.g. ":9090") on
// /metrics, blocking until the listener errors or is closed. It is meant to
// be run in its own goroutine; failures here are ambient observability
// concerns, never fatal to the pipeline (spec.md §7 scopes fatal errors to
// bootstrap and operator invariant violations only).
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
