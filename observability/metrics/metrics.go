package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"marketd/core/events"
)

var (
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketd_events_total",
		Help: "Marketplace telemetry events emitted, by event type.",
	}, []string{"type"})

	opsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketd_ops_total",
		Help: "Marketplace operations processed, by operation and result.",
	}, []string{"op", "result"})
)

// ObserveOp records one completed operation outcome. Purely observational;
// never consulted by the ledger.
func ObserveOp(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	opsTotal.WithLabelValues(op, result).Inc()
}

// Emitter decorates another emitter with a per-type event counter.
type Emitter struct {
	next events.Emitter
}

// NewEmitter wraps next; a nil next only counts.
func NewEmitter(next events.Emitter) *Emitter {
	return &Emitter{next: next}
}

// Emit implements the events.Emitter interface.
func (e *Emitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	eventsTotal.WithLabelValues(evt.EventType()).Inc()
	if e != nil && e.next != nil {
		e.next.Emit(evt)
	}
}
