package phy

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/expvar"
)

// Metrics holds the counters a Context maintains.
type Metrics struct {
	Bits       metrics.Counter
	Frames     metrics.Counter
	Rejected   metrics.Counter
	Stalls     metrics.Counter
	Locks      metrics.Counter
	SyncLosses metrics.Counter
}

// NewExpvarMetrics returns Metrics published through the expvar package,
// each name beginning with prefix.  Publishing the same prefix twice
// panics.
func NewExpvarMetrics(prefix string) *Metrics {
	return &Metrics{
		Bits:       expvar.NewCounter(prefix + "_bits"),
		Frames:     expvar.NewCounter(prefix + "_frames"),
		Rejected:   expvar.NewCounter(prefix + "_frames_rejected"),
		Stalls:     expvar.NewCounter(prefix + "_frames_stalled"),
		Locks:      expvar.NewCounter(prefix + "_sync_locks"),
		SyncLosses: expvar.NewCounter(prefix + "_sync_losses"),
	}
}

// NewDiscardMetrics returns Metrics which record nothing.
func NewDiscardMetrics() *Metrics {
	return &Metrics{
		Bits:       discard.NewCounter(),
		Frames:     discard.NewCounter(),
		Rejected:   discard.NewCounter(),
		Stalls:     discard.NewCounter(),
		Locks:      discard.NewCounter(),
		SyncLosses: discard.NewCounter(),
	}
}
