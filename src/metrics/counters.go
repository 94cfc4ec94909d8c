package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Counter names.
const (
	CancelFailuresSwallowed = "cancel_failures_swallowed_total"
	OpenOrderListFailures   = "open_order_list_failures_total"
	AutoExitsSubmitted      = "auto_exits_submitted_total"
	AutoExitsRejected       = "auto_exits_rejected_total"
	AutoExitsSkipped        = "auto_exits_skipped_total"
	FillChecks              = "fill_checks_total"
	ReconcileTicks          = "reconcile_ticks_total"
	ReconcileSymbolErrors   = "reconcile_symbol_errors_total"
)

// Registry is a set of named monotonic counters.
type Registry struct {
	mu       sync.RWMutex
	counters map[string]*atomic.Int64
}

func NewRegistry() *Registry {
	return &Registry{counters: map[string]*atomic.Int64{}}
}

// Default is the process-wide registry served on /metrics.
var Default = NewRegistry()

func (r *Registry) counter(name string) *atomic.Int64 {
	r.mu.RLock()
	c, ok := r.counters[name]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok = r.counters[name]; !ok {
		c = new(atomic.Int64)
		r.counters[name] = c
	}
	return c
}

func (r *Registry) Inc(name string) {
	r.counter(name).Add(1)
}

func (r *Registry) Get(name string) int64 {
	return r.counter(name).Load()
}

// Snapshot copies the current values, keyed by name.
func (r *Registry) Snapshot() map[string]int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]int64, len(r.counters))
	for name, c := range r.counters {
		out[name] = c.Load()
	}
	return out
}

// Names returns the registered counter names in order.
func (r *Registry) Names() []string {
	snap := r.Snapshot()
	names := make([]string, 0, len(snap))
	for n := range snap {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
