// Package registry tracks the health of every registered payment provider:
// status, consecutive error count, and last-checked timestamp. The dispatch
// service consults it to pick and order providers for failover.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/tapyield/cashout/pkg/provider/payment"
)

// Status is the routing state of a provider connection.
type Status string

const (
	// StatusActive means the provider is eligible for traffic.
	StatusActive Status = "active"
	// StatusInactive is an administrative state: do not route traffic here.
	// Never produced by automatic logic.
	StatusInactive Status = "inactive"
	// StatusError means consecutive failures crossed the error threshold.
	StatusError Status = "error"
)

// ErrUnknownProvider is returned for operations on an unregistered provider ID.
var ErrUnknownProvider = errors.New("unknown provider")

// Connection is a snapshot of one provider's health state.
type Connection struct {
	ProviderID        string    `json:"provider_id"`
	Status            Status    `json:"status"`
	ConsecutiveErrors int       `json:"consecutive_errors"`
	LastChecked       time.Time `json:"last_checked"`
	IsRealTime        bool      `json:"is_real_time"`
}

type entry struct {
	provider payment.Provider
	conn     Connection
	order    int // registration order, stable tie-break
}

// Registry is a thread-safe health registry over a fixed provider list.
// Connections are created at registration and never deleted, only
// deactivated.
type Registry struct {
	mu             sync.RWMutex
	entries        map[string]*entry
	errorThreshold int
	logger         *slog.Logger
}

// New creates an empty registry. errorThreshold is the consecutive-error
// count at which a provider flips from active to error.
func New(errorThreshold int, logger *slog.Logger) *Registry {
	if errorThreshold <= 0 {
		errorThreshold = 10
	}
	return &Registry{
		entries:        make(map[string]*entry),
		errorThreshold: errorThreshold,
		logger:         logger,
	}
}

// Register adds a provider connection in active state. Re-registering an ID
// replaces the adapter but keeps the existing health counters.
func (r *Registry) Register(p payment.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[p.ID()]; ok {
		e.provider = p
		return
	}
	r.entries[p.ID()] = &entry{
		provider: p,
		conn: Connection{
			ProviderID: p.ID(),
			Status:     StatusActive,
			IsRealTime: p.RealTime(),
		},
		order: len(r.entries),
	}
}

// Provider returns the adapter registered under id.
func (r *Registry) Provider(id string) (payment.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return e.provider, nil
}

// ListActive returns the connections currently eligible for traffic, ordered
// ascending by consecutive errors so a flaky provider self-demotes without
// manual configuration. Ties keep registration order.
func (r *Registry) ListActive() []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type ranked struct {
		conn  Connection
		order int
	}
	active := make([]ranked, 0, len(r.entries))
	for _, e := range r.entries {
		if e.conn.Status == StatusActive {
			active = append(active, ranked{conn: e.conn, order: e.order})
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].conn.ConsecutiveErrors != active[j].conn.ConsecutiveErrors {
			return active[i].conn.ConsecutiveErrors < active[j].conn.ConsecutiveErrors
		}
		return active[i].order < active[j].order
	})

	conns := make([]Connection, len(active))
	for i, a := range active {
		conns[i] = a.conn
	}
	return conns
}

// Snapshot returns every connection regardless of status, in registration
// order.
func (r *Registry) Snapshot() []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	es := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		es = append(es, e)
	}
	sort.Slice(es, func(i, j int) bool { return es[i].order < es[j].order })

	conns := make([]Connection, len(es))
	for i, e := range es {
		conns[i] = e.conn
	}
	return conns
}

// RecordOutcome updates a provider's counters after an attempt. Success
// resets the consecutive error count and clears an automatic error state;
// failure increments it, flipping the provider to error once the threshold
// is crossed. Administrative inactive state is never touched.
func (r *Registry) RecordOutcome(id string, success bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return ErrUnknownProvider
	}
	if success {
		e.conn.ConsecutiveErrors = 0
		if e.conn.Status == StatusError {
			e.conn.Status = StatusActive
		}
		return nil
	}
	e.conn.ConsecutiveErrors++
	if e.conn.Status == StatusActive && e.conn.ConsecutiveErrors >= r.errorThreshold {
		e.conn.Status = StatusError
		if r.logger != nil {
			r.logger.Warn("provider disabled after consecutive errors",
				"provider_id", id,
				"consecutive_errors", e.conn.ConsecutiveErrors,
			)
		}
	}
	return nil
}

// Deactivate puts a provider in the administrative inactive state.
func (r *Registry) Deactivate(id string) error {
	return r.setStatus(id, StatusInactive)
}

// Activate returns a provider to active state and resets its error count.
func (r *Registry) Activate(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return ErrUnknownProvider
	}
	e.conn.Status = StatusActive
	e.conn.ConsecutiveErrors = 0
	return nil
}

func (r *Registry) setStatus(id string, s Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return ErrUnknownProvider
	}
	e.conn.Status = s
	return nil
}

// RunHealthCheck probes every known provider and records the outcome. A
// single failed probe never disables a provider on its own; only the
// threshold crossing in RecordOutcome does, which avoids flapping.
func (r *Registry) RunHealthCheck(ctx context.Context) []Connection {
	r.mu.RLock()
	providers := make([]payment.Provider, 0, len(r.entries))
	for _, e := range r.entries {
		providers = append(providers, e.provider)
	}
	r.mu.RUnlock()

	now := time.Now()
	for _, p := range providers {
		err := p.Ping(ctx)
		r.mu.Lock()
		if e, ok := r.entries[p.ID()]; ok {
			e.conn.LastChecked = now
		}
		r.mu.Unlock()
		if recErr := r.RecordOutcome(p.ID(), err == nil); recErr != nil {
			continue
		}
		if err != nil && r.logger != nil {
			r.logger.Warn("provider health probe failed",
				"provider_id", p.ID(),
				"error", err,
			)
		}
	}
	return r.Snapshot()
}
