package connectors

import (
	"fmt"
	"sync"

	"github.com/litmesh/literature-aggregation-service/internal/domain"
)

// Registry holds the configured connectors in an explicit invocation order.
// Connectors can be registered, removed, and reordered at runtime without a
// process restart; iteration always follows the stored order list, never map
// order. All methods are safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	connectors map[domain.SourceType]Connector
	order      []domain.SourceType
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		connectors: make(map[domain.SourceType]Connector),
	}
}

// Register adds a connector to the registry at the end of the invocation
// order. Registering a connector whose source type is already present
// replaces the old connector and keeps its position.
func (r *Registry) Register(conn Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()

	source := conn.Source()
	if _, exists := r.connectors[source]; !exists {
		r.order = append(r.order, source)
	}
	r.connectors[source] = conn
}

// Remove deletes the connector for source from the registry and from the
// invocation order. It reports whether a connector was removed.
func (r *Registry) Remove(source domain.SourceType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connectors[source]; !exists {
		return false
	}
	delete(r.connectors, source)
	for i, s := range r.order {
		if s == source {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Reorder replaces the invocation order. Every entry must name a registered
// connector and appear at most once. Registered connectors omitted from the
// new order keep their previous relative order after the listed ones.
func (r *Registry) Reorder(order []domain.SourceType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[domain.SourceType]bool, len(order))
	for _, source := range order {
		if _, exists := r.connectors[source]; !exists {
			return fmt.Errorf("reorder: connector %q not registered", source)
		}
		if seen[source] {
			return fmt.Errorf("reorder: connector %q listed twice", source)
		}
		seen[source] = true
	}

	newOrder := make([]domain.SourceType, 0, len(r.connectors))
	newOrder = append(newOrder, order...)
	for _, source := range r.order {
		if !seen[source] {
			newOrder = append(newOrder, source)
		}
	}
	r.order = newOrder
	return nil
}

// Get returns the connector for source, or nil if not registered.
func (r *Registry) Get(source domain.SourceType) Connector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connectors[source]
}

// Ordered returns the registered connectors in invocation order. The returned
// slice is a snapshot and is safe to iterate while the registry changes.
func (r *Registry) Ordered() []Connector {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]Connector, 0, len(r.order))
	for _, source := range r.order {
		conns = append(conns, r.connectors[source])
	}
	return conns
}

// Sources returns the invocation order as a snapshot.
func (r *Registry) Sources() []domain.SourceType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order := make([]domain.SourceType, len(r.order))
	copy(order, r.order)
	return order
}

// Len returns the number of registered connectors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connectors)
}
