package providers

import (
	"hash/fnv"

	id "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain"
)

// Router picks an adapter for a verification attempt. With distribution
// enabled, users are spread across adapters by a stable hash of the user ID
// so the same user always lands on the same vendor across restarts.
type Router struct {
	registry    *Registry
	defaultName string
	distribute  bool
}

// NewRouter wires a router over a populated registry.
func NewRouter(registry *Registry, defaultName string, distributeByUser bool) *Router {
	return &Router{
		registry:    registry,
		defaultName: defaultName,
		distribute:  distributeByUser,
	}
}

// Select returns the adapter for a new attempt by userID: the hash-distributed
// one when distribution is on, the configured default otherwise.
func (r *Router) Select(userID id.UserID) (Adapter, error) {
	if r.distribute {
		return r.SelectForUser(userID)
	}
	return r.SelectNamed(r.defaultName)
}

// SelectNamed returns the adapter registered under name. Used to route vendor
// callbacks back to the adapter that owns the in-flight attempt.
func (r *Router) SelectNamed(name string) (Adapter, error) {
	a, ok := r.registry.Get(name)
	if !ok {
		return nil, ErrAdapterNotFound
	}
	return a, nil
}

// SelectForUser distributes by FNV-1a of the user ID modulo the adapter
// count. FNV is deterministic across processes, unlike Go's map iteration or
// runtime string hashing.
func (r *Router) SelectForUser(userID id.UserID) (Adapter, error) {
	names := r.registry.names
	if len(names) == 0 {
		return nil, ErrNoAdaptersAvailable
	}
	h := fnv.New32a()
	h.Write(userID.Bytes())
	name := names[int(h.Sum32())%len(names)]
	return r.SelectNamed(name)
}
