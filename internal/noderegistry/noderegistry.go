// Package noderegistry implements the per-realization key-to-node mapping.
// The registry exclusively owns every node it holds; iteration is
// insertion-order-irrelevant, and mutation during traversal is forbidden —
// callers that must mutate while walking the registry (the write-restart
// pass, the free-nodes pass) are required to snapshot the key set first.
package noderegistry

import (
	"fmt"
	"sync"

	"github.com/resflow/forward-runner/internal/node"
	"github.com/resflow/forward-runner/internal/subst"
)

// Kind is the one error kind this package raises.
type Kind string

const KindNodeMissing Kind = "NODE_MISSING"

type Error struct {
	Kind Kind
	Key  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Key)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Registry holds one realization's collection of nodes, keyed by name.
// It is safe for concurrent use: the orchestrator's stages do not read or
// write it concurrently today, but the snapshot-then-iterate idiom below
// depends on a consistent read of the key set, which an RWMutex gives for
// free.
type Registry struct {
	mu    sync.RWMutex
	nodes map[string]node.Node
}

// New constructs an empty registry.
func New() *Registry {
	return &Registry{nodes: make(map[string]node.Node)}
}

// Add inserts n under key, replacing and dropping any node already present
// under that key. If n's implementation type is GEN_KW, its private
// substitution parent is wired to tbl so templates evaluated inside the
// node see IENS, CASE, and the rest of the shared table.
func (r *Registry) Add(key string, n node.Node, tbl *subst.Table) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes[key] = n
	if n.Impl() == node.GenKW {
		if wirer, ok := n.(interface{ WireSubstParent(*subst.Table) }); ok {
			wirer.WireSubstParent(tbl)
		}
	}
}

// Has reports whether key is registered.
func (r *Registry) Has(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.nodes[key]
	return ok
}

// Get returns the node registered under key, or a NODE_MISSING error.
func (r *Registry) Get(key string) (node.Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[key]
	if !ok {
		return nil, &Error{Kind: KindNodeMissing, Key: key}
	}
	return n, nil
}

// Delete removes key if present; it is a no-op otherwise.
func (r *Registry) Delete(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.nodes, key)
}

// Snapshot returns the current set of keys as a stable slice, safe to
// range over while concurrently mutating the registry. Every caller that
// needs to delete or replace entries while walking the registry must go
// through Snapshot first rather than ranging over the registry directly —
// there is no direct iterator exposed for exactly that reason.
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.nodes))
	for k := range r.nodes {
		keys = append(keys, k)
	}
	return keys
}

// Iter calls fn once per (key, node) pair over a snapshot of the pairs
// taken before iteration begins. fn may safely call Add/Delete on the
// registry during iteration; those mutations are never observed by this
// call.
func (r *Registry) Iter(fn func(key string, n node.Node)) {
	type pair struct {
		key string
		n   node.Node
	}
	r.mu.RLock()
	pairs := make([]pair, 0, len(r.nodes))
	for k, n := range r.nodes {
		pairs = append(pairs, pair{k, n})
	}
	r.mu.RUnlock()
	for _, p := range pairs {
		fn(p.key, p.n)
	}
}

// Len reports the number of registered nodes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}
