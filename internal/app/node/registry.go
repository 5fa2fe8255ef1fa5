package node

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/ItzRandom23/magmastream-custom/internal/domain/track"
)

var (
	ErrNodeNotFound  = errors.New("node not found")
	ErrDuplicateNode = errors.New("node already registered")
	ErrNoUsableNode  = errors.New("no usable node available")
)

// Registry holds the known nodes with thread-safe access.
type Registry struct {
	mu    sync.RWMutex
	nodes map[string]*Node
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		nodes: make(map[string]*Node),
	}
}

// Add registers a node under its identifier.
func (r *Registry) Add(n *Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.nodes[n.ID()]; ok {
		return errors.Wrapf(ErrDuplicateNode, "%q", n.ID())
	}
	r.nodes[n.ID()] = n
	return nil
}

// Get looks a node up by identifier.
func (r *Registry) Get(id string) (*Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.nodes[id]
	if !ok {
		return nil, errors.Wrapf(ErrNodeNotFound, "%q", id)
	}
	return n, nil
}

// Remove drops a node. It reports whether the node was registered.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.nodes[id]; !ok {
		return false
	}
	delete(r.nodes, id)
	return true
}

// All returns every node ordered by identifier.
func (r *Registry) All() []*Node {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		result = append(result, n)
	}
	slices.SortFunc(result, func(a, b *Node) int { return strings.Compare(a.ID(), b.ID()) })
	return result
}

// Best returns the usable node with the highest priority. Ties go to the lowest penalty.
func (r *Registry) Best() (*Node, error) {
	var best *Node
	var bestPenalty float64
	for _, n := range r.All() {
		if !n.Usable() {
			continue
		}
		p := n.Penalty()
		switch {
		case best == nil:
		case n.opts.Priority > best.opts.Priority:
		case n.opts.Priority == best.opts.Priority && p < bestPenalty:
		default:
			continue
		}
		best, bestPenalty = n, p
	}
	if best == nil {
		return nil, ErrNoUsableNode
	}
	return best, nil
}

// LoadTracks resolves an identifier on the best usable node.
func (r *Registry) LoadTracks(ctx context.Context, identifier string) (*track.LoadResult, error) {
	n, err := r.Best()
	if err != nil {
		return nil, err
	}
	return n.LoadTracks(ctx, identifier)
}
