// Package kb holds the world graph: every server node and its adjacency.
package kb

import (
	"errors"
	"fmt"

	"github.com/signalsfoundry/netexpanse/model"
)

var (
	// ErrServerExists indicates a hostname is already taken.
	ErrServerExists = errors.New("server already exists")
	// ErrServerNotFound indicates a requested hostname is unknown.
	ErrServerNotFound = errors.New("server not found")
)

// Graph is the world graph store. Nodes are never deleted.
//
// Graph is not safe for concurrent use; the tick scheduler owns it
// exclusively while a tick runs. Snapshot gives copy-on-write isolation:
// after a snapshot neither graph writes a shared node in place, Mutable
// clones it first.
type Graph struct {
	nodes map[string]*model.ServerNode
	order []string

	// owned marks nodes this graph may write without cloning.
	owned map[string]struct{}
}

// NewGraph constructs an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[string]*model.ServerNode),
		owned: make(map[string]struct{}),
	}
}

// Get returns the node for hostname, or nil if not found. The node must be
// treated as read-only; use Mutable to change it.
func (g *Graph) Get(hostname string) *model.ServerNode {
	if g == nil {
		return nil
	}
	return g.nodes[hostname]
}

// Has reports whether hostname exists.
func (g *Graph) Has(hostname string) bool {
	return g.Get(hostname) != nil
}

// Mutable returns a node that may be written in place, cloning it first if
// it is shared with another snapshot. It returns nil if not found.
func (g *Graph) Mutable(hostname string) *model.ServerNode {
	n, ok := g.nodes[hostname]
	if !ok {
		return nil
	}
	if _, mine := g.owned[hostname]; mine {
		return n
	}
	clone := n.Clone()
	g.nodes[hostname] = clone
	g.owned[hostname] = struct{}{}
	return clone
}

// Upsert stores n under its hostname, replacing any existing node. The graph
// takes ownership of n. It reports whether the hostname was new.
func (g *Graph) Upsert(n *model.ServerNode) bool {
	if n == nil {
		return false
	}
	_, exists := g.nodes[n.Hostname]
	if !exists {
		g.order = append(g.order, n.Hostname)
	}
	g.nodes[n.Hostname] = n
	g.owned[n.Hostname] = struct{}{}
	return !exists
}

// Insert adds n, failing with ErrServerExists on a hostname collision.
func (g *Graph) Insert(n *model.ServerNode) error {
	if n == nil {
		return fmt.Errorf("insert: nil server")
	}
	if g.Has(n.Hostname) {
		return fmt.Errorf("%w: %q", ErrServerExists, n.Hostname)
	}
	g.Upsert(n)
	return nil
}

// Connect links a and b in both directions. Connecting an existing edge is
// a no-op; connecting a node to itself is ignored.
func (g *Graph) Connect(a, b string) error {
	if !g.Has(a) {
		return fmt.Errorf("%w: %q", ErrServerNotFound, a)
	}
	if !g.Has(b) {
		return fmt.Errorf("%w: %q", ErrServerNotFound, b)
	}
	if a == b {
		return nil
	}
	if !g.nodes[a].IsConnected(b) {
		na := g.Mutable(a)
		na.Connections = append(na.Connections, b)
	}
	if !g.nodes[b].IsConnected(a) {
		nb := g.Mutable(b)
		nb.Connections = append(nb.Connections, a)
	}
	return nil
}

// Neighbors returns the adjacency list of hostname, or nil if not found.
// Callers must not modify the slice.
func (g *Graph) Neighbors(hostname string) []string {
	n := g.Get(hostname)
	if n == nil {
		return nil
	}
	return n.Connections
}

// All returns every node in insertion order.
func (g *Graph) All() []*model.ServerNode {
	res := make([]*model.ServerNode, 0, len(g.order))
	for _, h := range g.order {
		res = append(res, g.nodes[h])
	}
	return res
}

// Hostnames returns every hostname in insertion order.
func (g *Graph) Hostnames() []string {
	return append([]string(nil), g.order...)
}

// Len is the number of nodes.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.order)
}

// Snapshot returns a copy-on-write view sharing every node with g. Both
// graphs drop in-place write rights, so later mutation on either side
// clones the affected node and stays invisible to the other.
func (g *Graph) Snapshot() *Graph {
	snap := &Graph{
		nodes: make(map[string]*model.ServerNode, len(g.nodes)),
		order: append([]string(nil), g.order...),
		owned: make(map[string]struct{}),
	}
	for h, n := range g.nodes {
		snap.nodes[h] = n
	}
	g.owned = make(map[string]struct{})
	return snap
}

// Clone returns a fully independent deep copy.
func (g *Graph) Clone() *Graph {
	out := NewGraph()
	for _, h := range g.order {
		out.Upsert(g.nodes[h].Clone())
	}
	return out
}
