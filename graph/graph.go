// Package graph builds and validates the node/wire topology handed to the
// scheduler: node registration, wiring, automatic splitter insertion for
// fan-out ports, and pre-start invariant checking.
package graph

import (
	"errors"
	"fmt"

	"github.com/deltaflow/deltaflow/node"
	"github.com/deltaflow/deltaflow/port"
)

var (
	// ErrAlreadySplit is returned by Split if called more than once on the
	// same Graph. Splitter insertion is idempotent in effect but not
	// re-entrant: a second call is almost always a caller bug (the topology
	// it would act on has already been rewritten), so it is rejected rather
	// than silently repeated.
	ErrAlreadySplit = errors.New("graph: already split")

	// ErrUnknownNode is returned when a Wire names a node ID that was never
	// registered with AddNode.
	ErrUnknownNode = errors.New("graph: unknown node")

	// ErrPortAlreadyWired is returned by Wire when the destination input
	// port already has a producer.
	ErrPortAlreadyWired = errors.New("graph: input port already wired")
)

// Wire is one producer-port-to-consumer-port edge, as declared by the
// caller before Split runs. After Split, every OutSpec has at most one Wire.
type Wire struct {
	From port.Name
	To   port.Name
}

// Graph is a mutable node/wire topology under construction. The zero value
// is not usable; build one with New.
type Graph struct {
	nodes map[string]*node.Handle
	order []string // insertion order, for deterministic iteration
	wires []Wire

	split     bool
	splitterN int
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*node.Handle)}
}

// AddNode registers h under h.ID. Panics on a duplicate ID: this is always
// a caller bug in graph-construction code, not a runtime condition.
func (g *Graph) AddNode(h *node.Handle) {
	if h.ID == "" {
		panic("graph: node ID must not be empty")
	}
	if _, exists := g.nodes[h.ID]; exists {
		panic(fmt.Sprintf("graph: duplicate node ID %q", h.ID))
	}
	if h.InPorts == nil {
		h.InPorts = make(map[string]*node.InPort)
	}
	if h.OutPorts == nil {
		h.OutPorts = make(map[string]*node.OutPort)
	}
	g.nodes[h.ID] = h
	g.order = append(g.order, h.ID)
}

// Node looks up a registered node by ID.
func (g *Graph) Node(id string) (*node.Handle, bool) {
	h, ok := g.nodes[id]
	return h, ok
}

// Nodes returns every registered node, in registration order.
func (g *Graph) Nodes() []*node.Handle {
	out := make([]*node.Handle, len(g.order))
	for i, id := range g.order {
		out[i] = g.nodes[id]
	}
	return out
}

// Wire declares an edge from an output port to an input port. Both nodes
// must already be registered via AddNode, and the destination input port
// must not already have a producer. Wiring is purely topological here; no
// channel is built until the scheduler asks the channel factory for one.
func (g *Graph) Wire(from, to port.Name) error {
	if _, ok := g.nodes[from.NodeID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, from.NodeID)
	}
	if _, ok := g.nodes[to.NodeID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, to.NodeID)
	}
	for _, w := range g.wires {
		if w.To == to {
			return fmt.Errorf("%w: %s", ErrPortAlreadyWired, to)
		}
	}
	g.wires = append(g.wires, Wire{From: from, To: to})
	return nil
}

// Wires returns the graph's current edge set (post-Split, if Split has run).
func (g *Graph) Wires() []Wire {
	out := make([]Wire, len(g.wires))
	copy(out, g.wires)
	return out
}
