package graph

import (
	"errors"
	"fmt"

	"github.com/deltaflow/deltaflow/node"
)

var (
	// ErrNotSplit is returned by Check if Split has not yet run.
	ErrNotSplit = errors.New("graph: must call Split before Check")

	// ErrUnwiredInput is returned when a non-optional input port has no
	// producer.
	ErrUnwiredInput = errors.New("graph: non-optional input port is unwired")

	// ErrFanOutSurvived is returned if, after Split, an output port still
	// feeds more than one input port — an internal invariant violation,
	// since Split is supposed to eliminate every such case.
	ErrFanOutSurvived = errors.New("graph: output port feeds multiple consumers after splitting")

	// ErrOnlyConstantNodes is returned when a graph contains no Running or
	// Splitter node: such a graph can never make progress beyond start.
	ErrOnlyConstantNodes = errors.New("graph: graph contains only constant nodes")
)

// Check validates the post-Split topology against the invariants the
// scheduler relies on. It must run after Split and before channel
// construction.
func (g *Graph) Check() error {
	if !g.split {
		return ErrNotSplit
	}

	producerCount := make(map[string]int) // "nodeID\x00portID" -> count of consumers
	for _, w := range g.wires {
		producerCount[w.From.NodeID+"\x00"+w.From.PortID]++
	}
	for key, n := range producerCount {
		if n > 1 {
			return fmt.Errorf("%w: %s", ErrFanOutSurvived, key)
		}
	}

	wiredInputs := make(map[string]bool) // "nodeID\x00portID" -> wired
	for _, w := range g.wires {
		key := w.To.NodeID + "\x00" + w.To.PortID
		wiredInputs[key] = true

		if _, ok := g.nodes[w.From.NodeID]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownNode, w.From.NodeID)
		}
		if _, ok := g.nodes[w.To.NodeID]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownNode, w.To.NodeID)
		}
		// A Constant producer feeding a Constant consumer is valid: the
		// channel factory short-circuits that pair to a direct call
		// instead of a channel (see channel.Factory.Select).
	}

	hasRunningOrSplitter := false
	for _, id := range g.order {
		n := g.nodes[id]
		if n.NeedsBody() {
			return fmt.Errorf("%w: %s", node.ErrNeedsBody, id)
		}
		switch n.EffectiveKind() {
		case node.Running, node.Splitter:
			hasRunningOrSplitter = true
		}
		for portID, in := range n.InPorts {
			if in.Spec.Optional {
				continue
			}
			if !wiredInputs[id+"\x00"+portID] {
				return fmt.Errorf("%w: %s.%s", ErrUnwiredInput, id, portID)
			}
		}
	}

	if !hasRunningOrSplitter {
		return ErrOnlyConstantNodes
	}

	return nil
}
