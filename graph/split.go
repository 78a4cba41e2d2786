package graph

import (
	"fmt"
	"sort"

	"github.com/deltaflow/deltaflow/node"
	"github.com/deltaflow/deltaflow/port"
)

// splitterBody is the placeholder Body Split attaches to every Splitter
// node. It carries no behavior: the scheduler recognizes node.Splitter and
// runs the built-in loop itself (read one message, write it by value to
// every output).
type splitterBody struct{ node.BodyBase }

// Split rewrites the graph so every output port feeds at most one channel:
// any output port consumed by two or more input ports gets a synthetic
// Splitter node spliced in between. Split is not re-entrant — call it
// exactly once, after all Wire calls and before building channels.
func (g *Graph) Split() error {
	if g.split {
		return ErrAlreadySplit
	}
	g.split = true

	byProducer := make(map[string][]int) // "nodeID\x00portID" -> wire indices
	var keys []string
	for i, w := range g.wires {
		key := w.From.NodeID + "\x00" + w.From.PortID
		if _, ok := byProducer[key]; !ok {
			keys = append(keys, key)
		}
		byProducer[key] = append(byProducer[key], i)
	}
	sort.Strings(keys) // deterministic splitter-ID assignment

	var rewritten []Wire
	consumed := make(map[int]bool)
	splitterCount := 0

	for _, key := range keys {
		idxs := byProducer[key]
		if len(idxs) < 2 {
			continue
		}
		splitterCount++
		producer := g.wires[idxs[0]].From
		producer.FanIndex = "" // the splitter forwards the full, unprojected value

		splitterID := fmt.Sprintf("%s.%s/splitter", g.wires[idxs[0]].From.NodeID, g.wires[idxs[0]].From.PortID)
		s := &node.Handle{
			ID:       splitterID,
			Kind:     node.Splitter,
			Body:     splitterBody{},
			InPorts:  map[string]*node.InPort{"in": {Spec: port.InSpec{ID: "in"}}},
			OutPorts: make(map[string]*node.OutPort),
		}

		for n, idx := range idxs {
			outID := fmt.Sprintf("out%d", n)
			s.OutPorts[outID] = &node.OutPort{Spec: port.OutSpec{ID: outID}}

			original := g.wires[idx]
			rewritten = append(rewritten, Wire{
				From: port.Name{NodeID: splitterID, PortID: outID, FanIndex: original.From.FanIndex},
				To:   original.To,
			})
			consumed[idx] = true
		}

		g.AddNode(s)
		rewritten = append(rewritten, Wire{
			From: producer,
			To:   port.Name{NodeID: splitterID, PortID: "in"},
		})
	}

	for i, w := range g.wires {
		if !consumed[i] {
			rewritten = append(rewritten, w)
		}
	}

	g.wires = rewritten
	g.splitterN = splitterCount
	return nil
}
