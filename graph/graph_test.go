package graph_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deltaflow/deltaflow/graph"
	"github.com/deltaflow/deltaflow/node"
	"github.com/deltaflow/deltaflow/port"
)

type constBody struct{ node.BodyBase }

func (constBody) RunOnce(node.ConstantIO) error { return nil }

type runningBody struct{ node.BodyBase }

func (runningBody) WorkerEntry(node.WorkerIO) error { return nil }

func handle(id string, kind node.Kind, body node.Body, inIDs, outIDs []string) *node.Handle {
	h := &node.Handle{ID: id, Kind: kind, Body: body}
	h.InPorts = make(map[string]*node.InPort)
	for _, p := range inIDs {
		h.InPorts[p] = &node.InPort{Spec: port.InSpec{ID: p}}
	}
	h.OutPorts = make(map[string]*node.OutPort)
	for _, p := range outIDs {
		h.OutPorts[p] = &node.OutPort{Spec: port.OutSpec{ID: p}}
	}
	return h
}

func TestAddNodePanicsOnDuplicateID(t *testing.T) {
	g := graph.New()
	g.AddNode(handle("a", node.Running, runningBody{}, nil, nil))
	require.Panics(t, func() {
		g.AddNode(handle("a", node.Running, runningBody{}, nil, nil))
	})
}

func TestAddNodePanicsOnEmptyID(t *testing.T) {
	g := graph.New()
	require.Panics(t, func() {
		g.AddNode(&node.Handle{Kind: node.Running})
	})
}

func TestWireRejectsUnknownNodes(t *testing.T) {
	g := graph.New()
	g.AddNode(handle("a", node.Running, runningBody{}, nil, []string{"out"}))
	err := g.Wire(port.Name{NodeID: "a", PortID: "out"}, port.Name{NodeID: "missing", PortID: "in"})
	require.ErrorIs(t, err, graph.ErrUnknownNode)
}

func TestWireRejectsDoubleProducerOnOneInput(t *testing.T) {
	g := graph.New()
	g.AddNode(handle("a", node.Running, runningBody{}, nil, []string{"out"}))
	g.AddNode(handle("b", node.Running, runningBody{}, nil, []string{"out"}))
	g.AddNode(handle("c", node.Running, runningBody{}, []string{"in"}, nil))

	require.NoError(t, g.Wire(port.Name{NodeID: "a", PortID: "out"}, port.Name{NodeID: "c", PortID: "in"}))
	err := g.Wire(port.Name{NodeID: "b", PortID: "out"}, port.Name{NodeID: "c", PortID: "in"})
	require.ErrorIs(t, err, graph.ErrPortAlreadyWired)
}

func TestSplitInsertsSplitterForFanOut(t *testing.T) {
	g := graph.New()
	g.AddNode(handle("src", node.Running, runningBody{}, nil, []string{"out"}))
	g.AddNode(handle("s1", node.Running, runningBody{}, []string{"in"}, nil))
	g.AddNode(handle("s2", node.Running, runningBody{}, []string{"in"}, nil))

	require.NoError(t, g.Wire(port.Name{NodeID: "src", PortID: "out"}, port.Name{NodeID: "s1", PortID: "in"}))
	require.NoError(t, g.Wire(port.Name{NodeID: "src", PortID: "out"}, port.Name{NodeID: "s2", PortID: "in"}))

	require.NoError(t, g.Split())

	var splitterNode *node.Handle
	for _, n := range g.Nodes() {
		if n.Kind == node.Splitter {
			splitterNode = n
		}
	}
	require.NotNil(t, splitterNode)
	require.Len(t, splitterNode.OutPorts, 2)

	producerCount := make(map[string]int)
	for _, w := range g.Wires() {
		producerCount[w.From.String()]++
	}
	for key, n := range producerCount {
		require.Equal(t, 1, n, "wire %s feeds more than one consumer after split", key)
	}
}

func TestSplitIsNotReentrant(t *testing.T) {
	g := graph.New()
	g.AddNode(handle("a", node.Running, runningBody{}, nil, nil))
	require.NoError(t, g.Split())
	require.ErrorIs(t, g.Split(), graph.ErrAlreadySplit)
}

func TestSplitLeavesSingleConsumerWireUntouched(t *testing.T) {
	g := graph.New()
	g.AddNode(handle("a", node.Running, runningBody{}, nil, []string{"out"}))
	g.AddNode(handle("b", node.Running, runningBody{}, []string{"in"}, nil))
	require.NoError(t, g.Wire(port.Name{NodeID: "a", PortID: "out"}, port.Name{NodeID: "b", PortID: "in"}))
	require.NoError(t, g.Split())

	for _, n := range g.Nodes() {
		require.NotEqual(t, node.Splitter, n.Kind)
	}
	require.Len(t, g.Wires(), 1)
}

func TestCheckRejectsUnsplitGraph(t *testing.T) {
	g := graph.New()
	require.ErrorIs(t, g.Check(), graph.ErrNotSplit)
}

func TestCheckRejectsUnwiredRequiredInput(t *testing.T) {
	g := graph.New()
	g.AddNode(handle("a", node.Running, runningBody{}, []string{"in"}, nil))
	require.NoError(t, g.Split())
	err := g.Check()
	require.ErrorIs(t, err, graph.ErrUnwiredInput)
}

func TestCheckAllowsUnwiredOptionalInput(t *testing.T) {
	g := graph.New()
	h := &node.Handle{ID: "a", Kind: node.Running, Body: runningBody{}}
	h.InPorts = map[string]*node.InPort{"in": {Spec: port.InSpec{ID: "in", Optional: true}}}
	g.AddNode(h)
	require.NoError(t, g.Split())
	require.NoError(t, g.Check())
}

func TestCheckAllowsConstantToConstantWire(t *testing.T) {
	g := graph.New()
	g.AddNode(handle("a", node.Constant, constBody{}, nil, []string{"out"}))
	g.AddNode(handle("b", node.Constant, constBody{}, []string{"in"}, []string{"out"}))
	g.AddNode(handle("c", node.Running, runningBody{}, []string{"in"}, nil))
	require.NoError(t, g.Wire(port.Name{NodeID: "a", PortID: "out"}, port.Name{NodeID: "b", PortID: "in"}))
	require.NoError(t, g.Wire(port.Name{NodeID: "b", PortID: "out"}, port.Name{NodeID: "c", PortID: "in"}))
	require.NoError(t, g.Split())
	require.NoError(t, g.Check())
}

func TestCheckRejectsConstantOnlyGraph(t *testing.T) {
	g := graph.New()
	g.AddNode(handle("a", node.Constant, constBody{}, nil, nil))
	require.NoError(t, g.Split())
	require.ErrorIs(t, g.Check(), graph.ErrOnlyConstantNodes)
}

func TestCheckRejectsTemplateWithNoSelectedBody(t *testing.T) {
	g := graph.New()
	g.AddNode(&node.Handle{ID: "a", Kind: node.Template})
	g.AddNode(handle("b", node.Running, runningBody{}, nil, nil))
	require.NoError(t, g.Split())
	require.ErrorIs(t, g.Check(), node.ErrNeedsBody)
}

func TestCheckPassesWellFormedGraph(t *testing.T) {
	g := graph.New()
	g.AddNode(handle("a", node.Running, runningBody{}, nil, []string{"out"}))
	g.AddNode(handle("b", node.Running, runningBody{}, []string{"in"}, nil))
	require.NoError(t, g.Wire(port.Name{NodeID: "a", PortID: "out"}, port.Name{NodeID: "b", PortID: "in"}))
	require.NoError(t, g.Split())
	require.NoError(t, g.Check())
}
