// Package demo builds the six reference graphs used to exercise the
// runtime end to end, one per scenario named by the CLI's --scenario flag.
package demo

import (
	"errors"
	"strconv"
	"time"

	"github.com/deltaflow/deltaflow/bodies"
	"github.com/deltaflow/deltaflow/graph"
	"github.com/deltaflow/deltaflow/node"
	"github.com/deltaflow/deltaflow/port"
)

// Scenario is a runnable demo graph plus a closure that renders its result
// once the scheduler has finished.
type Scenario struct {
	Name   string
	Graph  *graph.Graph
	Report func() string
}

// All returns every scenario in spec order, 1 through 6.
func All() []Scenario {
	return []Scenario{
		AdderThenPrint(),
		SplitterFanOut(),
		ForkedOutputSplitter(),
		BackpressureTiming(),
		TemplateBodySelection("simple_add"),
		FaultPropagation(),
	}
}

func constNode(id string, value any) *node.Handle {
	return &node.Handle{
		ID:       id,
		Kind:     node.Constant,
		Body:     bodies.ConstSource{Value: value},
		OutPorts: map[string]*node.OutPort{"out": {Spec: port.OutSpec{ID: "out"}}},
	}
}

func out(id string) port.Name { return port.Name{NodeID: id, PortID: "out"} }
func in(id string) port.Name  { return port.Name{NodeID: id, PortID: "in"} }

// AdderThenPrint is scenario 1: two Constant sources carrying 2 and 3, one
// Running adder, one Running sink that records the value then stops the run.
func AdderThenPrint() Scenario {
	g := graph.New()
	g.AddNode(constNode("two", 2))
	g.AddNode(constNode("three", 3))

	adder := bodies.NewAdder(bodies.SimpleAdd)
	g.AddNode(&node.Handle{
		ID:   "adder",
		Kind: node.Running,
		Body: adder,
		InPorts: map[string]*node.InPort{
			"a": {Spec: port.InSpec{ID: "a"}},
			"b": {Spec: port.InSpec{ID: "b"}},
		},
		OutPorts: map[string]*node.OutPort{"out": {Spec: port.OutSpec{ID: "out"}}},
	})

	sink := &bodies.Sink{Terminal: true}
	g.AddNode(&node.Handle{
		ID:      "sink",
		Kind:    node.Running,
		Body:    sink,
		InPorts: map[string]*node.InPort{"in": {Spec: port.InSpec{ID: "in"}}},
	})

	must(g.Wire(out("two"), port.Name{NodeID: "adder", PortID: "a"}))
	must(g.Wire(out("three"), port.Name{NodeID: "adder", PortID: "b"}))
	must(g.Wire(out("adder"), in("sink")))

	return Scenario{
		Name:  "adder-then-print",
		Graph: g,
		Report: func() string {
			return renderInts("sink recorded", sink.Recorded())
		},
	}
}

// SplitterFanOut is scenario 2: one Running source producing 1, three sinks
// each recording their input, the source stopping the run after one
// emission. The shared output port triggers automatic splitter insertion.
func SplitterFanOut() Scenario {
	g := graph.New()

	src := &bodies.TimedSource{Values: []int{1}}
	g.AddNode(&node.Handle{
		ID:       "source",
		Kind:     node.Running,
		Body:     src,
		OutPorts: map[string]*node.OutPort{"out": {Spec: port.OutSpec{ID: "out"}}},
	})

	sinks := make([]*bodies.Sink, 3)
	for i := range sinks {
		sinks[i] = &bodies.Sink{}
		id := sinkID(i)
		g.AddNode(&node.Handle{
			ID:      id,
			Kind:    node.Running,
			Body:    sinks[i],
			InPorts: map[string]*node.InPort{"in": {Spec: port.InSpec{ID: "in"}}},
		})
		must(g.Wire(out("source"), in(id)))
	}

	return Scenario{
		Name:  "splitter-fan-out",
		Graph: g,
		Report: func() string {
			s := ""
			for i, sink := range sinks {
				if i > 0 {
					s += "; "
				}
				s += sinkID(i) + "=" + renderInts("", sink.Recorded())
			}
			return s
		},
	}
}

func sinkID(i int) string {
	return []string{"sink0", "sink1", "sink2"}[i]
}

// ForkedOutputSplitter is scenario 3: a single source emits a composite
// {x:1, y:2}; two sinks subscribe to x, one to y, via fan-indexed wires to
// the same producer output port (still a single splitter insertion site,
// per the producer-port grouping rule — the "two channels" language in the
// scenario refers to the two distinct fan-index projections, x and y, not
// the splitter's per-consumer output count, which is one channel per
// consumer regardless of how many share a fan index).
func ForkedOutputSplitter() Scenario {
	g := graph.New()

	src := &bodies.CompositeSource{Value: map[string]any{"x": 1, "y": 2}}
	g.AddNode(&node.Handle{
		ID:       "source",
		Kind:     node.Running,
		Body:     src,
		OutPorts: map[string]*node.OutPort{"out": {Spec: port.OutSpec{ID: "out"}}},
	})

	sinkX1, sinkX2, sinkY := &bodies.Sink{}, &bodies.Sink{}, &bodies.Sink{}
	for id, sink := range map[string]*bodies.Sink{"sinkX1": sinkX1, "sinkX2": sinkX2, "sinkY": sinkY} {
		g.AddNode(&node.Handle{
			ID:      id,
			Kind:    node.Running,
			Body:    sink,
			InPorts: map[string]*node.InPort{"in": {Spec: port.InSpec{ID: "in"}}},
		})
	}
	must(g.Wire(port.Name{NodeID: "source", PortID: "out", FanIndex: "x"}, in("sinkX1")))
	must(g.Wire(port.Name{NodeID: "source", PortID: "out", FanIndex: "x"}, in("sinkX2")))
	must(g.Wire(port.Name{NodeID: "source", PortID: "out", FanIndex: "y"}, in("sinkY")))

	return Scenario{
		Name:  "forked-output-splitter",
		Graph: g,
		Report: func() string {
			return renderInts("sinkX1", sinkX1.Recorded()) + "; " +
				renderInts("sinkX2", sinkX2.Recorded()) + "; " +
				renderInts("sinkY", sinkY.Recorded())
		},
	}
}

// BackpressureTiming is scenario 4: a producer emits 1, 2, 3 into a
// capacity-1 channel to a consumer that sleeps 1s per read. Report exposes
// the wall-clock gap between the second and third writes, which tracks the
// consumer's read pace rather than the producer's.
func BackpressureTiming() Scenario {
	g := graph.New()

	var writeTimes []time.Time
	src := &bodies.TimedSource{
		Values:  []int{1, 2, 3},
		OnWrite: func(_ int, at time.Time) { writeTimes = append(writeTimes, at) },
	}
	g.AddNode(&node.Handle{
		ID:       "producer",
		Kind:     node.Running,
		Body:     src,
		OutPorts: map[string]*node.OutPort{"out": {Spec: port.OutSpec{ID: "out"}}},
	})

	slow := &bodies.SlowSink{Delay: time.Second, Count: 3}
	g.AddNode(&node.Handle{
		ID:      "consumer",
		Kind:    node.Running,
		Body:    slow,
		InPorts: map[string]*node.InPort{"in": {Spec: port.InSpec{ID: "in", Capacity: 1}}},
	})

	must(g.Wire(out("producer"), in("consumer")))

	return Scenario{
		Name:  "backpressure-timing",
		Graph: g,
		Report: func() string {
			if len(writeTimes) < 3 {
				return "incomplete"
			}
			gap := writeTimes[2].Sub(writeTimes[1])
			return "gap between write 2 and write 3: " + gap.String()
		},
	}
}

// TemplateBodySelection is scenario 5: a node with three bodies
// (simple_add, over_complex_add, broken_adder), defaulted to simple_add.
// selectBody names the body to activate before the graph is used.
func TemplateBodySelection(selectBody string) Scenario {
	g := graph.New()
	g.AddNode(constNode("one", 1))
	g.AddNode(constNode("three", 3))

	tmpl := bodies.NewAdderTemplate()
	if selectBody != "" && !tmpl.Select(selectBody) {
		panic("demo: unknown template body " + selectBody)
	}
	g.AddNode(&node.Handle{
		ID:       "adder",
		Kind:     node.Template,
		Template: tmpl,
		InPorts: map[string]*node.InPort{
			"a": {Spec: port.InSpec{ID: "a"}},
			"b": {Spec: port.InSpec{ID: "b"}},
		},
		OutPorts: map[string]*node.OutPort{"out": {Spec: port.OutSpec{ID: "out"}}},
	})

	sink := &bodies.Sink{Terminal: true}
	g.AddNode(&node.Handle{
		ID:      "sink",
		Kind:    node.Running,
		Body:    sink,
		InPorts: map[string]*node.InPort{"in": {Spec: port.InSpec{ID: "in"}}},
	})

	must(g.Wire(out("one"), port.Name{NodeID: "adder", PortID: "a"}))
	must(g.Wire(out("three"), port.Name{NodeID: "adder", PortID: "b"}))
	must(g.Wire(out("adder"), in("sink")))

	_, selected := tmpl.Selected()
	return Scenario{
		Name:  "template-body-selection[" + selected + "]",
		Graph: g,
		Report: func() string {
			return renderInts("sink recorded", sink.Recorded())
		},
	}
}

// FaultPropagation is scenario 6: a worker raises a generic error one
// second into the run, while a second worker (the heartbeat) would run
// forever absent the stop signal the fault triggers.
func FaultPropagation() Scenario {
	g := graph.New()

	g.AddNode(&node.Handle{
		ID:   "faulty",
		Kind: node.Running,
		Body: &bodies.FaultyWorker{Delay: time.Second, Err: errors.New("demo: simulated worker fault")},
	})
	g.AddNode(&node.Handle{
		ID:   "heartbeat",
		Kind: node.Running,
		Body: &bodies.Heartbeat{},
	})

	return Scenario{
		Name:   "fault-propagation",
		Graph:  g,
		Report: func() string { return "run() is expected to return the simulated fault" },
	}
}

func renderInts(label string, values []any) string {
	s := label
	if s != "" {
		s += "="
	}
	s += "["
	for i, v := range values {
		if i > 0 {
			s += ", "
		}
		s += intString(v)
	}
	return s + "]"
}

func intString(v any) string {
	n, _ := v.(int)
	return strconv.Itoa(n)
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
