// Package node models the runtime view of a graph node: its
// classification, its body (the user-authored computation), and its bound
// port set. The scheduler package owns node lifecycle; this package only
// describes the shape a node presents to it.
package node

import (
	"errors"

	"github.com/deltaflow/deltaflow/channel"
	"github.com/deltaflow/deltaflow/message"
	"github.com/deltaflow/deltaflow/port"
)

// Kind tags a node's classification. All dispatch on node behavior
// switches on Kind, never on reflection over the body's concrete Go type.
type Kind int

const (
	// Running nodes have a long-lived worker goroutine.
	Running Kind = iota
	// Constant nodes have no channel inputs (only direct wires from other
	// Constant nodes); their body runs exactly once at start.
	Constant
	// Splitter nodes are synthetic fan-out nodes inserted by graph.Split.
	Splitter
	// Template nodes take their body from a TemplateBody registry: its
	// default, or the one picked with TemplateBody.Select before
	// Scheduler.Start. They then behave as Running or Constant depending on
	// which Body interface the selected body satisfies.
	Template
)

func (k Kind) String() string {
	switch k {
	case Running:
		return "running"
	case Constant:
		return "constant"
	case Splitter:
		return "splitter"
	case Template:
		return "template"
	default:
		return "unknown"
	}
}

var (
	// ErrRuntimeExit is the sentinel a Body.RunOnce/Body.WorkerEntry
	// implementation returns to signal a normal, intentional end of the
	// whole run. Constant-node bodies must never return it: doing so is a
	// configuration error.
	ErrRuntimeExit = errors.New("node: runtime exit")

	// ErrSystemExit retires only the returning worker, without signalling
	// the rest of the runtime to stop. It has no meaning for Constant or
	// Splitter bodies.
	ErrSystemExit = errors.New("node: system exit")

	// ErrNeedsBody is returned by graph validation when a Template node has
	// no selected body at start time.
	ErrNeedsBody = errors.New("node: template node has no selected body")
)

type (
	// Body is the marker interface every node body implements. Concrete
	// capability is expressed via ConstantBody / RunningBody, checked with a
	// type assertion against the Kind-appropriate contract — see EffectiveKind.
	//
	// isBody is unexported, so a type outside this package can only satisfy
	// Body by embedding BodyBase.
	Body interface {
		isBody()
	}

	// ConstantBody is evaluated exactly once, at scheduler start. It reads no
	// channel; a value direct-wired from another Constant node is available
	// through ConstantIO.Read.
	ConstantBody interface {
		Body
		// RunOnce evaluates the body and writes its results via io. Returning
		// ErrRuntimeExit is a configuration error.
		RunOnce(io ConstantIO) error
	}

	// RunningBody is the long-lived loop for a Running node.
	RunningBody interface {
		Body
		// WorkerEntry reads inputs, does work, writes outputs, in a loop
		// until it returns nil (this worker alone retires), ErrSystemExit
		// (this worker alone retires silently), ErrRuntimeExit (the whole
		// runtime stops), or any other error (a worker fault).
		WorkerEntry(io WorkerIO) error
	}

	// ConstantIO is the handle a ConstantBody uses to publish its (single)
	// set of results. Most Constant nodes have no inputs at all; Read exists
	// only for the rare case of a Constant node directly wired from another
	// Constant node's output, where the scheduler resolves the producer
	// first and hands its value through Read rather than a channel.
	ConstantIO interface {
		// Write sends payload on the named output port. A nil payload (⊥)
		// is silently dropped.
		Write(portID string, payload any) error
		// Read returns the direct-wired value for portID, already resolved
		// by the scheduler in dependency order. ok is false if portID has
		// no direct-wired producer.
		Read(portID string) (m message.Message, ok bool)
	}

	// WorkerIO is the handle a RunningBody uses to interact with the
	// runtime: port reads/writes and cooperative-cancellation observation.
	// An interactive body's receive/send calls translate 1:1 to Read/Write.
	WorkerIO interface {
		// Read blocks (if block is true) until a message is available on
		// portID, or until teardown unblocks it with a Flusher sentinel, in
		// which case ok is false. With block false, behaves like
		// TryReadOrAbsent restricted to one named port.
		Read(portID string, block bool) (m message.Message, ok bool)
		// TryReadOrAbsent performs a non-blocking read of an optional input,
		// returning message.AbsentMessage if nothing is available.
		TryReadOrAbsent(portID string) message.Message
		// Write sends payload on the named output port, blocking if the
		// channel is full, subject to the same poll/teardown semantics as
		// channel.Channel.Write.
		Write(portID string, payload any) error
		// Stopping reports whether the scheduler's stop signal has fired.
		// A well-behaved WorkerEntry loop checks this between iterations of
		// any inner loop that does not itself perform channel I/O.
		Stopping() bool
	}

	// BodyBase is embedded by every concrete Body implementation, including
	// ones defined in other packages (the scheduler, graph's synthetic
	// splitter body, or user-authored bodies). It carries no state; embedding
	// it is what lets a body defined outside this package satisfy Body,
	// since isBody itself stays unexported.
	BodyBase struct{}

	// TemplateBody is the registry a Template node carries: a set of named
	// candidate bodies (e.g. "simple_add", "broken_adder"), with one
	// selected as the default, re-selectable any time before Scheduler.Start.
	TemplateBody struct {
		bodies   map[string]Body
		selected string
	}

	// InPort is a node's bound input endpoint: its declared spec, plus the
	// channel the scheduler attached to it.
	InPort struct {
		Spec    port.InSpec
		Channel channel.Channel
	}

	// OutPort is a node's bound output endpoint. Channel is nil if the
	// port's data is unused by the graph.
	OutPort struct {
		Spec    port.OutSpec
		Channel channel.Channel
	}

	// Handle is the runtime view of one graph node.
	Handle struct {
		ID       string
		Kind     Kind
		Body     Body // unused for Splitter (built-in loop); nil for a Template using a registry
		Template *TemplateBody

		InPorts  map[string]*InPort
		OutPorts map[string]*OutPort
	}
)

func (BodyBase) isBody() {}

// NewTemplateBody builds a TemplateBody registry with the given default
// selection. Panics if bodies is empty or def is not a key of bodies: a
// misconfigured registry is a programming error, not a runtime condition to
// recover from.
func NewTemplateBody(bodies map[string]Body, def string) *TemplateBody {
	if len(bodies) == 0 {
		panic("node: template body registry must not be empty")
	}
	if _, ok := bodies[def]; !ok {
		panic("node: default template body " + def + " not present in registry")
	}
	cp := make(map[string]Body, len(bodies))
	for k, v := range bodies {
		cp[k] = v
	}
	return &TemplateBody{bodies: cp, selected: def}
}

// Select changes which registered body is active. Returns false if name is
// not registered, leaving the current selection untouched.
func (t *TemplateBody) Select(name string) bool {
	if _, ok := t.bodies[name]; !ok {
		return false
	}
	t.selected = name
	return true
}

// Selected returns the currently-active body, and its name.
func (t *TemplateBody) Selected() (Body, string) {
	return t.bodies[t.selected], t.selected
}

// NeedsBody reports whether h is a Template node with no usable body
// selected.
func (h *Handle) NeedsBody() bool {
	if h.Kind != Template {
		return false
	}
	if h.Template != nil {
		b, _ := h.Template.Selected()
		return b == nil
	}
	return h.Body == nil
}

// EffectiveKind resolves a Template node to Constant or Running, based on
// which Body interface its selected body implements. For non-Template
// nodes it is simply Kind. Splitter nodes have no user body and are
// returned unchanged.
func (h *Handle) EffectiveKind() Kind {
	if h.Kind != Template {
		return h.Kind
	}
	b := h.body()
	switch b.(type) {
	case ConstantBody:
		return Constant
	case RunningBody:
		return Running
	default:
		return Template // unresolved; NeedsBody will be true
	}
}

// body returns the active Body: the selected template body, if this is a
// Template node, else Handle.Body directly.
func (h *Handle) body() Body {
	if h.Template != nil {
		b, _ := h.Template.Selected()
		return b
	}
	return h.Body
}

// ConstantBodyOf returns the node's active body as a ConstantBody, and
// whether that assertion succeeded.
func (h *Handle) ConstantBodyOf() (ConstantBody, bool) {
	cb, ok := h.body().(ConstantBody)
	return cb, ok
}

// RunningBodyOf returns the node's active body as a RunningBody, and
// whether that assertion succeeded.
func (h *Handle) RunningBodyOf() (RunningBody, bool) {
	rb, ok := h.body().(RunningBody)
	return rb, ok
}
