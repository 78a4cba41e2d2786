// Package bodies collects reusable node.Body implementations used by the
// demo graphs under cmd/deltaflow and exercised directly by the bodies and
// scheduler test suites: constant sources, recording sinks, a slow sink for
// backpressure demonstrations, adder variants for template-body selection,
// and a worker that raises a fault partway through a run.
package bodies

import (
	"fmt"

	"github.com/deltaflow/deltaflow/node"
)

// AdderFunc computes one node's output from its two named inputs.
type AdderFunc func(a, b int) int

// Adder is a Running node that reads "a" and "b" once, writes their sum to
// "out" via Fn, and retires on its own (ErrSystemExit) without stopping the
// rest of the run — the producers feeding it are expected to be Constant or
// otherwise self-terminating.
type Adder struct {
	node.BodyBase
	Fn AdderFunc
}

// NewAdder wraps fn as an Adder body. A nil fn panics.
func NewAdder(fn AdderFunc) *Adder {
	if fn == nil {
		panic("bodies: NewAdder requires a non-nil AdderFunc")
	}
	return &Adder{Fn: fn}
}

func (a *Adder) WorkerEntry(io node.WorkerIO) error {
	x, ok := io.Read("a", true)
	if !ok {
		return nil
	}
	y, ok := io.Read("b", true)
	if !ok {
		return nil
	}
	sum := a.Fn(asInt(x.Payload), asInt(y.Payload))
	if err := io.Write("out", sum); err != nil {
		return err
	}
	return node.ErrSystemExit
}

// SimpleAdd computes a + b, exactly as its name promises.
func SimpleAdd(a, b int) int { return a + b }

// OverComplexAdd computes a + b the slow way, by counting up twice. It is
// functionally identical to SimpleAdd — its only purpose is to demonstrate
// template-body selection among equivalent implementations.
func OverComplexAdd(a, b int) int {
	sum := 0
	for i := 0; i < a; i++ {
		sum++
	}
	for i := 0; i < b; i++ {
		sum++
	}
	return sum
}

// BrokenAdder computes a + b + 1: a deliberately wrong implementation, for
// demonstrating that selecting the wrong template body changes the result.
func BrokenAdder(a, b int) int { return a + b + 1 }

// NewAdderTemplate builds the three-body template node used in the
// template-body-selection demo: "simple_add" (default), "over_complex_add",
// and "broken_adder", all sharing the Adder shape.
func NewAdderTemplate() *node.TemplateBody {
	return node.NewTemplateBody(map[string]node.Body{
		"simple_add":       NewAdder(SimpleAdd),
		"over_complex_add": NewAdder(OverComplexAdd),
		"broken_adder":     NewAdder(BrokenAdder),
	}, "simple_add")
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		panic(fmt.Sprintf("bodies: expected a numeric payload, got %T", v))
	}
}
