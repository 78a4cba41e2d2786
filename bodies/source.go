package bodies

import (
	"time"

	"github.com/deltaflow/deltaflow/node"
)

// ConstSource is a Constant node that writes a single fixed value to "out"
// exactly once, at scheduler start.
type ConstSource struct {
	node.BodyBase
	Value any
}

func (c ConstSource) RunOnce(io node.ConstantIO) error {
	return io.Write("out", c.Value)
}

// TimedSource is a Running node that writes each of Values to "out" in
// order, then raises ErrRuntimeExit. OnWrite, if set, is called synchronously
// right after each successful write completes, letting a test observe the
// wall-clock spacing between writes without reaching into channel internals.
type TimedSource struct {
	node.BodyBase
	Values  []int
	OnWrite func(v int, at time.Time)
}

func (s *TimedSource) WorkerEntry(io node.WorkerIO) error {
	for _, v := range s.Values {
		if err := io.Write("out", v); err != nil {
			return err
		}
		if s.OnWrite != nil {
			s.OnWrite(v, time.Now())
		}
	}
	return node.ErrRuntimeExit
}

// CompositeSource is a Running node that writes a single composite
// map[string]any value to "out", then raises ErrRuntimeExit. Consumers wired
// with a fan index on this node's output port each receive one field of the
// map, projected by the channel that carries it.
type CompositeSource struct {
	node.BodyBase
	Value map[string]any
}

func (c *CompositeSource) WorkerEntry(io node.WorkerIO) error {
	if err := io.Write("out", c.Value); err != nil {
		return err
	}
	return node.ErrRuntimeExit
}
