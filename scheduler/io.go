package scheduler

import (
	"errors"

	"github.com/deltaflow/deltaflow/channel"
	"github.com/deltaflow/deltaflow/message"
	"github.com/deltaflow/deltaflow/msglog"
	"github.com/deltaflow/deltaflow/node"
)

// constantIO is the node.ConstantIO a Constant body's RunOnce call receives.
// results collects everything it writes, for the caller (runConstants) to
// push into real channels or direct-wire values once RunOnce returns
// successfully; inputs holds any direct-wired upstream values, resolved
// before RunOnce is invoked.
type constantIO struct {
	node    *node.Handle
	inputs  map[string]message.Message
	results map[string]message.Message
}

func newConstantIO(h *node.Handle, inputs map[string]message.Message) *constantIO {
	return &constantIO{node: h, inputs: inputs, results: make(map[string]message.Message)}
}

func (c *constantIO) Write(portID string, payload any) error {
	if payload == nil {
		return nil
	}
	c.results[portID] = message.Message{Payload: payload}
	return nil
}

func (c *constantIO) Read(portID string) (message.Message, bool) {
	m, ok := c.inputs[portID]
	return m, ok
}

// workerIO is the node.WorkerIO a Running body's WorkerEntry call uses for
// the lifetime of its worker goroutine.
type workerIO struct {
	s    *Scheduler
	node *node.Handle
}

func (w *workerIO) Read(portID string, block bool) (message.Message, bool) {
	in, ok := w.node.InPorts[portID]
	if !ok || in.Channel == nil {
		panic("scheduler: read of unbound input port " + w.node.ID + "." + portID)
	}
	if !block {
		m := in.Channel.TryReadOrAbsent()
		return m, !m.Absent()
	}
	return in.Channel.Read(w.s.ctx)
}

func (w *workerIO) TryReadOrAbsent(portID string) message.Message {
	in, ok := w.node.InPorts[portID]
	if !ok || in.Channel == nil {
		panic("scheduler: read of unbound input port " + w.node.ID + "." + portID)
	}
	return in.Channel.TryReadOrAbsent()
}

func (w *workerIO) Write(portID string, payload any) error {
	out, ok := w.node.OutPorts[portID]
	if !ok {
		panic("scheduler: write to unbound output port " + w.node.ID + "." + portID)
	}
	if out.Channel == nil {
		return nil // unused output port: the graph never wired a consumer
	}
	m := message.Message{Payload: payload, Clk: w.s.clock.Next()}
	res, err := out.Channel.Write(w.s.ctx, m, true)
	if err != nil {
		// A write cut short by teardown (the channel flushed, or the run
		// context cancelled by the stop signal) is not a worker fault.
		if errors.Is(err, channel.ErrClosed) || w.s.stopping() {
			return nil
		}
		return err
	}
	if res == channel.Written {
		w.s.mlog.Add(msglog.LevelInfo, msglog.Entry{Sender: w.node.ID, Port: portID, Msg: m})
	}
	return nil
}

func (w *workerIO) Stopping() bool {
	return w.s.stopping()
}
