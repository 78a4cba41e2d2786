package scheduler

import (
	"errors"

	"github.com/deltaflow/deltaflow/channel"
	"github.com/deltaflow/deltaflow/msglog"
	"github.com/deltaflow/deltaflow/node"
)

// runWorker is the goroutine body for one Running node: it calls the body's
// WorkerEntry once and interprets the result against the exception-routing
// table.
func (s *Scheduler) runWorker(h *node.Handle) {
	defer s.wg.Done()

	nlog := s.logger.ForNode(h.ID)

	rb, ok := h.RunningBodyOf()
	if !ok {
		s.recordBad(h.ID, errNotRunningBody(h.ID))
		s.triggerStop()
		s.flushOutputs(h)
		return
	}

	io := &workerIO{s: s, node: h}
	nlog.Debug("worker starting", nil)
	err := rb.WorkerEntry(io)

	switch {
	case errors.Is(err, node.ErrRuntimeExit):
		s.triggerStop()

	case errors.Is(err, node.ErrSystemExit):
		nlog.Notice("worker retired via system exit", nil)

	case err != nil:
		s.recordBad(h.ID, err)
		s.triggerStop()

	default:
		// Normal return: this worker alone retires, the rest of the run is
		// unaffected.
	}

	// Flushing here, as the last act of every exit path, guarantees any
	// message this worker already wrote to an output channel is delivered
	// (FIFO, same channel) before that channel's sole consumer ever sees the
	// Flusher sentinel.
	s.flushOutputs(h)
}

// flushOutputs flushes every output channel a node owns. A channel has
// exactly one producer, so calling this as the last thing that producer's
// goroutine does — regardless of why it exited — is enough to guarantee a
// consumer never observes teardown before a message sent to it.
func (s *Scheduler) flushOutputs(h *node.Handle) {
	for _, out := range h.OutPorts {
		if out.Channel != nil {
			out.Channel.Flush()
		}
	}
}

// runSplitter is the built-in loop for a Splitter node: read one message,
// write an independent copy of it to every output channel, until the
// source closes or the run stops.
func (s *Scheduler) runSplitter(h *node.Handle) {
	defer s.wg.Done()

	in, ok := h.InPorts["in"]
	if !ok || in.Channel == nil {
		s.flushOutputs(h)
		return
	}

	for {
		m, ok := in.Channel.Read(s.ctx)
		if !ok {
			s.flushOutputs(h)
			return
		}
		for portID, out := range h.OutPorts {
			if out.Channel == nil {
				continue
			}
			cp := channel.Clone(m)
			res, err := out.Channel.Write(s.ctx, cp, true)
			if err != nil || res != channel.Written {
				continue
			}
			s.mlog.Add(msglog.LevelInfo, msglog.Entry{Sender: h.ID, Port: portID, Msg: cp})
		}
	}
}

func errNotRunningBody(nodeID string) error {
	return errors.New("scheduler: node " + nodeID + " classified Running but its body does not implement RunningBody")
}
