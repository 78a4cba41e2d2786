package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/deltaflow/deltaflow/message"
	"github.com/deltaflow/deltaflow/msglog"
	"github.com/deltaflow/deltaflow/node"
)

// Start performs the READY→RUNNING transition: evaluates every Constant
// node's body, assigns the built-in loop to every Splitter node, and spawns
// one worker goroutine per Running node. It returns without blocking once
// every worker has been spawned; call Wait to join them.
//
// An error here means startup aborted before any worker was spawned: either
// a configuration error or a Constant-node fault.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = StateRunning
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	if err := s.runConstants(); err != nil {
		s.state = StateStopped
		return err
	}

	running := 0
	for _, h := range s.g.Nodes() {
		switch h.EffectiveKind() {
		case node.Splitter:
			s.wg.Add(1)
			go s.runSplitter(h)
		case node.Running:
			s.wg.Add(1)
			running++
			go s.runWorker(h)
		}
	}

	if running == 0 {
		// Check already rejects constant-only graphs, but a graph whose
		// only non-constant nodes are splitters still can't make progress
		// on its own without at least one Running worker driving input.
		s.state = StateStopped
		return fmt.Errorf("%w: graph has no Running worker to spawn", ErrConfiguration)
	}

	return nil
}

// runConstants evaluates every Constant (or constant-resolved Template)
// node's body exactly once, in dependency order with respect to
// constant-to-constant direct wires, and pushes each result into its
// outgoing channels (or into the next constant's direct-wire input).
func (s *Scheduler) runConstants() error {
	order, err := s.topoSortConstants()
	if err != nil {
		return err
	}

	directValues := make(map[string]message.Message) // "consumerID\x00consumerPort" -> value

	for _, h := range order {
		cb, ok := h.ConstantBodyOf()
		if !ok {
			continue
		}

		inputs := make(map[string]message.Message)
		for _, d := range s.directs {
			if d.consumerID != h.ID {
				continue
			}
			if v, ok := directValues[d.producerID+"\x00"+d.producerPort]; ok {
				inputs[d.consumerPort] = v
			}
		}

		nlog := s.logger.ForNode(h.ID)
		io := newConstantIO(h, inputs)
		nlog.Debug("constant node evaluating", nil)
		if err := cb.RunOnce(io); err != nil {
			if errors.Is(err, node.ErrRuntimeExit) {
				return fmt.Errorf("%w: constant node %s raised runtime-exit", ErrConfiguration, h.ID)
			}
			return fmt.Errorf("%w (node %s): %w", ErrConstantFault, h.ID, err)
		}

		for portID, m := range io.results {
			m.Clk = s.clock.Next()
			if out, ok := h.OutPorts[portID]; ok && out.Channel != nil {
				if _, err := out.Channel.Write(context.Background(), m, true); err != nil {
					return fmt.Errorf("%w (node %s): %w", ErrConstantFault, h.ID, err)
				}
				s.mlog.Add(msglog.LevelInfo, msglog.Entry{Sender: h.ID, Port: portID, Msg: m})
			}
			directValues[h.ID+"\x00"+portID] = m
		}
	}

	return nil
}

// topoSortConstants orders every Constant-classified node so that, for
// every direct (constant-to-constant) wire, the producer is evaluated
// before the consumer.
func (s *Scheduler) topoSortConstants() ([]*node.Handle, error) {
	depsOf := make(map[string][]string) // consumerID -> producerIDs
	for _, d := range s.directs {
		depsOf[d.consumerID] = append(depsOf[d.consumerID], d.producerID)
	}

	var order []*node.Handle
	state := make(map[string]int) // 0=unvisited, 1=visiting, 2=done

	var visit func(h *node.Handle) error
	visit = func(h *node.Handle) error {
		switch state[h.ID] {
		case 2:
			return nil
		case 1:
			return fmt.Errorf("%w: %s", ErrCyclicConstants, h.ID)
		}
		state[h.ID] = 1
		for _, depID := range depsOf[h.ID] {
			dep, ok := s.g.Node(depID)
			if !ok {
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[h.ID] = 2
		order = append(order, h)
		return nil
	}

	for _, h := range s.g.Nodes() {
		if h.EffectiveKind() != node.Constant {
			continue
		}
		if err := visit(h); err != nil {
			return nil, err
		}
	}

	return order, nil
}
