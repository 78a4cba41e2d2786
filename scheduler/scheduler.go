// Package scheduler owns the runtime's worker lifecycle: startup ordering
// (constant evaluation, splitter assignment, worker spawn), the shutdown
// signal, exception routing, and join.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/deltaflow/deltaflow/channel"
	"github.com/deltaflow/deltaflow/config"
	"github.com/deltaflow/deltaflow/dlog"
	"github.com/deltaflow/deltaflow/graph"
	"github.com/deltaflow/deltaflow/message"
	"github.com/deltaflow/deltaflow/msglog"
	"github.com/deltaflow/deltaflow/node"
)

// State is the scheduler's lifecycle stage.
type State int32

const (
	StateNew State = iota
	StateReady
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

var (
	// ErrAlreadyStarted is returned by Start if called more than once.
	ErrAlreadyStarted = errors.New("scheduler: already started")

	// ErrConfiguration wraps a pre-start validation failure (unwired
	// required input, missing template body, constant-only graph, etc).
	ErrConfiguration = errors.New("scheduler: configuration error")

	// ErrConstantFault wraps an error raised while evaluating a Constant
	// node's body during startup.
	ErrConstantFault = errors.New("scheduler: constant node fault")

	// ErrWorkerFault wraps the first bad exception raised by a Running
	// worker, re-raised after every worker has joined.
	ErrWorkerFault = errors.New("scheduler: worker fault")

	// ErrCyclicConstants is returned if the constant-node direct-wire graph
	// contains a cycle, which would make a deterministic evaluation order
	// impossible.
	ErrCyclicConstants = errors.New("scheduler: cyclic constant-node wiring")
)

// direct identifies one constant-to-constant short-circuited wire.
type direct struct {
	producerID, producerPort string
	consumerID, consumerPort string
}

// Scheduler drives one run of a graph: it owns every channel, the stop
// signal, and the worker goroutines.
type Scheduler struct {
	g      *graph.Graph
	cfg    config.Config
	factory *channel.Factory
	clock  *message.Clock
	mlog   *msglog.Log
	logger *dlog.Logger

	directs []direct

	mu    sync.Mutex
	state State

	ctx    context.Context
	cancel context.CancelFunc

	wg sync.WaitGroup

	badMu sync.Mutex
	bad   error
}

// New builds a Scheduler for g: runs splitter insertion, validation, and
// channel construction (the NEW→READY transition), synchronously. logOut
// receives the scheduler's structured log lines; nil defaults to os.Stderr.
func New(g *graph.Graph, cfg config.Config, logOut *os.File) (*Scheduler, error) {
	cfg = config.Normalize(cfg)

	if err := g.Split(); err != nil && !errors.Is(err, graph.ErrAlreadySplit) {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if err := g.Check(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	s := &Scheduler{
		g:      g,
		cfg:    cfg,
		factory: channel.NewFactory(channel.Config{Capacity: cfg.ChannelDefaultCapacity, PollInterval: cfg.ChannelPollInterval}),
		clock:  &message.Clock{},
		mlog:   msglog.New(messageLogLevel(cfg.MessageLogLevel)),
		logger: dlog.New(logOut, cfg.LogLevel),
		state:  StateNew,
	}

	if err := s.buildChannels(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	s.state = StateReady
	return s, nil
}

func messageLogLevel(s string) msglog.Level {
	switch s {
	case "debug":
		return msglog.LevelDebug
	case "warning", "warn":
		return msglog.LevelWarning
	case "error", "err":
		return msglog.LevelError
	default:
		return msglog.LevelInfo
	}
}

// buildChannels asks the channel factory for every wire's channel (or
// records a constant-to-constant direct wire), and attaches the result to
// both endpoints' port handles.
func (s *Scheduler) buildChannels() error {
	for _, w := range s.g.Wires() {
		producer, _ := s.g.Node(w.From.NodeID)
		consumer, _ := s.g.Node(w.To.NodeID)

		consumerIn, ok := consumer.InPorts[w.To.PortID]
		if !ok {
			return fmt.Errorf("node %s has no input port %s", consumer.ID, w.To.PortID)
		}

		ch, directWire := s.factory.Select(producer.EffectiveKind(), consumer.EffectiveKind(), consumerIn.Spec.Capacity, w.From.FanIndex)
		if directWire {
			s.directs = append(s.directs, direct{
				producerID: producer.ID, producerPort: w.From.PortID,
				consumerID: consumer.ID, consumerPort: w.To.PortID,
			})
			continue
		}

		consumerIn.Channel = ch
		if producerOut, ok := producer.OutPorts[w.From.PortID]; ok {
			producerOut.Channel = ch
		}
	}
	return nil
}

// Logger returns the scheduler's structured logger, for use by callers that
// want to log alongside the run (e.g. a demo harness).
func (s *Scheduler) Logger() *dlog.Logger { return s.logger }

// MessageLog returns the scheduler's message log. Entries are only
// meaningful once Wait has returned, since Entries sorts the buffer
// collected over the lifetime of the run.
func (s *Scheduler) MessageLog() *msglog.Log { return s.mlog }

// State reports the scheduler's current lifecycle stage.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) stopping() bool {
	select {
	case <-s.ctx.Done():
		return true
	default:
		return false
	}
}

// recordBad stores err as the scheduler's fault, if none is stored yet.
// Only the first fault is kept: subsequent worker faults are logged but do
// not override the one that will be re-raised after join.
func (s *Scheduler) recordBad(nodeID string, err error) {
	s.badMu.Lock()
	defer s.badMu.Unlock()
	wrapped := fmt.Errorf("%w (node %s): %w", ErrWorkerFault, nodeID, err)
	if s.bad == nil {
		s.bad = wrapped
	} else {
		s.logger.Err("additional worker fault after first", wrapped, map[string]any{"node": nodeID})
	}
}

// triggerStop fires the stop signal exactly once: cancels the run context,
// which unblocks any body polling Stopping() and bounds a blocked Write's
// retry loop. It does not flush channels directly — each node's own
// goroutine flushes its own output channels as the last thing it does
// before exiting (see runWorker/runSplitter), which is what actually
// guarantees an in-flight message is delivered before its consumer sees
// teardown.
func (s *Scheduler) triggerStop() {
	s.mu.Lock()
	if s.state == StateRunning {
		s.state = StateStopping
	}
	s.mu.Unlock()

	s.cancel()
}

// Stop fires the stop signal from outside the run, e.g. on an external
// deadline. It is idempotent and safe to call before, during, or after a
// run; before Start it has no effect.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	started := s.ctx != nil
	s.mu.Unlock()
	if started {
		s.triggerStop()
	}
}
