package bodies

import (
	"sync"
	"time"

	"github.com/deltaflow/deltaflow/node"
)

// Sink is a Running node that reads "in" in a loop, recording every payload
// it observes. If Terminal is set, it raises ErrRuntimeExit after recording
// its first value, stopping the whole run; otherwise it keeps reading until
// teardown unblocks it (Read returning ok=false), at which point it returns
// nil — its own retirement does not itself signal a stop.
type Sink struct {
	node.BodyBase

	mu       sync.Mutex
	recorded []any

	Terminal bool
}

func (s *Sink) WorkerEntry(io node.WorkerIO) error {
	for {
		m, ok := io.Read("in", true)
		if !ok {
			return nil
		}
		s.mu.Lock()
		s.recorded = append(s.recorded, m.Payload)
		s.mu.Unlock()
		if s.Terminal {
			return node.ErrRuntimeExit
		}
	}
}

// Recorded returns a snapshot of everything read so far.
func (s *Sink) Recorded() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]any, len(s.recorded))
	copy(out, s.recorded)
	return out
}

// SlowSink is a Running node that sleeps Delay after each read before
// recording the value, modelling a slow consumer for backpressure
// demonstrations. It reads until teardown (or, if Count > 0, until it has
// recorded Count values, at which point it raises ErrRuntimeExit).
type SlowSink struct {
	node.BodyBase

	mu       sync.Mutex
	recorded []any

	Delay time.Duration
	Count int
}

func (s *SlowSink) WorkerEntry(io node.WorkerIO) error {
	n := 0
	for {
		m, ok := io.Read("in", true)
		if !ok {
			return nil
		}
		if s.Delay > 0 {
			time.Sleep(s.Delay)
		}
		s.mu.Lock()
		s.recorded = append(s.recorded, m.Payload)
		s.mu.Unlock()
		n++
		if s.Count > 0 && n >= s.Count {
			return node.ErrRuntimeExit
		}
	}
}

// Recorded returns a snapshot of everything read so far.
func (s *SlowSink) Recorded() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]any, len(s.recorded))
	copy(out, s.recorded)
	return out
}
