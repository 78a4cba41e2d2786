package bodies

import (
	"time"

	"github.com/deltaflow/deltaflow/node"
)

// Heartbeat is a Running node with no ports: it loops until the scheduler's
// stop signal fires, then retires normally. It is useful as a "keeps the
// run alive" worker alongside one that raises a fault or an exit on its
// own, demonstrating that every other worker really does retire once the
// stop signal fires.
type Heartbeat struct {
	node.BodyBase
	Poll time.Duration
}

func (h *Heartbeat) WorkerEntry(io node.WorkerIO) error {
	poll := h.Poll
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}
	for !io.Stopping() {
		time.Sleep(poll)
	}
	return nil
}
