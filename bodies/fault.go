package bodies

import (
	"time"

	"github.com/deltaflow/deltaflow/node"
)

// FaultyWorker is a Running node that waits Delay, then returns Err
// unconditionally — a worker fault raised partway through a run, for
// exercising the scheduler's fault-propagation path. Err must not be
// node.ErrRuntimeExit or node.ErrSystemExit: either would be routed as a
// normal termination rather than a fault.
type FaultyWorker struct {
	node.BodyBase
	Delay time.Duration
	Err   error
}

func (f *FaultyWorker) WorkerEntry(io node.WorkerIO) error {
	time.Sleep(f.Delay)
	return f.Err
}
