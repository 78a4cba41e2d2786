package bodies_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deltaflow/deltaflow/bodies"
	"github.com/deltaflow/deltaflow/message"
	"github.com/deltaflow/deltaflow/node"
)

// fakeConstantIO is a minimal node.ConstantIO for exercising RunOnce
// implementations without a real scheduler.
type fakeConstantIO struct {
	inputs  map[string]message.Message
	written map[string]any
}

func newFakeConstantIO(inputs map[string]message.Message) *fakeConstantIO {
	return &fakeConstantIO{inputs: inputs, written: make(map[string]any)}
}

func (f *fakeConstantIO) Write(portID string, payload any) error {
	if payload == nil {
		return nil
	}
	f.written[portID] = payload
	return nil
}

func (f *fakeConstantIO) Read(portID string) (message.Message, bool) {
	m, ok := f.inputs[portID]
	return m, ok
}

// fakeWorkerIO drives a node.RunningBody from a fixed, pre-populated input
// queue per port, recording every write.
type fakeWorkerIO struct {
	inputs  map[string][]message.Message
	written map[string][]any
	stop    bool
}

func newFakeWorkerIO(inputs map[string][]message.Message) *fakeWorkerIO {
	return &fakeWorkerIO{inputs: inputs, written: make(map[string][]any)}
}

func (f *fakeWorkerIO) Read(portID string, block bool) (message.Message, bool) {
	q := f.inputs[portID]
	if len(q) == 0 {
		return message.Message{}, false
	}
	f.inputs[portID] = q[1:]
	return q[0], true
}

func (f *fakeWorkerIO) TryReadOrAbsent(portID string) message.Message {
	m, ok := f.Read(portID, false)
	if !ok {
		return message.AbsentMessage
	}
	return m
}

func (f *fakeWorkerIO) Write(portID string, payload any) error {
	f.written[portID] = append(f.written[portID], payload)
	return nil
}

func (f *fakeWorkerIO) Stopping() bool { return f.stop }

func TestConstSourceWritesOnce(t *testing.T) {
	io := newFakeConstantIO(nil)
	c := bodies.ConstSource{Value: 7}
	require.NoError(t, c.RunOnce(io))
	require.Equal(t, 7, io.written["out"])
}

func TestAdderComputesSumAndRetires(t *testing.T) {
	io := newFakeWorkerIO(map[string][]message.Message{
		"a": {{Payload: 2}},
		"b": {{Payload: 3}},
	})
	a := bodies.NewAdder(bodies.SimpleAdd)
	err := a.WorkerEntry(io)
	require.ErrorIs(t, err, node.ErrSystemExit)
	require.Equal(t, []any{5}, io.written["out"])
}

func TestAdderVariants(t *testing.T) {
	require.Equal(t, 5, bodies.SimpleAdd(2, 3))
	require.Equal(t, 5, bodies.OverComplexAdd(2, 3))
	require.Equal(t, 6, bodies.BrokenAdder(2, 3))
}

func TestAdderTemplateDefaultsToSimpleAdd(t *testing.T) {
	tmpl := bodies.NewAdderTemplate()
	b, name := tmpl.Selected()
	require.Equal(t, "simple_add", name)
	require.NotNil(t, b)
}

func TestAdderTemplateSelectBrokenAdder(t *testing.T) {
	tmpl := bodies.NewAdderTemplate()
	require.True(t, tmpl.Select("broken_adder"))
	b, name := tmpl.Selected()
	require.Equal(t, "broken_adder", name)
	adder := b.(*bodies.Adder)
	require.Equal(t, 5, adder.Fn(1, 3))
}

func TestSinkRecordsUntilTerminal(t *testing.T) {
	io := newFakeWorkerIO(map[string][]message.Message{
		"in": {{Payload: 1}},
	})
	s := &bodies.Sink{Terminal: true}
	err := s.WorkerEntry(io)
	require.ErrorIs(t, err, node.ErrRuntimeExit)
	require.Equal(t, []any{1}, s.Recorded())
}

func TestSinkReturnsNilOnTeardownWhenNotTerminal(t *testing.T) {
	io := newFakeWorkerIO(map[string][]message.Message{
		"in": {{Payload: 1}, {Payload: 2}},
	})
	s := &bodies.Sink{}
	err := s.WorkerEntry(io)
	require.NoError(t, err)
	require.Equal(t, []any{1, 2}, s.Recorded())
}

func TestSlowSinkStopsAfterCount(t *testing.T) {
	io := newFakeWorkerIO(map[string][]message.Message{
		"in": {{Payload: 1}, {Payload: 2}, {Payload: 3}},
	})
	s := &bodies.SlowSink{Delay: time.Millisecond, Count: 2}
	err := s.WorkerEntry(io)
	require.ErrorIs(t, err, node.ErrRuntimeExit)
	require.Equal(t, []any{1, 2}, s.Recorded())
}

func TestFaultyWorkerReturnsConfiguredError(t *testing.T) {
	wantErr := errors.New("boom")
	f := &bodies.FaultyWorker{Delay: 5 * time.Millisecond, Err: wantErr}
	err := f.WorkerEntry(nil)
	require.ErrorIs(t, err, wantErr)
}

func TestNewAdderPanicsOnNilFunc(t *testing.T) {
	require.Panics(t, func() { bodies.NewAdder(nil) })
}

func TestCompositeSourceWritesCompositeThenExits(t *testing.T) {
	io := newFakeWorkerIO(nil)
	c := &bodies.CompositeSource{Value: map[string]any{"x": 1, "y": 2}}
	err := c.WorkerEntry(io)
	require.ErrorIs(t, err, node.ErrRuntimeExit)
	require.Equal(t, []any{map[string]any{"x": 1, "y": 2}}, io.written["out"])
}

func TestTimedSourceCallsOnWritePerValue(t *testing.T) {
	io := newFakeWorkerIO(nil)
	var seen []int
	s := &bodies.TimedSource{
		Values:  []int{1, 2, 3},
		OnWrite: func(v int, _ time.Time) { seen = append(seen, v) },
	}
	err := s.WorkerEntry(io)
	require.ErrorIs(t, err, node.ErrRuntimeExit)
	require.Equal(t, []int{1, 2, 3}, seen)
}

func TestHeartbeatExitsOnceStopping(t *testing.T) {
	io := &stoppingWorkerIO{fakeWorkerIO: *newFakeWorkerIO(nil)}
	h := &bodies.Heartbeat{Poll: time.Millisecond}
	done := make(chan error, 1)
	go func() { done <- h.WorkerEntry(io) }()

	time.Sleep(5 * time.Millisecond)
	io.setStopping(true)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("heartbeat did not exit after stop signal")
	}
}

type stoppingWorkerIO struct {
	fakeWorkerIO
	mu      sync.Mutex
	stopped bool
}

func (s *stoppingWorkerIO) setStopping(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = v
}

func (s *stoppingWorkerIO) Stopping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

var (
	_ node.Body = (*bodies.Sink)(nil)
	_ node.Body = (*bodies.SlowSink)(nil)
	_ node.Body = (*bodies.Adder)(nil)
	_ node.Body = bodies.ConstSource{}
	_ node.Body = (*bodies.TimedSource)(nil)
	_ node.Body = (*bodies.CompositeSource)(nil)
	_ node.Body = (*bodies.FaultyWorker)(nil)
	_ node.Body = (*bodies.Heartbeat)(nil)
)
