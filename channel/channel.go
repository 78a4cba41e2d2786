// Package channel implements the bounded, typed wires that carry messages
// between node ports: a fixed-capacity FIFO for ordinary producer/consumer
// pairs, and a write-once cell for constant producers.
package channel

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"reflect"
	"sync"
	"time"

	"github.com/deltaflow/deltaflow/message"
)

func init() {
	// deepCopy round-trips a Message.Payload through gob while it is boxed
	// in an any; gob requires every concrete type that crosses that
	// boundary to be registered, not just the builtins it knows natively.
	// Composite (map-shaped) payloads are the common case bodies use, so
	// they're registered here rather than left to whichever body package
	// happens to get imported first.
	gob.Register(map[string]any{})
}

// WriteResult reports the outcome of a Write call.
type WriteResult int

const (
	// Written means the message was enqueued.
	Written WriteResult = iota
	// Dropped means the write was a silent no-op: the payload was absent (⊥).
	Dropped
	// WouldBlock means the channel was full and block was false.
	WouldBlock
)

// flushRetryLimit bounds the background retries Flush spawns when the
// sentinel can't be enqueued immediately because the buffer is still full.
const flushRetryLimit = 100

var (
	// ErrClosed is returned by Write once Flush has been called on the
	// channel. Read never returns it: a flushed Read reports ok == false.
	ErrClosed = errors.New("channel: closed")

	// ErrAlreadyPopulated is returned by a constant channel's second Write.
	ErrAlreadyPopulated = errors.New("channel: constant channel already populated")
)

// Channel is the interface every channel implementation satisfies. All
// methods are safe for concurrent use by multiple writers and a single
// reader, matching one wire's fan-in-side/fan-out-side cardinality.
type Channel interface {
	// Write enqueues m. If m is absent (m.Payload == nil) this is always a
	// no-op returning Dropped, regardless of block. If the channel is full
	// and block is true, Write retries on a poll interval until capacity
	// frees up, the channel is flushed (surfacing ErrClosed), or ctx is done
	// (surfacing ctx.Err()) — whichever happens first. If block is false and
	// the channel is full, Write returns WouldBlock immediately.
	Write(ctx context.Context, m message.Message, block bool) (WriteResult, error)

	// Read blocks until a message is available, or until Flush wakes a
	// blocked reader, in which case ok is false. Read never returns absent
	// messages: those are never enqueued in the first place.
	Read(ctx context.Context) (m message.Message, ok bool)

	// TryReadOrAbsent performs a non-blocking read, returning
	// message.AbsentMessage if nothing is queued.
	TryReadOrAbsent() message.Message

	// Flush enqueues (or otherwise delivers) a Flusher sentinel, waking any
	// goroutine blocked in Read. Idempotent.
	Flush()

	// Len reports the number of real (non-sentinel) messages currently queued.
	Len() int
}

// Config controls capacity and polling behavior shared by every channel a
// Factory creates.
type Config struct {
	// Capacity is the default buffer size used when a port declares no
	// preference (InSpec.Capacity == 0).
	Capacity int
	// PollInterval bounds how often a blocking Write retries against a full
	// channel while waiting for the stop signal or free capacity.
	PollInterval time.Duration
}

// DefaultConfig returns the values a zero Config is normalized to: a Factory
// built from an unset Config behaves as if these had been supplied explicitly.
func DefaultConfig() Config {
	return Config{Capacity: 16, PollInterval: 50 * time.Millisecond}
}

func resolveCapacity(cfg Config, hint int) int {
	global := cfg.Capacity
	if global <= 0 {
		global = DefaultConfig().Capacity
	}
	switch {
	case hint > 0 && global > 0:
		return min(hint, global)
	case hint > 0:
		return hint
	default:
		return global
	}
}

func resolvePollInterval(cfg Config) time.Duration {
	if cfg.PollInterval > 0 {
		return cfg.PollInterval
	}
	return DefaultConfig().PollInterval
}

// standard is a bounded FIFO wire between a Running (or Splitter) producer
// and a single consumer.
type standard struct {
	ch           chan message.Message
	pollInterval time.Duration
	fanIndex     string
	flushed      chan struct{}
	flushOnce    sync.Once
}

// NewStandard builds a bounded FIFO channel of the given capacity. fanIndex,
// if non-empty, names the field of a composite payload this channel
// projects to before every write.
func NewStandard(cfg Config, capacityHint int, fanIndex string) Channel {
	cap := resolveCapacity(cfg, capacityHint)
	return &standard{
		ch:           make(chan message.Message, cap),
		pollInterval: resolvePollInterval(cfg),
		fanIndex:     fanIndex,
		flushed:      make(chan struct{}),
	}
}

func (s *standard) Write(ctx context.Context, m message.Message, block bool) (WriteResult, error) {
	if s.fanIndex != "" {
		m.Payload = project(m.Payload, s.fanIndex)
	}
	if m.Payload == nil {
		return Dropped, nil
	}
	for {
		// A send that fits in the buffer always wins over a concurrent
		// Flush: checked alone first, so capacity alone decides the
		// outcome instead of racing against the flushed signal.
		select {
		case s.ch <- m:
			return Written, nil
		default:
		}

		select {
		case <-s.flushed:
			return Written, ErrClosed
		default:
		}

		if !block {
			return WouldBlock, nil
		}

		timer := time.NewTimer(s.pollInterval)
		select {
		case s.ch <- m:
			timer.Stop()
			return Written, nil
		case <-s.flushed:
			timer.Stop()
			return Written, ErrClosed
		case <-ctx.Done():
			timer.Stop()
			return WouldBlock, ctx.Err()
		case <-timer.C:
			// retry
		}
	}
}

func (s *standard) Read(ctx context.Context) (message.Message, bool) {
	// Plain unguarded receive: Flush delivers its sentinel through s.ch
	// itself (see Flush below), so a reader never needs to race s.ch
	// against a separate wakeup signal. Racing ctx.Done (or s.flushed)
	// against s.ch here would let select wake on teardown before a
	// real, already-buffered send is observed, silently dropping it.
	m := <-s.ch
	if _, isFlush := m.Payload.(message.Flusher); isFlush {
		return message.Message{}, false
	}
	return m, true
}

func (s *standard) TryReadOrAbsent() message.Message {
	select {
	case m := <-s.ch:
		if _, isFlush := m.Payload.(message.Flusher); isFlush {
			return message.AbsentMessage
		}
		return m
	default:
		return message.AbsentMessage
	}
}

// Flush delivers the Flusher sentinel through s.ch itself, the same path a
// real message travels: only the channel being empty at the moment of
// delivery lets Flush win a reader's select, never a direct signal racing a
// real send. Invariant: a wire has exactly one producer, and that producer
// calls Flush strictly after its own last Write, so there is no concurrent
// writer to race against here. If the buffer is momentarily full (the
// consumer hasn't drained yet), a background goroutine retries until the
// sentinel lands.
func (s *standard) Flush() {
	s.flushOnce.Do(func() {
		close(s.flushed)
		select {
		case s.ch <- message.Flush():
			return
		default:
		}
		go func() {
			ticker := time.NewTicker(s.pollInterval)
			defer ticker.Stop()
			for i := 0; i < flushRetryLimit; i++ {
				select {
				case s.ch <- message.Flush():
					return
				default:
				}
				<-ticker.C
			}
		}()
	})
}

func (s *standard) Len() int {
	return len(s.ch)
}

// constant is a write-once cell for a Constant producer's single output: a
// Constant node evaluates exactly once, so its channel only ever holds one
// value, handed out by reference-free copy on every Read.
type constant struct {
	mu        sync.Mutex
	populated chan struct{}
	isSet     bool
	fanIndex  string
	value     message.Message
}

// NewConstant builds a write-once channel. Every Read after the first
// Write returns an independent deep copy of the stored value, so two
// consumers observing the same constant output cannot corrupt each other's
// view of it through a shared reference. fanIndex, if non-empty, names the
// field of a composite payload this channel projects to before storing.
func NewConstant(fanIndex string) Channel {
	return &constant{populated: make(chan struct{}), fanIndex: fanIndex}
}

func (c *constant) Write(_ context.Context, m message.Message, _ bool) (WriteResult, error) {
	if c.fanIndex != "" {
		m.Payload = project(m.Payload, c.fanIndex)
	}
	if m.Payload == nil {
		return Dropped, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isSet {
		return Dropped, ErrAlreadyPopulated
	}
	c.value = m
	c.isSet = true
	close(c.populated)
	return Written, nil
}

func (c *constant) Read(ctx context.Context) (message.Message, bool) {
	select {
	case <-c.populated:
		return deepCopy(c.value), true
	case <-ctx.Done():
		return message.Message{}, false
	}
}

func (c *constant) TryReadOrAbsent() message.Message {
	select {
	case <-c.populated:
		return deepCopy(c.value)
	default:
		return message.AbsentMessage
	}
}

// Flush is a no-op for constant channels: there is never a blocked reader
// to wake, since a populated constant channel never blocks Read.
func (c *constant) Flush() {}

func (c *constant) Len() int {
	select {
	case <-c.populated:
		return 1
	default:
		return 0
	}
}

// project selects one named field of a composite payload: a struct field
// (matched by name) or a map[string]any entry (matched by key). Any other
// shape, or a missing field, yields the absent value.
func project(payload any, fanIndex string) any {
	if payload == nil {
		return nil
	}
	if m, ok := payload.(map[string]any); ok {
		return m[fanIndex]
	}
	v := reflect.ValueOf(payload)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	f := v.FieldByName(fanIndex)
	if !f.IsValid() {
		return nil
	}
	return f.Interface()
}

// Clone returns a copy of m whose Payload is isolated from m's, via the
// same gob round-trip deepCopy uses. A Splitter forwards one inbound
// message to every outbound channel "by value, not by reference": Clone is
// how the splitter loop keeps one consumer's mutation of its copy from
// reaching another consumer's copy of the same send.
func Clone(m message.Message) message.Message {
	return deepCopy(m)
}

// deepCopy isolates one Read's result from the channel's stored value and
// from every other Read's result, via a gob encode/decode round-trip. No
// generic deep-copy facility is available, and payloads are plain data
// values (not channels, funcs, or other non-gob-able types), so this is the
// idiomatic stand-in.
func deepCopy(m message.Message) message.Message {
	if m.Payload == nil {
		return m
	}
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(&m.Payload); err != nil {
		// Payload is not gob-encodable (e.g. a func or chan field); fall back
		// to handing out the original value, since there is nothing left to
		// isolate the caller from.
		return m
	}
	var out any
	dec := gob.NewDecoder(&buf)
	if err := dec.Decode(&out); err != nil {
		return m
	}
	return message.Message{Payload: out, Clk: m.Clk}
}
