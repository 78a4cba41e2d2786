// Package message defines the envelope carried between node ports.
package message

import "sync/atomic"

// Message is the immutable envelope that travels across a Channel.
//
// A nil Payload is the "absent" value (⊥): writing one to a Channel is
// always a no-op, and it is never observed by a consumer. Clk is a
// logical-clock stamp assigned once, at send time, and is used only by
// the message log (msglog) to order the post-mortem trace — never by
// scheduling decisions.
type Message struct {
	Payload any
	Clk     int64
}

// Absent reports whether m carries the ⊥ (no-message) payload.
func (m Message) Absent() bool {
	return m.Payload == nil
}

// Flusher is the sentinel payload enqueued by Channel.Flush to release a
// goroutine blocked in Read during teardown. Its Clk is always -1, a
// synthetic stamp that sorts before any real message in the log.
type Flusher struct{}

// Clock is a monotonically-increasing, concurrency-safe source of logical
// clock stamps. One Clock is shared across all channels created by a single
// scheduler instance.
type Clock struct {
	n int64
}

// Next returns the next logical clock value, starting at 1 (0 is reserved
// for "no message was ever sent", matching TryReadOrAbsent's zero-value
// result).
func (c *Clock) Next() int64 {
	return atomic.AddInt64(&c.n, 1)
}

// Flush builds the sentinel Flusher message used to unblock a blocked
// reader during teardown.
func Flush() Message {
	return Message{Payload: Flusher{}, Clk: -1}
}

// AbsentMessage is the canonical "nothing has ever been sent" message, returned by
// Channel.TryReadOrAbsent when a channel is empty.
var AbsentMessage = Message{Payload: nil, Clk: 0}
