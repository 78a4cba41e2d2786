// Package msglog collects per-delivery records during a run and emits them
// ordered by logical clock at teardown: the only place a run's logical
// clock is observed outside the channel fabric itself.
package msglog

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"

	"github.com/joeycumines/go-longpoll"
	"github.com/joeycumines/go-utilpkg/jsonenc"

	"github.com/deltaflow/deltaflow/message"
)

// Entry is one recorded delivery: a send of m from sender's named port.
type Entry struct {
	Sender string
	Port   string
	Msg    message.Message
}

// Log is a per-run buffer of delivery records. Senders post to it
// concurrently via Add; a single background goroutine drains the postings
// in batches and appends them to the buffer, so Add never blocks on a
// shared mutex held for the whole buffer. Close must be called once, after
// every sender has stopped posting, to collect final batches and stop the
// background goroutine before Entries is read.
type Log struct {
	minLevel int
	postCh   chan Entry
	ctx      context.Context
	cancel   context.CancelFunc

	mu      sync.Mutex
	entries []Entry

	done chan struct{}
}

// Level gates which Add calls are recorded. Lower values are more severe,
// mirroring the scheduler's own log levels.
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
	LevelDebug
)

// New starts a Log accepting postings at minLevel or more severe.
func New(minLevel Level) *Log {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Log{
		minLevel: int(minLevel),
		postCh:   make(chan Entry),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go l.drain()
	return l
}

// Add records a delivery, if level passes the configured minimum. Safe to
// call from any number of goroutines concurrently; never blocks the caller
// beyond handing the entry to the draining coordinator. A no-op after Close.
func (l *Log) Add(level Level, e Entry) {
	if int(level) > l.minLevel {
		return
	}
	select {
	case l.postCh <- e:
	case <-l.ctx.Done():
	}
}

func (l *Log) drain() {
	defer close(l.done)
	cfg := &longpoll.ChannelConfig{MaxSize: 64, MinSize: 1, PartialTimeout: 0}
	for {
		err := longpoll.Channel(l.ctx, cfg, l.postCh, func(e Entry) error {
			l.mu.Lock()
			l.entries = append(l.entries, e)
			l.mu.Unlock()
			return nil
		})
		if err != nil {
			return
		}
	}
}

// Close stops accepting postings and waits for the background drain to
// finish. Entries must not be called before Close returns.
func (l *Log) Close() {
	l.cancel()
	<-l.done
}

// Entries returns every recorded delivery, stably sorted by logical clock.
// Must be called after Close.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Msg.Clk < out[j].Msg.Clk
	})
	return out
}

// WriteJSONLines writes each entry as one JSON object per line, in
// clock order, to w. Errors from w abort the write.
func WriteJSONLines(w io.Writer, entries []Entry) error {
	buf := make([]byte, 0, 256)
	for _, e := range entries {
		buf = buf[:0]
		buf = append(buf, '{')
		buf = append(buf, `"sender":`...)
		buf = jsonenc.AppendString(buf, e.Sender)
		buf = append(buf, `,"port":`...)
		buf = jsonenc.AppendString(buf, e.Port)
		buf = append(buf, `,"clk":`...)
		buf = strconv.AppendInt(buf, e.Msg.Clk, 10)
		buf = append(buf, `,"payload":`...)
		buf = appendPayload(buf, e.Msg.Payload)
		buf = append(buf, '}', '\n')
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

func appendPayload(dst []byte, v any) []byte {
	switch val := v.(type) {
	case nil:
		return append(dst, "null"...)
	case string:
		return jsonenc.AppendString(dst, val)
	case float64:
		return jsonenc.AppendFloat64(dst, val)
	case float32:
		return jsonenc.AppendFloat32(dst, val)
	case int:
		return strconv.AppendInt(dst, int64(val), 10)
	case int64:
		return strconv.AppendInt(dst, val, 10)
	case bool:
		return strconv.AppendBool(dst, val)
	default:
		// Fall back to a quoted Go-syntax representation; the message log is
		// a diagnostic artifact, not a wire format, so an approximate
		// rendering of exotic payload types is acceptable.
		return jsonenc.AppendString(dst, fmt.Sprintf("%v", val))
	}
}
