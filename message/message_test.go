package message_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deltaflow/deltaflow/message"
)

func TestAbsent(t *testing.T) {
	require.True(t, message.Message{}.Absent())
	require.True(t, message.AbsentMessage.Absent())
	require.False(t, message.Message{Payload: 0}.Absent())
	require.False(t, message.Message{Payload: ""}.Absent())
}

func TestFlushIsNeverAbsent(t *testing.T) {
	f := message.Flush()
	require.False(t, f.Absent())
	require.Equal(t, int64(-1), f.Clk)
	require.IsType(t, message.Flusher{}, f.Payload)
}

func TestClockStartsAtOneAndIncrements(t *testing.T) {
	c := &message.Clock{}
	require.Equal(t, int64(1), c.Next())
	require.Equal(t, int64(2), c.Next())
	require.Equal(t, int64(3), c.Next())
}

func TestClockConcurrentNextNeverRepeats(t *testing.T) {
	c := &message.Clock{}
	const n = 200
	seen := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- c.Next()
		}()
	}
	wg.Wait()
	close(seen)

	vals := make(map[int64]bool, n)
	for v := range seen {
		require.False(t, vals[v], "clock value %d issued twice", v)
		vals[v] = true
	}
	require.Len(t, vals, n)
}
