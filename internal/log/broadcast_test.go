package log

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcasterSplitsWritesIntoLines(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe()
	defer cancel()

	_, err := b.Write([]byte("first line\nsecond"))
	require.NoError(t, err)
	_, err = b.Write([]byte(" line\r\nthird\n"))
	require.NoError(t, err)

	assert.Equal(t, "first line", <-ch)
	assert.Equal(t, "second line", <-ch)
	assert.Equal(t, "third", <-ch)
	assert.Empty(t, ch)
}

func TestBroadcasterDropsOldestWhenSubscriberLags(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe()
	defer cancel()

	for i := 0; i < subscriberBuffer+10; i++ {
		_, err := fmt.Fprintf(b, "line %d\n", i)
		require.NoError(t, err)
	}

	// The first ten lines were dropped to make room for the newest ones.
	assert.Equal(t, "line 10", <-ch)
	assert.Len(t, ch, subscriberBuffer-1)
}

func TestBroadcasterCancelClosesChannel(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe()
	cancel()
	cancel() // second cancel is a no-op

	_, open := <-ch
	assert.False(t, open)

	// Writes after the last subscriber left still succeed.
	_, err := b.Write([]byte("orphan line\n"))
	assert.NoError(t, err)
}

func TestBroadcasterMultipleSubscribers(t *testing.T) {
	b := NewBroadcaster()
	ch1, cancel1 := b.Subscribe()
	ch2, cancel2 := b.Subscribe()
	defer cancel1()
	defer cancel2()

	_, err := b.Write([]byte("shared\n"))
	require.NoError(t, err)

	assert.Equal(t, "shared", <-ch1)
	assert.Equal(t, "shared", <-ch2)
}
