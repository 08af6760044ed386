package commandqueue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandQueue_FIFO(t *testing.T) {
	q := New("test")
	defer q.Close()

	for _, text := range []string{"one", "two", "three"} {
		_, err := q.Enqueue(text)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, q.Len())

	var got []string
	for {
		cmd, ok := q.Poll()
		if !ok {
			break
		}
		assert.NotEmpty(t, cmd.ID)
		got = append(got, cmd.Text)
	}
	assert.Equal(t, []string{"one", "two", "three"}, got)
}

func TestCommandQueue_PollEmpty(t *testing.T) {
	q := New("")
	assert.Equal(t, "main", q.Name())

	_, ok := q.Poll()
	assert.False(t, ok)
}

func TestCommandQueue_Closed(t *testing.T) {
	q := New("closed")
	_, err := q.Enqueue("before")
	require.NoError(t, err)
	require.NoError(t, q.Close())

	_, err = q.Enqueue("after")
	assert.ErrorIs(t, err, ErrQueueClosed)

	cmd, ok := q.Poll()
	require.True(t, ok)
	assert.Equal(t, "before", cmd.Text)
}

func TestCommandQueue_ConcurrentProducers(t *testing.T) {
	q := New("concurrent")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_, _ = q.Enqueue("cmd")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, q.Len())
}

func TestCommandQueue_Events(t *testing.T) {
	q := New("events")

	var types []string
	var mu sync.Mutex
	record := func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		types = append(types, e.Type)
	}
	q.On("enqueued", record)
	q.On("dequeued", record)
	q.On("drained", record)

	_, _ = q.Enqueue("a")
	_, _ = q.Enqueue("b")
	_, _ = q.Poll()
	assert.Equal(t, 1, q.Drain())

	q.Off("enqueued")
	_, _ = q.Enqueue("c")

	assert.Equal(t, []string{"enqueued", "enqueued", "dequeued", "drained"}, types)
}
