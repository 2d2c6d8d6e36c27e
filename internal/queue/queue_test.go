package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushThenPopFIFO(t *testing.T) {
	q := New[string](4)
	require.NoError(t, q.Push("a"))
	require.NoError(t, q.Push("b"))

	v, ok, err := q.Pop()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", v)

	v, ok, err = q.Pop()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", v)
}

func TestCapacityRoundsUpToPowerOf2(t *testing.T) {
	q := New[int](3)
	assert.Equal(t, 4, q.Cap())
}

func TestPushBlocksWhileFull(t *testing.T) {
	q := New[int](1)
	require.NoError(t, q.Push(1))

	done := make(chan struct{})
	go func() {
		_ = q.Push(2)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("push should have blocked while full")
	case <-time.After(50 * time.Millisecond):
	}

	_, _, err := q.Pop()
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("push never unblocked after pop freed space")
	}
}

func TestShutdownUnblocksPendingPush(t *testing.T) {
	q := New[int](1)
	require.NoError(t, q.Push(1))

	errCh := make(chan error, 1)
	go func() { errCh <- q.Push(2) }()

	time.Sleep(20 * time.Millisecond)
	q.Shutdown()

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("push never unblocked after shutdown")
	}
}

func TestPopDrainsRemainingThenReturnsClosedError(t *testing.T) {
	q := New[int](4)
	require.NoError(t, q.Push(1))
	require.NoError(t, q.Push(2))
	q.Shutdown()

	v, ok, err := q.Pop()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok, err = q.Pop()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok, err = q.Pop()
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestSequenceNumbersAreMonotonic(t *testing.T) {
	q := New[int](4)
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Push(i))
	}
	var last uint64
	for i := 0; i < 3; i++ {
		env := <-q.ch
		assert.Greater(t, env.Seq, last)
		last = env.Seq
	}
}
