package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOpensAfterFailureThreshold(t *testing.T) {
	b := New("hive", 3, 2, time.Hour)
	for i := 0; i < 3; i++ {
		assert.True(t, b.Allow())
		b.Failure()
	}
	assert.Equal(t, Open, b.State())
	assert.False(t, b.Allow())
}

func TestHalfOpenAfterTimeoutThenClosesOnSuccesses(t *testing.T) {
	b := New("hive", 1, 2, 10*time.Millisecond)
	b.Allow()
	b.Failure()
	assert.Equal(t, Open, b.State())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, b.Allow())
	assert.Equal(t, HalfOpen, b.State())

	b.Success()
	assert.Equal(t, HalfOpen, b.State())
	b.Success()
	assert.Equal(t, Closed, b.State())
}

func TestHalfOpenFailureReopensImmediately(t *testing.T) {
	b := New("hive", 1, 2, 10*time.Millisecond)
	b.Allow()
	b.Failure()
	time.Sleep(20 * time.Millisecond)
	b.Allow()
	assert.Equal(t, HalfOpen, b.State())

	b.Failure()
	assert.Equal(t, Open, b.State())
}

func TestOnOpenCallbackFires(t *testing.T) {
	b := New("hive", 1, 1, time.Hour)
	fired := ""
	b.OnOpen(func(name string) { fired = name })
	b.Allow()
	b.Failure()
	assert.Equal(t, "hive", fired)
}
