package rcu

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestReadSeesFullBuffer(t *testing.T) {
	b := New([]int{1, 2, 3}, nil)

	h, view := b.ReadLock()
	defer b.ReadUnlock(h)

	if len(view) != 3 {
		t.Fatalf("expected 3 elements, got %d", len(view))
	}
	if view[0] != 1 || view[2] != 3 {
		t.Fatalf("unexpected contents: %v", view)
	}
}

func TestSwapPublishesStandby(t *testing.T) {
	b := New([]int{1, 2, 3}, nil)

	b.SetStandby([]int{9, 9, 9, 9})
	pre := b.Swap()
	b.Synchronize(pre)

	h, view := b.ReadLock()
	defer b.ReadUnlock(h)

	if len(view) != 4 {
		t.Fatalf("expected swapped-in buffer of length 4, got %d", len(view))
	}
	for _, v := range view {
		if v != 9 {
			t.Fatalf("expected all 9s, got %v", view)
		}
	}
}

func TestSynchronizeWaitsForActiveReader(t *testing.T) {
	b := New([]int{1}, nil)

	h, _ := b.ReadLock()

	var swapped atomic.Bool
	done := make(chan struct{})
	go func() {
		b.SetStandby([]int{2})
		pre := b.Swap()
		b.Synchronize(pre)
		swapped.Store(true)
		close(done)
	}()

	// Give the writer a moment to reach Synchronize while our read section
	// is still open; it must not report completion yet.
	time.Sleep(20 * time.Millisecond)
	if swapped.Load() {
		t.Fatal("synchronize returned while a pre-swap reader was still active")
	}

	b.ReadUnlock(h)
	<-done

	if !swapped.Load() {
		t.Fatal("synchronize never completed after reader left")
	}
}

func TestConcurrentReadersDuringSwap(t *testing.T) {
	b := New(make([]int, 1000), nil)

	stop := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				h, view := b.ReadLock()
				_ = len(view)
				b.ReadUnlock(h)
			}
		}()
	}

	for i := 0; i < 20; i++ {
		b.CopyActiveToStandby()
		pre := b.Swap()
		b.Synchronize(pre)
	}

	close(stop)
	wg.Wait()
}
