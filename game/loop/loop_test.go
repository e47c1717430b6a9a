package loop

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startLoop(t *testing.T) *Loop {
	t.Helper()
	l := New(zap.NewNop())
	go l.Run()
	t.Cleanup(l.Stop)
	return l
}

func TestLoop_DeferExecutes(t *testing.T) {
	l := startLoop(t)

	done := make(chan struct{})
	l.Defer(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("deferred task never ran")
	}
}

func TestLoop_PreservesOrder(t *testing.T) {
	l := startLoop(t)

	var mu sync.Mutex
	var got []int
	var wg sync.WaitGroup
	wg.Add(3)
	for i := 1; i <= 3; i++ {
		i := i
		l.Defer(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			wg.Done()
		})
	}
	wg.Wait()

	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestLoop_RecoverFromPanic(t *testing.T) {
	l := startLoop(t)

	done := make(chan struct{})
	l.Defer(func() { panic("boom") })
	l.Defer(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop died after a panicking task")
	}
}

func TestLoop_StopDrainsPending(t *testing.T) {
	l := New(zap.NewNop())

	var ran int
	for i := 0; i < 5; i++ {
		l.Defer(func() { ran++ })
	}
	l.Stop()
	l.Run() // exits immediately after draining

	assert.Equal(t, 5, ran)
}

func TestLoop_StopIdempotent(t *testing.T) {
	l := startLoop(t)
	require.NotPanics(t, func() {
		l.Stop()
		l.Stop()
	})
}

func TestLoop_DeferAfterStopDoesNotBlock(t *testing.T) {
	l := New(zap.NewNop())
	l.Stop()

	done := make(chan struct{})
	go func() {
		l.Defer(func() {})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Defer blocked after Stop")
	}
}
