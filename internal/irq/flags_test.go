package irq

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
)

func TestFlags_SetBeforeWaitIsNotLost(t *testing.T) {
	f := NewFlags()
	f.Set(SampleReady)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := f.Wait(ctx, SampleReady)
	require.NoError(t, err)
	assert.Equal(t, SampleReady, got)
}

func TestFlags_WaitClearsOnlyObservedBits(t *testing.T) {
	f := NewFlags()
	f.Set(SampleReady | StartTrigger)

	got, err := f.Wait(context.Background(), SampleReady)
	require.NoError(t, err)
	assert.Equal(t, SampleReady, got)

	assert.Equal(t, Flag(0), f.Take(SampleReady))
	assert.Equal(t, StartTrigger, f.Take(StartTrigger))
}

func TestFlags_ObservedAtMostOnce(t *testing.T) {
	f := NewFlags()
	f.Set(TransferDone)
	f.Set(TransferDone)

	assert.Equal(t, TransferDone, f.Take(TransferDone))
	assert.Equal(t, Flag(0), f.Take(TransferDone))
}

func TestFlags_WaitTimesOut(t *testing.T) {
	f := NewFlags()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.Wait(ctx, TransferDone)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFlags_WaitIgnoresOtherBits(t *testing.T) {
	f := NewFlags()
	f.Set(StartTrigger)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.Wait(ctx, SampleReady)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StartTrigger, f.Take(StartTrigger))
}

func TestFlags_SetFromAnotherGoroutine(t *testing.T) {
	f := NewFlags()
	go func() {
		time.Sleep(10 * time.Millisecond)
		f.Set(TransferDone)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := f.Wait(ctx, TransferDone)
	require.NoError(t, err)
	assert.Equal(t, TransferDone, got)
}

func TestFlags_Clear(t *testing.T) {
	f := NewFlags()
	f.Set(StartTrigger | SampleReady)
	f.Clear(StartTrigger)

	assert.Equal(t, Flag(0), f.Take(StartTrigger))
	assert.Equal(t, SampleReady, f.Take(SampleReady))
}

func TestFlag_String(t *testing.T) {
	assert.Equal(t, "none", Flag(0).String())
	assert.Equal(t, "sample-ready|start-trigger", (SampleReady | StartTrigger).String())
}

// fakeLine is a gpio line whose edges are fed by the test.
type fakeLine struct {
	mu    sync.Mutex
	level gpio.Level
	pull  gpio.Pull
	edge  gpio.Edge
	edges chan struct{}
}

func newFakeLine(level gpio.Level) *fakeLine {
	return &fakeLine{level: level, edges: make(chan struct{}, 8)}
}

func (l *fakeLine) In(pull gpio.Pull, edge gpio.Edge) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pull = pull
	l.edge = edge
	return nil
}

func (l *fakeLine) Read() gpio.Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

func (l *fakeLine) WaitForEdge(timeout time.Duration) bool {
	select {
	case <-l.edges:
		return true
	case <-time.After(timeout):
		return false
	}
}

func TestWatch_ArmsRisingEdgeAndCallsFn(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	line := newFakeLine(gpio.Low)
	var calls atomic.Int32
	require.NoError(t, Watch(ctx, "test", line, gpio.PullDown, func() { calls.Add(1) }))

	line.mu.Lock()
	assert.Equal(t, gpio.RisingEdge, line.edge)
	assert.Equal(t, gpio.PullDown, line.pull)
	line.mu.Unlock()

	line.edges <- struct{}{}
	line.edges <- struct{}{}
	assert.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}
