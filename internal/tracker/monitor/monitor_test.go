package monitor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orbitmr/shuttle/internal/shared/logging"
)

type countingCallbacks struct {
	calls   int32
	lastMap atomic.Bool
	sleep   time.Duration
	again   bool
}

func (c *countingCallbacks) RunPass(ctx context.Context, isMap bool) (time.Duration, bool) {
	atomic.AddInt32(&c.calls, 1)
	c.lastMap.Store(isMap)
	return c.sleep, c.again
}

func TestMonitor_RunsRepeatedlyUntilStopped(t *testing.T) {
	cb := &countingCallbacks{sleep: 5 * time.Millisecond, again: true}
	m := New(cb, logging.NewNoop())

	m.Start(true)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&cb.calls) >= 3 }, time.Second, time.Millisecond)

	m.Stop()
	require.False(t, m.Running())
}

func TestMonitor_StopsWhenCallbackSaysDone(t *testing.T) {
	cb := &countingCallbacks{sleep: time.Millisecond, again: false}
	m := New(cb, logging.NewNoop())

	m.Start(true)
	require.Eventually(t, func() bool { return !m.Running() }, time.Second, time.Millisecond)
	require.Equal(t, int32(1), atomic.LoadInt32(&cb.calls))
}

func TestMonitor_SwitchingPhaseReschedulesImmediately(t *testing.T) {
	cb := &countingCallbacks{sleep: time.Hour, again: true}
	m := New(cb, logging.NewNoop())

	m.Start(true)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&cb.calls) >= 1 }, time.Second, time.Millisecond)

	m.Start(false)
	require.Eventually(t, func() bool { return cb.lastMap.Load() == false }, time.Second, time.Millisecond)
	m.Stop()
}
