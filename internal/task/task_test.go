package task

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-advmesh/logger"
)

func TestManager_StartAndStop(t *testing.T) {
	mgr := NewManager(context.Background(), logger.GetLogger())

	var iterations atomic.Int32
	require.NoError(t, mgr.Start("spin", func() bool {
		iterations.Add(1)
		time.Sleep(time.Millisecond)
		return true
	}))

	started := make(chan struct{})
	require.NoError(t, mgr.StartLoop("loop", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	}))
	<-started

	assert.Eventually(t, func() bool { return iterations.Load() > 2 }, time.Second, time.Millisecond)
	assert.Equal(t, 2, mgr.TaskCount())

	mgr.Stop()
	mgr.Wait()
	assert.Equal(t, 0, mgr.TaskCount())

	require.ErrorIs(t, mgr.Start("late", func() bool { return false }), ErrStopped)
}

func TestManager_StartInterval(t *testing.T) {
	mgr := NewManager(context.Background(), logger.GetLogger())
	defer func() {
		mgr.Stop()
		mgr.Wait()
	}()

	var ticks atomic.Int32
	require.NoError(t, mgr.StartInterval("tick", func() bool {
		return ticks.Add(1) < 3
	}, 5*time.Millisecond))

	assert.Eventually(t, func() bool { return ticks.Load() == 3 && mgr.TaskCount() == 0 }, time.Second, time.Millisecond)

	require.Error(t, mgr.StartInterval("bad", func() bool { return true }, 0))
}

func TestManager_PanicStopsTask(t *testing.T) {
	mgr := NewManager(context.Background(), logger.GetLogger())

	require.NoError(t, mgr.Start("panic", func() bool {
		panic("boom")
	}))

	mgr.Wait()
	assert.Equal(t, 0, mgr.TaskCount())
}

func TestManager_ParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mgr := NewManager(ctx, logger.GetLogger())

	require.NoError(t, mgr.StartLoop("loop", func(ctx context.Context) { <-ctx.Done() }))
	cancel()
	mgr.Wait()

	assert.Equal(t, 0, mgr.TaskCount())
}
