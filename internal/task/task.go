// Package task manages the goroutines that run on the host side of a mesh
// node: the dispatcher loop, the periodic tick and the medium readers.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-advmesh/logger"
)

// ErrStopped is returned when a task is started on a stopped Manager.
var ErrStopped = errors.New("task: manager stopped")

// Func performs one iteration of a task. It returns true to keep running,
// or false to stop the goroutine.
type Func func() bool

// Manager starts goroutines bound to a common context and waits for them to
// terminate.
//
// Example Usage:
//
//	mgr := task.NewManager(ctx, logger)
//	_ = mgr.StartLoop("dispatcher", func(ctx context.Context) { ... })
//	_ = mgr.StartInterval("tick", tickFunc, 50*time.Millisecond)
//
//	mgr.Stop()
//	mgr.Wait()
type Manager struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
	count  atomic.Int32
	mu     sync.Mutex // serializes task creation with Stop
}

// NewManager creates a Manager whose tasks stop when ctx is cancelled.
func NewManager(ctx context.Context, l logger.Logger) *Manager {
	mgr := &Manager{logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

// Context returns the context shared by every task of the manager.
func (mgr *Manager) Context() context.Context {
	return mgr.ctx
}

// StartLoop runs fn once in a new goroutine. fn must return when ctx is done.
func (mgr *Manager) StartLoop(name string, fn func(ctx context.Context)) error {
	return mgr.start(name, func() {
		fn(mgr.ctx)
	})
}

// Start runs taskFunc repeatedly until it returns false or the manager stops.
func (mgr *Manager) Start(name string, taskFunc Func) error {
	return mgr.start(name, func() {
		for mgr.ctx.Err() == nil {
			if !mgr.callWithRecover(name, taskFunc) {
				return
			}
		}
	})
}

// StartInterval runs taskFunc every interval until it returns false or the
// manager stops.
func (mgr *Manager) StartInterval(name string, taskFunc Func, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("task: invalid interval %v for %s", interval, name)
	}

	return mgr.start(name, func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-mgr.ctx.Done():
				return
			case <-ticker.C:
				if !mgr.callWithRecover(name, taskFunc) {
					return
				}
			}
		}
	})
}

// Stop signals every task to terminate.
func (mgr *Manager) Stop() {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	mgr.cancel()
}

// Wait blocks until every task has terminated.
func (mgr *Manager) Wait() {
	mgr.wg.Wait()
}

// TaskCount returns the number of running tasks.
func (mgr *Manager) TaskCount() int {
	return int(mgr.count.Load())
}

func (mgr *Manager) start(name string, body func()) error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	if mgr.ctx.Err() != nil {
		return fmt.Errorf("%w: cannot start %s", ErrStopped, name)
	}

	mgr.logger.Debug("start task", "name", name)
	mgr.wg.Add(1)
	mgr.count.Add(1)

	go func() {
		defer func() {
			mgr.count.Add(-1)
			mgr.wg.Done()
			mgr.logger.Debug("task terminated", "name", name, "task_count", mgr.TaskCount())
		}()
		defer func() {
			if r := recover(); r != nil {
				mgr.logger.Error("panic in task", "name", name, "panic", r)
			}
		}()

		body()
	}()

	return nil
}

// callWithRecover calls fn with panic protection; a panicking task stops.
func (mgr *Manager) callWithRecover(name string, fn Func) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task", "name", name, "panic", r)
			ok = false
		}
	}()

	return fn()
}
