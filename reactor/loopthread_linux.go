//go:build linux

// File: reactor/loopthread_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// LoopThread owns one worker: a goroutine that builds its own EventLoop,
// publishes it, and runs it until quit. The loop object lives on the
// worker's stack-equivalent; StartLoop blocks until publication so the
// caller never sees a half-built loop.

package reactor

import (
	"sync"

	"github.com/momentics/hioload-tcp/api"
)

// ThreadInitCallback runs once on each worker thread after its loop is
// constructed and before it starts polling.
type ThreadInitCallback func(*EventLoop)

// LoopThread spawns and tracks a single loop-owning worker.
type LoopThread struct {
	log  api.Logger
	name string
	init ThreadInitCallback

	mu   sync.Mutex
	cond *sync.Cond
	loop *EventLoop
}

// NewLoopThread prepares a worker without starting it.
func NewLoopThread(log api.Logger, name string, init ThreadInitCallback) *LoopThread {
	t := &LoopThread{log: log, name: name, init: init}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// StartLoop spawns the worker and blocks until its EventLoop exists.
func (t *LoopThread) StartLoop() *EventLoop {
	go t.run()

	t.mu.Lock()
	for t.loop == nil {
		t.cond.Wait()
	}
	loop := t.loop
	t.mu.Unlock()
	return loop
}

func (t *LoopThread) run() {
	loop := NewEventLoop(t.log)
	if t.init != nil {
		t.init(loop)
	}

	t.mu.Lock()
	t.loop = loop
	t.cond.Signal()
	t.mu.Unlock()

	loop.Loop()

	t.mu.Lock()
	t.loop = nil
	t.mu.Unlock()
}
