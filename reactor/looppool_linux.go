//go:build linux

// File: reactor/looppool_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// LoopPool spreads accepted connections over worker loops round-robin.
// With zero workers the base loop carries all I/O, which keeps the
// single-threaded configuration identical in shape to the pooled one.

package reactor

import (
	"fmt"
	"runtime"

	"github.com/momentics/hioload-tcp/affinity"
	"github.com/momentics/hioload-tcp/api"
)

// LoopPool is configured and consumed from the base loop only.
type LoopPool struct {
	log      api.Logger
	baseLoop *EventLoop
	name     string

	numLoops  int
	pinCPUs   bool
	pinOffset int
	control   api.Control
	started   bool
	next      int

	threads []*LoopThread
	loops   []*EventLoop
}

// NewLoopPool builds an empty pool bound to the base loop.
func NewLoopPool(baseLoop *EventLoop, log api.Logger, name string) *LoopPool {
	if log == nil {
		log = api.NopLogger()
	}
	return &LoopPool{log: log, baseLoop: baseLoop, name: name}
}

// SetLoopNum sets the worker count. Must precede Start.
func (p *LoopPool) SetLoopNum(n int) { p.numLoops = n }

// SetCPUPinning pins worker k to CPU (offset+k) mod NumCPU at thread
// init. Must precede Start.
func (p *LoopPool) SetCPUPinning(enable bool, offset int) {
	p.pinCPUs = enable
	p.pinOffset = offset
}

// SetControl wires each worker loop's counters into a metrics registry.
// Must precede Start.
func (p *LoopPool) SetControl(c api.Control) { p.control = c }

// Start spawns the workers and collects their loops. With zero workers
// the init callback runs directly on the base loop.
func (p *LoopPool) Start(init ThreadInitCallback) {
	p.baseLoop.AssertInLoop()
	p.started = true

	for i := 0; i < p.numLoops; i++ {
		name := fmt.Sprintf("%s-loop-%d", p.name, i)
		cpu := (p.pinOffset + i) % runtime.NumCPU()
		workerInit := p.wrapInit(init, name, cpu)
		t := NewLoopThread(p.log, name, workerInit)
		p.threads = append(p.threads, t)
		p.loops = append(p.loops, t.StartLoop())
	}
	if p.numLoops == 0 && init != nil {
		init(p.baseLoop)
	}
}

func (p *LoopPool) wrapInit(init ThreadInitCallback, name string, cpu int) ThreadInitCallback {
	return func(loop *EventLoop) {
		if p.control != nil {
			loop.SetControl(p.control)
		}
		if p.pinCPUs {
			if err := affinity.Pin(cpu); err != nil {
				p.log.Warnf("looppool: pin %s to cpu %d: %v", name, cpu, err)
			}
		}
		if init != nil {
			init(loop)
		}
	}
}

// Next picks the loop for the next accepted connection: the base loop
// when the pool is empty, otherwise plain round-robin.
func (p *LoopPool) Next() *EventLoop {
	p.baseLoop.AssertInLoop()
	if len(p.loops) == 0 {
		return p.baseLoop
	}
	loop := p.loops[p.next]
	p.next = (p.next + 1) % len(p.loops)
	return loop
}

// GetAllLoops returns the worker loops, or the base loop when none.
func (p *LoopPool) GetAllLoops() []*EventLoop {
	p.baseLoop.AssertInLoop()
	if len(p.loops) == 0 {
		return []*EventLoop{p.baseLoop}
	}
	return p.loops
}

// Started reports whether Start has run.
func (p *LoopPool) Started() bool { return p.started }
