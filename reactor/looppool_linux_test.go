//go:build linux

// File: reactor/looppool_linux_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"testing"
	"time"

	"github.com/momentics/hioload-tcp/api"
)

func TestLoopPoolRoundRobin(t *testing.T) {
	baseLoop := startTestLoop(t)

	picks := make(chan []*EventLoop, 1)
	baseLoop.RunInLoop(func() {
		pool := NewLoopPool(baseLoop, api.NopLogger(), "rr")
		pool.SetLoopNum(4)
		pool.Start(nil)

		var got []*EventLoop
		for i := 0; i < 8; i++ {
			got = append(got, pool.Next())
		}
		for _, loop := range pool.GetAllLoops() {
			loop.Quit()
		}
		picks <- got
	})

	var got []*EventLoop
	select {
	case got = <-picks:
	case <-time.After(5 * time.Second):
		t.Fatal("pool start timed out")
	}

	distinct := map[*EventLoop]bool{}
	for i := 0; i < 4; i++ {
		distinct[got[i]] = true
		if got[i] == baseLoop {
			t.Fatal("worker pool must not hand out the base loop")
		}
		if got[i] != got[i+4] {
			t.Fatalf("connection %d and %d landed on different loops", i, i+4)
		}
	}
	if len(distinct) != 4 {
		t.Fatalf("round-robin used %d distinct loops, want 4", len(distinct))
	}
}

func TestLoopPoolZeroWorkersUsesBaseLoop(t *testing.T) {
	baseLoop := startTestLoop(t)

	type result struct {
		next     *EventLoop
		all      []*EventLoop
		initLoop *EventLoop
	}
	res := make(chan result, 1)
	baseLoop.RunInLoop(func() {
		pool := NewLoopPool(baseLoop, api.NopLogger(), "solo")
		var initLoop *EventLoop
		pool.Start(func(l *EventLoop) { initLoop = l })
		res <- result{next: pool.Next(), all: pool.GetAllLoops(), initLoop: initLoop}
	})

	select {
	case r := <-res:
		if r.next != baseLoop {
			t.Error("Next must return the base loop with zero workers")
		}
		if len(r.all) != 1 || r.all[0] != baseLoop {
			t.Error("GetAllLoops must return only the base loop")
		}
		if r.initLoop != baseLoop {
			t.Error("init callback must run on the base loop")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pool start timed out")
	}
}
