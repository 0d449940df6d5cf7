//go:build linux

// File: reactor/poller_linux_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Channel registration round-trips through the poller's state machine:
// first add, disable-all (OS delete, table entry kept), re-enable
// (re-add), and final removal.

package reactor

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func testPipe(t *testing.T) (int, int) {
	t.Helper()
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		t.Fatalf("pipe2: %v", err)
	}
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestChannelReadDispatch(t *testing.T) {
	loop := startTestLoop(t)
	r, w := testPipe(t)

	got := make(chan []byte, 1)
	var ch *Channel
	loop.RunInLoop(func() {
		ch = NewChannel(loop, r)
		ch.SetReadCallback(func(time.Time) {
			buf := make([]byte, 64)
			n, _ := unix.Read(r, buf)
			if n > 0 {
				got <- buf[:n]
			}
		})
		ch.EnableReading()
	})

	if _, err := unix.Write(w, []byte("ping")); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case data := <-got:
		if string(data) != "ping" {
			t.Fatalf("read %q, want %q", data, "ping")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("read callback never fired")
	}

	loop.RunInLoop(func() {
		ch.DisableAll()
		ch.Remove()
	})
}

func TestChannelDisableReenableRoundTrip(t *testing.T) {
	loop := startTestLoop(t)
	r, w := testPipe(t)

	fired := make(chan struct{}, 8)
	var ch *Channel
	loop.RunInLoop(func() {
		ch = NewChannel(loop, r)
		ch.SetReadCallback(func(time.Time) {
			var buf [64]byte
			unix.Read(r, buf[:])
			fired <- struct{}{}
		})
		ch.EnableReading()
	})

	unix.Write(w, []byte("a"))
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("first event never fired")
	}

	// Empty interest transitions the channel to the poller's deleted
	// state while keeping its table entry.
	registered := make(chan bool, 1)
	loop.RunInLoop(func() {
		ch.DisableAll()
		registered <- loop.HasChannel(ch)
	})
	if !<-registered {
		t.Fatal("disabled channel must stay in the poller table")
	}

	unix.Write(w, []byte("b"))
	time.Sleep(100 * time.Millisecond)
	select {
	case <-fired:
		t.Fatal("disabled channel received an event")
	default:
	}

	// Re-enabling must re-add from the deleted state.
	loop.RunInLoop(func() { ch.EnableReading() })
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("re-enabled channel never fired")
	}

	removed := make(chan bool, 1)
	loop.RunInLoop(func() {
		ch.DisableAll()
		ch.Remove()
		removed <- loop.HasChannel(ch)
	})
	if <-removed {
		t.Fatal("removed channel must leave the poller table")
	}
}
