//go:build linux

// File: reactor/eventloop_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// EventLoop drives one poller on one locked OS thread. Foreign threads
// hand it work through QueueInLoop; an eventfd forces the poll out of
// its wait so queued work never sits behind the 10 s timeout.

package reactor

import (
	"encoding/binary"
	"runtime"
	"sync"
	"time"

	"github.com/eapache/queue"
	uatomic "go.uber.org/atomic"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-tcp/api"
)

// Task is a unit of work marshalled onto a loop's thread.
type Task func()

// pollTimeoutMs bounds each poller wait.
const pollTimeoutMs = 10 * 1000

// EventLoop implements the reactor loop. Construct it on the goroutine
// that will run Loop: the constructor locks that goroutine to its OS
// thread and captures the thread id that all affinity assertions check
// against.
type EventLoop struct {
	log api.Logger
	tid int

	running  *uatomic.Bool
	quitFlag *uatomic.Bool
	draining *uatomic.Bool // runPendingTasks in progress

	poller *Poller
	active []*Channel

	wakeupFd int
	wakeupCh *Channel

	mu      sync.Mutex
	pending *queue.Queue // of Task

	metrics api.Control

	pollReturn time.Time
}

// NewEventLoop creates a loop bound to the calling goroutine's OS
// thread. Poller or eventfd creation failure is fatal.
func NewEventLoop(log api.Logger) *EventLoop {
	if log == nil {
		log = api.NopLogger()
	}
	runtime.LockOSThread()

	poller, err := NewPoller(log)
	if err != nil {
		log.Fatalf("eventloop: epoll_create1: %v", err)
	}
	wakeupFd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		log.Fatalf("eventloop: eventfd: %v", err)
	}

	el := &EventLoop{
		log:      log,
		tid:      unix.Gettid(),
		running:  uatomic.NewBool(false),
		quitFlag: uatomic.NewBool(false),
		draining: uatomic.NewBool(false),
		poller:   poller,
		wakeupFd: wakeupFd,
		pending:  queue.New(),
	}
	el.wakeupCh = NewChannel(el, wakeupFd)
	el.wakeupCh.SetReadCallback(func(time.Time) { el.drainWakeup() })
	el.wakeupCh.EnableReading()
	return el
}

// SetControl wires the loop's wakeup and dispatch counters into a
// metrics registry. Call before Loop starts; the reference is read
// unsynchronized afterwards.
func (el *EventLoop) SetControl(c api.Control) {
	el.metrics = c
}

// Loop runs the reactor until Quit. It must be called on the
// construction thread and returns only after the quit flag is observed;
// loop-owned descriptors are released on exit.
func (el *EventLoop) Loop() {
	el.AssertInLoop()
	el.running.Store(true)
	el.log.Debugf("eventloop: tid=%d start", el.tid)

	for !el.quitFlag.Load() {
		el.active = el.active[:0]
		el.pollReturn = el.poller.Poll(pollTimeoutMs, &el.active)
		if el.metrics != nil && len(el.active) > 0 {
			el.metrics.Add("loop.dispatches", int64(len(el.active)))
		}
		for _, ch := range el.active {
			ch.HandleEvent(el.pollReturn)
		}
		el.runPendingTasks()
	}

	el.log.Debugf("eventloop: tid=%d stop", el.tid)
	el.wakeupCh.DisableAll()
	el.wakeupCh.Remove()
	unix.Close(el.wakeupFd)
	el.poller.Close()
	el.running.Store(false)
}

// Quit asks Loop to exit after the current iteration. Safe from any
// thread; a cross-thread quit wakes the poll so the flag is seen now
// rather than at the next timeout.
func (el *EventLoop) Quit() {
	el.quitFlag.Store(true)
	if !el.IsInLoopThread() {
		el.Wakeup()
	}
}

// RunInLoop executes task on the loop thread: synchronously when called
// there, queued otherwise.
func (el *EventLoop) RunInLoop(task Task) {
	if el.IsInLoopThread() {
		task()
		return
	}
	el.QueueInLoop(task)
}

// QueueInLoop appends task to the pending list. The wakeup fires when
// the caller is foreign, and also when the loop is mid-drain: a task
// enqueued by another task would otherwise wait behind the next poll.
func (el *EventLoop) QueueInLoop(task Task) {
	el.mu.Lock()
	el.pending.Add(task)
	el.mu.Unlock()

	if !el.IsInLoopThread() || el.draining.Load() {
		el.Wakeup()
	}
}

// Wakeup forces the poller out of its wait.
func (el *EventLoop) Wakeup() {
	if el.metrics != nil {
		el.metrics.Add("loop.wakeups", 1)
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	if n, err := unix.Write(el.wakeupFd, buf[:]); err != nil && err != unix.EAGAIN {
		el.log.Errorf("eventloop: wakeup write %d bytes: %v", n, err)
	}
}

func (el *EventLoop) drainWakeup() {
	var buf [8]byte
	if _, err := unix.Read(el.wakeupFd, buf[:]); err != nil && err != unix.EAGAIN {
		el.log.Errorf("eventloop: wakeup read: %v", err)
	}
}

// runPendingTasks swaps the queue out under the mutex and drains the
// snapshot outside it, so tasks can enqueue further tasks without
// deadlocking or extending the critical section.
func (el *EventLoop) runPendingTasks() {
	el.draining.Store(true)
	el.mu.Lock()
	tasks := el.pending
	el.pending = queue.New()
	el.mu.Unlock()

	for tasks.Length() > 0 {
		tasks.Remove().(Task)()
	}
	el.draining.Store(false)
}

// UpdateChannel forwards an interest-mask change to the poller.
func (el *EventLoop) UpdateChannel(ch *Channel) {
	el.assertOwns(ch)
	el.poller.UpdateChannel(ch)
}

// RemoveChannel unregisters ch from the poller.
func (el *EventLoop) RemoveChannel(ch *Channel) {
	el.assertOwns(ch)
	el.poller.RemoveChannel(ch)
}

// HasChannel reports whether ch is registered with this loop's poller.
func (el *EventLoop) HasChannel(ch *Channel) bool {
	el.assertOwns(ch)
	return el.poller.HasChannel(ch)
}

// IsInLoopThread reports whether the caller runs on the owning thread.
func (el *EventLoop) IsInLoopThread() bool {
	return unix.Gettid() == el.tid
}

// AssertInLoop terminates on a thread-affinity violation.
func (el *EventLoop) AssertInLoop() {
	if !el.IsInLoopThread() {
		el.log.Fatalf("eventloop: owned by tid=%d, called from tid=%d: %v",
			el.tid, unix.Gettid(), api.ErrNotInLoop)
	}
}

// Running reports whether Loop is active.
func (el *EventLoop) Running() bool { return el.running.Load() }

// PollReturnTime is the wall-clock instant the last poll returned.
func (el *EventLoop) PollReturnTime() time.Time { return el.pollReturn }

func (el *EventLoop) assertOwns(ch *Channel) {
	if ch.loop != el {
		el.log.Fatalf("eventloop: channel fd=%d belongs to another loop", ch.fd)
	}
	el.AssertInLoop()
}
