//go:build linux

// File: reactor/channel_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Channel binds one descriptor to its owning loop: the interest mask the
// poller should watch, the ready mask the poller reported last, and the
// callbacks dispatched for each event kind. A Channel never owns the
// descriptor; the acceptor, the wakeup path, or a connection does.

package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

// ReadCallback receives the loop's poll-return time for the iteration
// that reported readability.
type ReadCallback func(receiveTime time.Time)

// EventCallback handles write, close, and error events.
type EventCallback func()

const (
	noneEvent  uint32 = 0
	readEvent  uint32 = unix.EPOLLIN | unix.EPOLLPRI
	writeEvent uint32 = unix.EPOLLOUT
)

// Channel is owned by exactly one EventLoop for its whole lifetime.
// All methods must be called on that loop's thread.
type Channel struct {
	loop *EventLoop
	fd   int

	events  uint32 // interest mask, synchronized to the poller on change
	revents uint32 // ready mask, written by the poller before dispatch
	index   int    // poller registration state hint

	tie  any
	tied bool

	readCb  ReadCallback
	writeCb EventCallback
	closeCb EventCallback
	errorCb EventCallback
}

// NewChannel binds fd to loop. The descriptor is immutable afterwards.
func NewChannel(loop *EventLoop, fd int) *Channel {
	return &Channel{loop: loop, fd: fd, index: pollerNew}
}

func (c *Channel) Fd() int               { return c.fd }
func (c *Channel) OwnerLoop() *EventLoop { return c.loop }

func (c *Channel) SetReadCallback(cb ReadCallback)   { c.readCb = cb }
func (c *Channel) SetWriteCallback(cb EventCallback) { c.writeCb = cb }
func (c *Channel) SetCloseCallback(cb EventCallback) { c.closeCb = cb }
func (c *Channel) SetErrorCallback(cb EventCallback) { c.errorCb = cb }

// Tie anchors the channel to its owning object. HandleEvent holds the
// reference for the duration of dispatch so a connection removed from
// its registry mid-callback stays alive until dispatch returns.
func (c *Channel) Tie(owner any) {
	c.tie = owner
	c.tied = true
}

func (c *Channel) EnableReading()  { c.events |= readEvent; c.update() }
func (c *Channel) DisableReading() { c.events &^= readEvent; c.update() }
func (c *Channel) EnableWriting()  { c.events |= writeEvent; c.update() }
func (c *Channel) DisableWriting() { c.events &^= writeEvent; c.update() }
func (c *Channel) DisableAll()     { c.events = noneEvent; c.update() }

func (c *Channel) IsNoneEvent() bool { return c.events == noneEvent }
func (c *Channel) IsWriting() bool   { return c.events&writeEvent != 0 }
func (c *Channel) IsReading() bool   { return c.events&readEvent != 0 }

// Remove unregisters the channel from the owning loop's poller.
// The channel must already be disabled.
func (c *Channel) Remove() {
	c.loop.RemoveChannel(c)
}

func (c *Channel) update() {
	c.loop.UpdateChannel(c)
}

// HandleEvent dispatches the poller-reported ready mask to callbacks.
// Order matters: hang-up without pending input closes first, errors
// report next, then reads (which also cover peer half-close), then
// writes.
func (c *Channel) HandleEvent(receiveTime time.Time) {
	if c.tied {
		// Keep the owner reachable for the whole dispatch, even if a
		// callback drops the last registry reference to it.
		owner := c.tie
		defer func() { _ = owner }()
	}
	c.dispatch(receiveTime)
}

func (c *Channel) dispatch(receiveTime time.Time) {
	if c.revents&unix.EPOLLHUP != 0 && c.revents&unix.EPOLLIN == 0 {
		if c.closeCb != nil {
			c.closeCb()
		}
	}
	if c.revents&unix.EPOLLERR != 0 {
		if c.errorCb != nil {
			c.errorCb()
		}
	}
	if c.revents&(unix.EPOLLIN|unix.EPOLLPRI|unix.EPOLLRDHUP) != 0 {
		if c.readCb != nil {
			c.readCb(receiveTime)
		}
	}
	if c.revents&unix.EPOLLOUT != 0 {
		if c.writeCb != nil {
			c.writeCb()
		}
	}
}
