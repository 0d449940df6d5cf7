//go:build linux

// File: reactor/poller_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Poller wraps one epoll instance in level-triggered mode and owns the
// descriptor→Channel table for its loop. Level-triggered readiness keeps
// partial reads safe: bytes left in a socket re-fire the event.
//
// Registration is a three-state machine kept in Channel.index:
// a channel starts as pollerNew, becomes pollerAdded on first ADD, drops
// to pollerDeleted when its interest empties (DEL but table entry kept,
// so enable/disable round-trips), and re-ADDs from there.

package reactor

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-tcp/api"
)

const (
	pollerNew     = -1
	pollerAdded   = 1
	pollerDeleted = 2
)

const initialEventListSize = 16

// Poller is confined to its owning loop's thread.
type Poller struct {
	log      api.Logger
	epfd     int
	channels map[int]*Channel
	events   []unix.EpollEvent
}

// NewPoller creates an epoll instance. Failure is a bootstrap error.
func NewPoller(log api.Logger) (*Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &Poller{
		log:      log,
		epfd:     epfd,
		channels: make(map[int]*Channel),
		events:   make([]unix.EpollEvent, initialEventListSize),
	}, nil
}

// Poll blocks up to timeoutMs for readiness, fills each ready channel's
// ready mask, appends it to active, and returns the wake time.
func (p *Poller) Poll(timeoutMs int, active *[]*Channel) time.Time {
	n, err := unix.EpollWait(p.epfd, p.events, timeoutMs)
	now := time.Now()
	if err != nil {
		if err != unix.EINTR {
			p.log.Errorf("poller: epoll_wait: %v", err)
		}
		return now
	}
	for i := 0; i < n; i++ {
		ev := p.events[i]
		ch, ok := p.channels[int(ev.Fd)]
		if !ok {
			continue
		}
		ch.revents = ev.Events
		*active = append(*active, ch)
	}
	if n == len(p.events) {
		p.events = make([]unix.EpollEvent, len(p.events)*2)
	}
	return now
}

// UpdateChannel synchronizes a channel's interest mask with the OS.
func (p *Poller) UpdateChannel(ch *Channel) {
	switch ch.index {
	case pollerNew, pollerDeleted:
		if ch.index == pollerNew {
			p.channels[ch.fd] = ch
		}
		ch.index = pollerAdded
		p.ctl(unix.EPOLL_CTL_ADD, ch)
	default: // pollerAdded
		if ch.IsNoneEvent() {
			p.ctl(unix.EPOLL_CTL_DEL, ch)
			ch.index = pollerDeleted
		} else {
			p.ctl(unix.EPOLL_CTL_MOD, ch)
		}
	}
}

// RemoveChannel erases the channel from the table and, if currently
// registered, from the OS.
func (p *Poller) RemoveChannel(ch *Channel) {
	delete(p.channels, ch.fd)
	if ch.index == pollerAdded {
		p.ctl(unix.EPOLL_CTL_DEL, ch)
	}
	ch.index = pollerNew
}

// HasChannel reports whether this poller tracks ch.
func (p *Poller) HasChannel(ch *Channel) bool {
	got, ok := p.channels[ch.fd]
	return ok && got == ch
}

// Close releases the epoll descriptor.
func (p *Poller) Close() {
	unix.Close(p.epfd)
}

func (p *Poller) ctl(op int, ch *Channel) {
	ev := unix.EpollEvent{Events: ch.events, Fd: int32(ch.fd)}
	if err := unix.EpollCtl(p.epfd, op, ch.fd, &ev); err != nil {
		if op == unix.EPOLL_CTL_DEL {
			p.log.Errorf("poller: epoll_ctl del fd=%d: %v", ch.fd, err)
			return
		}
		p.log.Fatalf("poller: epoll_ctl op=%d fd=%d: %v", op, ch.fd, err)
	}
}
