//go:build linux

// File: transport/tcp/acceptor_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Acceptor owns the listening socket and its Channel on the base loop.
// Each readiness event accepts one connection and hands the raw
// descriptor to the server's new-connection callback.
//
// EMFILE handling keeps a reserved placeholder descriptor (/dev/null):
// when the process runs out of descriptors, the placeholder is closed,
// the pending connection accepted and immediately closed so the peer
// sees an orderly refusal instead of a hung socket, and the placeholder
// reopened. Without this, a level-triggered listener spins on the same
// pending connection forever.

package tcp

import (
	"net"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/internal/netutil"
	"github.com/momentics/hioload-tcp/reactor"
)

// NewConnectionCallback receives each accepted descriptor with its peer
// address. Runs on the base loop.
type NewConnectionCallback func(fd int, peerAddr *net.TCPAddr)

// Acceptor is confined to the base loop.
type Acceptor struct {
	log  api.Logger
	loop *reactor.EventLoop

	sock *Socket
	ch   *reactor.Channel

	newConnCb NewConnectionCallback
	listening bool

	idleFd int
}

// NewAcceptor creates, configures, and binds the listening socket.
// Socket or bind failure is fatal: a server that cannot listen has
// nothing to fall back to.
func NewAcceptor(loop *reactor.EventLoop, log api.Logger, listenAddr *net.TCPAddr, reusePort bool) *Acceptor {
	if log == nil {
		log = api.NopLogger()
	}
	fd, err := netutil.NewTCPSocket()
	if err != nil {
		log.Fatalf("acceptor: %v", err)
	}

	a := &Acceptor{
		log:    log,
		loop:   loop,
		sock:   NewSocket(fd),
		idleFd: openIdleFd(log),
	}
	if err := a.sock.SetReuseAddr(true); err != nil {
		log.Errorf("acceptor: SO_REUSEADDR: %v", err)
	}
	if err := a.sock.SetReusePort(reusePort); err != nil {
		log.Errorf("acceptor: SO_REUSEPORT: %v", err)
	}
	if err := a.sock.Bind(listenAddr); err != nil {
		log.Fatalf("acceptor: %v", err)
	}

	a.ch = reactor.NewChannel(loop, fd)
	a.ch.SetReadCallback(a.handleRead)
	return a
}

// Listen starts accepting. Runs on the base loop.
func (a *Acceptor) Listen() {
	a.loop.AssertInLoop()
	a.listening = true
	if err := a.sock.Listen(); err != nil {
		a.log.Fatalf("acceptor: %v", err)
	}
	a.ch.EnableReading()
}

// Listening reports whether Listen has run.
func (a *Acceptor) Listening() bool { return a.listening }

// SetNewConnectionCallback installs the accepted-descriptor sink.
func (a *Acceptor) SetNewConnectionCallback(cb NewConnectionCallback) {
	a.newConnCb = cb
}

// ListenAddr returns the bound address, with the kernel-assigned port
// resolved when the configuration used port 0.
func (a *Acceptor) ListenAddr() *net.TCPAddr {
	return netutil.LocalAddr(a.sock.Fd())
}

// Close tears down the listener and the placeholder descriptor.
func (a *Acceptor) Close() {
	a.loop.AssertInLoop()
	a.ch.DisableAll()
	a.ch.Remove()
	a.sock.Close()
	if a.idleFd >= 0 {
		unix.Close(a.idleFd)
	}
}

func (a *Acceptor) handleRead(time.Time) {
	a.loop.AssertInLoop()

	connFd, peerAddr, err := a.sock.Accept()
	if err == nil {
		if a.newConnCb != nil {
			a.newConnCb(connFd, peerAddr)
		} else {
			unix.Close(connFd)
		}
		return
	}

	switch err {
	case unix.EAGAIN:
		// Raced with another accept or a spurious wake.
	case unix.EMFILE:
		a.log.Errorf("acceptor: accept: %v, draining via placeholder fd", err)
		a.drainWithIdleFd()
	default:
		a.log.Errorf("acceptor: accept: %v", err)
	}
}

// drainWithIdleFd frees the reserved descriptor, accepts and discards
// the pending connection, then re-reserves.
func (a *Acceptor) drainWithIdleFd() {
	if a.idleFd < 0 {
		return
	}
	unix.Close(a.idleFd)
	if fd, _, err := unix.Accept4(a.sock.Fd(), unix.SOCK_CLOEXEC); err == nil {
		unix.Close(fd)
	}
	a.idleFd = openIdleFd(a.log)
}

func openIdleFd(log api.Logger) int {
	fd, err := unix.Open("/dev/null", unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		log.Errorf("acceptor: reserve placeholder fd: %v", err)
		return -1
	}
	return fd
}
