//go:build linux

// File: transport/tcp/conn_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Conn is the per-connection state machine. All I/O and every state
// transition run on the owning sub-loop's thread; Send and Shutdown may
// be called from anywhere and marshal themselves over.
//
// States move forward only:
//
//	Connecting → Connected → Disconnecting → Disconnected
//	                      ↘ ______________ ↗
//
// Disconnected is terminal; ConnectDestroyed runs exactly once from it.

package tcp

import (
	"net"
	"time"

	uatomic "go.uber.org/atomic"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/core/buffer"
	"github.com/momentics/hioload-tcp/internal/netutil"
	"github.com/momentics/hioload-tcp/reactor"
)

// Connection states.
const (
	StateConnecting int32 = iota
	StateConnected
	StateDisconnecting
	StateDisconnected
)

// DefaultHighWaterMark is the output-buffer level above which the
// high-water callback fires.
const DefaultHighWaterMark = 64 * 1024 * 1024

// Conn is shared between the server registry, in-flight loop tasks, and
// the channel tie; the garbage collector reclaims it once all drop.
type Conn struct {
	log  api.Logger
	loop *reactor.EventLoop
	name string

	state *uatomic.Int32

	sock *Socket
	ch   *reactor.Channel

	localAddr *net.TCPAddr
	peerAddr  *net.TCPAddr

	input  *buffer.Buffer
	output *buffer.Buffer

	highWaterMark int

	connectionCb    ConnectionCallback
	messageCb       MessageCallback
	writeCompleteCb WriteCompleteCallback
	highWaterCb     HighWaterMarkCallback
	closeCb         CloseCallback
}

// NewConn wraps an accepted descriptor. Called by the server on the
// base loop; the connection then lives on loop.
func NewConn(loop *reactor.EventLoop, log api.Logger, name string, fd int, localAddr, peerAddr *net.TCPAddr) *Conn {
	if log == nil {
		log = api.NopLogger()
	}
	c := &Conn{
		log:           log,
		loop:          loop,
		name:          name,
		state:         uatomic.NewInt32(StateConnecting),
		sock:          NewSocket(fd),
		ch:            reactor.NewChannel(loop, fd),
		localAddr:     localAddr,
		peerAddr:      peerAddr,
		input:         buffer.New(),
		output:        buffer.New(),
		highWaterMark: DefaultHighWaterMark,
	}
	c.ch.SetReadCallback(c.handleRead)
	c.ch.SetWriteCallback(c.handleWrite)
	c.ch.SetCloseCallback(c.handleClose)
	c.ch.SetErrorCallback(c.handleError)

	if err := c.sock.SetKeepAlive(true); err != nil {
		log.Errorf("conn %s: SO_KEEPALIVE: %v", name, err)
	}
	log.Debugf("conn %s: created fd=%d", name, fd)
	return c
}

func (c *Conn) Name() string                  { return c.name }
func (c *Conn) OwnerLoop() *reactor.EventLoop { return c.loop }
func (c *Conn) LocalAddr() *net.TCPAddr       { return c.localAddr }
func (c *Conn) PeerAddr() *net.TCPAddr        { return c.peerAddr }

// State returns the current connection state.
func (c *Conn) State() int32 { return c.state.Load() }

// Connected reports whether the connection is in the Connected state.
func (c *Conn) Connected() bool { return c.state.Load() == StateConnected }

// Disconnected reports whether the terminal state has been reached.
func (c *Conn) Disconnected() bool { return c.state.Load() == StateDisconnected }

// SetHighWaterMark overrides the backpressure threshold. Set it from
// the connection callback, before traffic flows.
func (c *Conn) SetHighWaterMark(n int) { c.highWaterMark = n }

// SetTCPNoDelay toggles Nagle's algorithm.
func (c *Conn) SetTCPNoDelay(enable bool) error { return c.sock.SetTCPNoDelay(enable) }

// SetKeepAlive toggles TCP keep-alive probes.
func (c *Conn) SetKeepAlive(enable bool) error { return c.sock.SetKeepAlive(enable) }

func (c *Conn) SetConnectionCallback(cb ConnectionCallback)       { c.connectionCb = cb }
func (c *Conn) SetMessageCallback(cb MessageCallback)             { c.messageCb = cb }
func (c *Conn) SetWriteCompleteCallback(cb WriteCompleteCallback) { c.writeCompleteCb = cb }
func (c *Conn) SetHighWaterMarkCallback(cb HighWaterMarkCallback) { c.highWaterCb = cb }
func (c *Conn) SetCloseCallback(cb CloseCallback)                 { c.closeCb = cb }

// Send queues data for delivery. Safe from any thread; a cross-thread
// call copies the bytes and marshals to the owning loop. Data sent on a
// connection that is no longer Connected is dropped.
func (c *Conn) Send(data []byte) {
	if c.state.Load() != StateConnected {
		c.log.Warnf("conn %s: send on non-connected connection dropped", c.name)
		return
	}
	if c.loop.IsInLoopThread() {
		c.sendInLoop(data)
		return
	}
	owned := append([]byte(nil), data...)
	c.loop.QueueInLoop(func() { c.sendInLoop(owned) })
}

// SendString queues a string for delivery; same contract as Send.
func (c *Conn) SendString(s string) {
	if c.state.Load() != StateConnected {
		c.log.Warnf("conn %s: send on non-connected connection dropped", c.name)
		return
	}
	if c.loop.IsInLoopThread() {
		c.sendInLoop([]byte(s))
		return
	}
	c.loop.QueueInLoop(func() { c.sendInLoop([]byte(s)) })
}

// sendInLoop tries one direct write when nothing is queued, then buffers
// the remainder and enables write-readiness. The high-water callback
// fires only on the rising edge across the mark.
func (c *Conn) sendInLoop(data []byte) {
	c.loop.AssertInLoop()

	if c.state.Load() == StateDisconnected {
		c.log.Errorf("conn %s: disconnected, give up writing", c.name)
		return
	}

	var (
		nwrote     int
		remaining  = len(data)
		faultError bool
	)

	if !c.ch.IsWriting() && c.output.ReadableBytes() == 0 {
		n, err := unix.Write(c.ch.Fd(), data)
		if err == nil {
			nwrote = n
			remaining = len(data) - n
			if remaining == 0 && c.writeCompleteCb != nil {
				cb := c.writeCompleteCb
				c.loop.QueueInLoop(func() { cb(c) })
			}
		} else {
			nwrote = 0
			if err != unix.EAGAIN {
				c.log.Errorf("conn %s: write: %v", c.name, err)
				if err == unix.EPIPE || err == unix.ECONNRESET {
					faultError = true
				}
			}
		}
	}

	if remaining > 0 && !faultError {
		oldLen := c.output.ReadableBytes()
		if oldLen+remaining >= c.highWaterMark && oldLen < c.highWaterMark && c.highWaterCb != nil {
			cb := c.highWaterCb
			pending := oldLen + remaining
			c.loop.QueueInLoop(func() { cb(c, pending) })
		}
		c.output.Append(data[nwrote:])
		if !c.ch.IsWriting() {
			c.ch.EnableWriting()
		}
	}
}

// Shutdown half-closes the connection once the output buffer drains.
// Safe from any thread.
func (c *Conn) Shutdown() {
	if c.state.CAS(StateConnected, StateDisconnecting) {
		c.loop.RunInLoop(c.shutdownInLoop)
	}
}

// shutdownInLoop closes the write side if draining already finished;
// otherwise handleWrite finishes the job after the last flush.
func (c *Conn) shutdownInLoop() {
	c.loop.AssertInLoop()
	if !c.ch.IsWriting() {
		if err := c.sock.ShutdownWrite(); err != nil {
			c.log.Errorf("conn %s: shutdown write: %v", c.name, err)
		}
	}
}

// ForceClose tears the connection down without waiting for the output
// buffer. Safe from any thread.
func (c *Conn) ForceClose() {
	if s := c.state.Load(); s == StateConnected || s == StateDisconnecting {
		c.state.Store(StateDisconnecting)
		c.loop.QueueInLoop(c.forceCloseInLoop)
	}
}

func (c *Conn) forceCloseInLoop() {
	c.loop.AssertInLoop()
	if s := c.state.Load(); s == StateConnected || s == StateDisconnecting {
		c.handleClose()
	}
}

// ConnectEstablished finishes the handshake with the runtime: it runs
// once on the owning loop right after construction, ties the channel,
// enables reads, and surfaces the connected event.
func (c *Conn) ConnectEstablished() {
	c.loop.AssertInLoop()
	if !c.state.CAS(StateConnecting, StateConnected) {
		c.log.Fatalf("conn %s: establish from state %d", c.name, c.state.Load())
	}
	c.ch.Tie(c)
	c.ch.EnableReading()
	if c.connectionCb != nil {
		c.connectionCb(c)
	}
}

// ConnectDestroyed is the last act of a connection's life, marshalled to
// the owning loop after registry eviction. The descriptor closes here.
func (c *Conn) ConnectDestroyed() {
	c.loop.AssertInLoop()
	if c.state.CAS(StateConnected, StateDisconnected) {
		// Forced teardown: the close event never fired.
		c.ch.DisableAll()
		if c.connectionCb != nil {
			c.connectionCb(c)
		}
	}
	c.ch.Remove()
	c.sock.Close()
	c.log.Debugf("conn %s: destroyed", c.name)
}

func (c *Conn) handleRead(receiveTime time.Time) {
	c.loop.AssertInLoop()

	n, err := c.input.ReadFd(c.ch.Fd())
	switch {
	case n > 0:
		if c.messageCb != nil {
			c.messageCb(c, c.input, receiveTime)
		} else {
			c.input.RetrieveAll()
		}
	case n == 0:
		c.handleClose()
	default:
		c.log.Errorf("conn %s: read: %v", c.name, err)
		c.handleError()
	}
}

func (c *Conn) handleWrite() {
	c.loop.AssertInLoop()

	if !c.ch.IsWriting() {
		c.log.Errorf("conn %s: fd=%d is down, no more writing", c.name, c.ch.Fd())
		return
	}
	n, err := c.output.WriteFd(c.ch.Fd())
	if n <= 0 {
		if err != unix.EAGAIN {
			c.log.Errorf("conn %s: write: %v", c.name, err)
		}
		return
	}
	c.output.Retrieve(n)
	if c.output.ReadableBytes() == 0 {
		// Nothing left: stop polling a writable socket with nothing
		// to send.
		c.ch.DisableWriting()
		if c.writeCompleteCb != nil {
			cb := c.writeCompleteCb
			c.loop.QueueInLoop(func() { cb(c) })
		}
		if c.state.Load() == StateDisconnecting {
			c.shutdownInLoop()
		}
	}
}

// handleClose runs the symmetric disconnect notification, then hands
// the connection to the server's close callback for registry eviction.
func (c *Conn) handleClose() {
	c.loop.AssertInLoop()
	c.log.Infof("conn %s: fd=%d closed, state=%d", c.name, c.ch.Fd(), c.state.Load())

	c.state.Store(StateDisconnected)
	c.ch.DisableAll()

	if c.connectionCb != nil {
		c.connectionCb(c)
	}
	if c.closeCb != nil {
		c.closeCb(c)
	}
}

// handleError reports SO_ERROR and leaves the state machine alone; the
// authoritative close arrives via a zero read or a failed send.
func (c *Conn) handleError() {
	err := netutil.SockErr(c.ch.Fd())
	c.log.Errorf("conn %s: SO_ERROR: %v", c.name, err)
}
