//go:build linux

// File: server/server_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server binds the runtime together: the acceptor on the base loop, the
// sub-loop pool, the registry of live connections, and the fan-out of
// user callbacks into each new connection. The registry is mutated only
// on the base loop.

package server

import (
	"fmt"
	"net"

	uatomic "go.uber.org/atomic"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/control"
	"github.com/momentics/hioload-tcp/internal/netutil"
	"github.com/momentics/hioload-tcp/reactor"
	"github.com/momentics/hioload-tcp/transport/tcp"
)

// Server is the user-facing facade. Construct it on the base loop's
// thread; callback setters must run before Start.
type Server struct {
	log      api.Logger
	baseLoop *reactor.EventLoop
	cfg      *Config

	name   string
	ipPort string

	acceptor *tcp.Acceptor
	pool     *reactor.LoopPool
	metrics  *control.MetricsRegistry

	started    *uatomic.Int32
	nextConnID int // base loop only

	connections map[string]*tcp.Conn // base loop only

	highWaterMark int
	pinCPUs       bool
	pinOffset     int

	connectionCb    tcp.ConnectionCallback
	messageCb       tcp.MessageCallback
	writeCompleteCb tcp.WriteCompleteCallback
	highWaterCb     tcp.HighWaterMarkCallback
	threadInit      reactor.ThreadInitCallback
}

// New builds the server facade on baseLoop. The listen socket is
// created and bound here; accepting starts with Start.
func New(baseLoop *reactor.EventLoop, cfg *Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	s := &Server{
		log:         api.NopLogger(),
		baseLoop:    baseLoop,
		cfg:         cfg,
		name:        cfg.Name,
		metrics:     control.NewMetricsRegistry(),
		started:     uatomic.NewInt32(0),
		nextConnID:  0,
		connections: make(map[string]*tcp.Conn),
	}
	for _, o := range opts {
		o(s)
	}
	s.highWaterMark = s.cfg.HighWaterMark

	listenAddr, err := netutil.ResolveTCPAddr(s.cfg.Addr)
	if err != nil {
		return nil, err
	}

	baseLoop.SetControl(s.metrics)

	s.acceptor = tcp.NewAcceptor(baseLoop, s.log, listenAddr, s.cfg.ReusePort)
	s.ipPort = s.acceptor.ListenAddr().String()

	s.pool = reactor.NewLoopPool(baseLoop, s.log, s.cfg.Name)
	s.pool.SetLoopNum(s.cfg.Loops)
	s.pool.SetCPUPinning(s.pinCPUs, s.pinOffset)
	s.pool.SetControl(s.metrics)

	s.acceptor.SetNewConnectionCallback(s.newConnection)
	return s, nil
}

// SetLoopNum overrides the configured sub-loop count. Must precede
// Start.
func (s *Server) SetLoopNum(n int) { s.pool.SetLoopNum(n) }

// SetConnectionCallback installs the connect/disconnect observer.
func (s *Server) SetConnectionCallback(cb tcp.ConnectionCallback) { s.connectionCb = cb }

// SetMessageCallback installs the inbound-data sink.
func (s *Server) SetMessageCallback(cb tcp.MessageCallback) { s.messageCb = cb }

// SetWriteCompleteCallback installs the output-drained observer.
func (s *Server) SetWriteCompleteCallback(cb tcp.WriteCompleteCallback) { s.writeCompleteCb = cb }

// SetHighWaterMarkCallback installs the backpressure observer.
func (s *Server) SetHighWaterMarkCallback(cb tcp.HighWaterMarkCallback) { s.highWaterCb = cb }

// SetThreadInitCallback installs the per-sub-loop init hook.
func (s *Server) SetThreadInitCallback(cb reactor.ThreadInitCallback) { s.threadInit = cb }

// Start launches the sub-loop pool and begins listening. Idempotent.
func (s *Server) Start() {
	if s.started.Inc() == 1 {
		s.pool.Start(s.threadInit)
		s.baseLoop.RunInLoop(s.acceptor.Listen)
	}
}

// Stop evicts every live connection, tears down the acceptor, and quits
// the worker loops. Runs via the base loop; the base loop itself stays
// running and is quit by its owner.
func (s *Server) Stop() {
	s.baseLoop.RunInLoop(s.stopInLoop)
}

func (s *Server) stopInLoop() {
	s.baseLoop.AssertInLoop()

	for name, conn := range s.connections {
		delete(s.connections, name)
		conn.OwnerLoop().RunInLoop(conn.ConnectDestroyed)
	}
	s.metrics.Set("connections.active", 0)

	s.acceptor.Close()
	if s.pool.Started() {
		for _, loop := range s.pool.GetAllLoops() {
			if loop != s.baseLoop {
				loop.Quit()
			}
		}
	}
}

// ListenAddr returns the bound listen address, useful with port 0.
func (s *Server) ListenAddr() *net.TCPAddr { return s.acceptor.ListenAddr() }

// Name returns the configured server name.
func (s *Server) Name() string { return s.name }

// BaseLoop returns the loop owning the acceptor.
func (s *Server) BaseLoop() *reactor.EventLoop { return s.baseLoop }

// Control exposes the runtime counters.
func (s *Server) Control() api.Control { return s.metrics }

// Stats snapshots the runtime counters.
func (s *Server) Stats() map[string]int64 { return s.metrics.Stats() }

// ConnectionCount reports the number of live connections. Safe from any
// thread; tracked through the metrics registry rather than the
// base-loop-confined registry map.
func (s *Server) ConnectionCount() int {
	return int(s.metrics.Get("connections.active"))
}

// newConnection runs on the base loop for every accepted descriptor:
// pick a sub-loop, register, fan out callbacks, and hand the connection
// to its loop.
func (s *Server) newConnection(fd int, peerAddr *net.TCPAddr) {
	s.baseLoop.AssertInLoop()

	ioLoop := s.pool.Next()
	s.nextConnID++
	name := fmt.Sprintf("%s-%s#%d", s.name, s.ipPort, s.nextConnID)

	localAddr := netutil.LocalAddr(fd)
	s.log.Infof("server %s: new connection %s from %v", s.name, name, peerAddr)

	conn := tcp.NewConn(ioLoop, s.log, name, fd, localAddr, peerAddr)
	s.connections[name] = conn

	conn.SetConnectionCallback(s.connectionCb)
	conn.SetMessageCallback(s.messageCb)
	conn.SetWriteCompleteCallback(s.writeCompleteCb)
	conn.SetHighWaterMarkCallback(s.highWaterCb)
	if s.highWaterMark > 0 {
		conn.SetHighWaterMark(s.highWaterMark)
	}
	conn.SetCloseCallback(s.removeConnection)

	s.metrics.Add("connections.accepted", 1)
	s.metrics.Add("connections.active", 1)

	ioLoop.RunInLoop(conn.ConnectEstablished)
}

// removeConnection arrives on the connection's sub-loop and marshals the
// registry eviction back to the base loop.
func (s *Server) removeConnection(conn *tcp.Conn) {
	s.baseLoop.RunInLoop(func() { s.removeConnectionInLoop(conn) })
}

func (s *Server) removeConnectionInLoop(conn *tcp.Conn) {
	s.baseLoop.AssertInLoop()

	if _, ok := s.connections[conn.Name()]; !ok {
		return
	}
	delete(s.connections, conn.Name())
	s.metrics.Add("connections.active", -1)
	s.log.Infof("server %s: remove connection %s", s.name, conn.Name())

	ioLoop := conn.OwnerLoop()
	ioLoop.QueueInLoop(conn.ConnectDestroyed)
}
