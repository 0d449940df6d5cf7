//go:build linux

// File: transport/tcp/socket_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Socket owns a descriptor and closes it exactly once. Accepted
// descriptors inherit non-blocking and close-on-exec from accept4.

package tcp

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-tcp/internal/netutil"
)

// Socket wraps one TCP descriptor.
type Socket struct {
	fd int
}

// NewSocket takes ownership of fd.
func NewSocket(fd int) *Socket { return &Socket{fd: fd} }

// Fd returns the wrapped descriptor.
func (s *Socket) Fd() int { return s.fd }

// Bind binds the socket to addr.
func (s *Socket) Bind(addr *net.TCPAddr) error {
	sa, err := netutil.TCPAddrToSockaddr(addr)
	if err != nil {
		return err
	}
	if err := unix.Bind(s.fd, sa); err != nil {
		return fmt.Errorf("socket: bind %v: %w", addr, err)
	}
	return nil
}

// Listen switches the socket to listening mode.
func (s *Socket) Listen() error {
	if err := unix.Listen(s.fd, unix.SOMAXCONN); err != nil {
		return fmt.Errorf("socket: listen: %w", err)
	}
	return nil
}

// Accept takes one pending connection, non-blocking and close-on-exec.
func (s *Socket) Accept() (int, *net.TCPAddr, error) {
	connFd, sa, err := unix.Accept4(s.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return -1, nil, err
	}
	return connFd, netutil.SockaddrToTCPAddr(sa), nil
}

// ShutdownWrite half-closes the sending side, flushing queued kernel
// data before the FIN.
func (s *Socket) ShutdownWrite() error {
	return unix.Shutdown(s.fd, unix.SHUT_WR)
}

func (s *Socket) SetReuseAddr(enable bool) error  { return netutil.SetReuseAddr(s.fd, enable) }
func (s *Socket) SetReusePort(enable bool) error  { return netutil.SetReusePort(s.fd, enable) }
func (s *Socket) SetKeepAlive(enable bool) error  { return netutil.SetKeepAlive(s.fd, enable) }
func (s *Socket) SetTCPNoDelay(enable bool) error { return netutil.SetNoDelay(s.fd, enable) }

// Close releases the descriptor.
func (s *Socket) Close() error {
	if s.fd < 0 {
		return nil
	}
	err := unix.Close(s.fd)
	s.fd = -1
	return err
}
