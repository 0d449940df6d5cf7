//go:build linux

// File: internal/netutil/socket_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Thin wrappers over socket syscalls and options shared by the acceptor
// and the per-connection socket. All descriptors in this library are
// non-blocking and close-on-exec.

package netutil

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// NewTCPSocket creates a non-blocking IPv4 stream socket.
func NewTCPSocket() (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return -1, fmt.Errorf("netutil: socket: %w", err)
	}
	return fd, nil
}

func SetReuseAddr(fd int, enable bool) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, boolInt(enable))
}

func SetReusePort(fd int, enable bool) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, boolInt(enable))
}

func SetKeepAlive(fd int, enable bool) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, boolInt(enable))
}

func SetNoDelay(fd int, enable bool) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, boolInt(enable))
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SockErr queries the pending socket error via SO_ERROR.
func SockErr(fd int) error {
	v, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if v == 0 {
		return nil
	}
	return unix.Errno(v)
}

// ResolveTCPAddr parses a listen address like ":9000" or "10.0.0.1:80"
// into a *net.TCPAddr with a concrete IPv4 address.
func ResolveTCPAddr(address string) (*net.TCPAddr, error) {
	addr, err := net.ResolveTCPAddr("tcp4", address)
	if err != nil {
		return nil, fmt.Errorf("netutil: resolve %q: %w", address, err)
	}
	if addr.IP == nil {
		addr.IP = net.IPv4zero
	}
	return addr, nil
}

// TCPAddrToSockaddr converts a *net.TCPAddr into a bindable sockaddr.
func TCPAddrToSockaddr(addr *net.TCPAddr) (*unix.SockaddrInet4, error) {
	sa := &unix.SockaddrInet4{Port: addr.Port}
	ip4 := addr.IP.To4()
	if ip4 == nil {
		if len(addr.IP) != 0 {
			return nil, fmt.Errorf("netutil: %v is not an IPv4 address", addr.IP)
		}
		ip4 = net.IPv4zero.To4()
	}
	copy(sa.Addr[:], ip4)
	return sa, nil
}

// SockaddrToTCPAddr converts an accepted or queried sockaddr back into
// a *net.TCPAddr.
func SockaddrToTCPAddr(sa unix.Sockaddr) *net.TCPAddr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(a.Addr[:]).To16(), Port: a.Port}
	case *unix.SockaddrInet6:
		ip := make(net.IP, net.IPv6len)
		copy(ip, a.Addr[:])
		return &net.TCPAddr{IP: ip, Port: a.Port}
	default:
		return &net.TCPAddr{}
	}
}

// LocalAddr queries the bound address of fd.
func LocalAddr(fd int) *net.TCPAddr {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return &net.TCPAddr{}
	}
	return SockaddrToTCPAddr(sa)
}

// PeerAddr queries the remote address of fd.
func PeerAddr(fd int) *net.TCPAddr {
	sa, err := unix.Getpeername(fd)
	if err != nil {
		return &net.TCPAddr{}
	}
	return SockaddrToTCPAddr(sa)
}
