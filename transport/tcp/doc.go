// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package tcp holds the socket-facing half of the runtime: the Socket
// syscall wrapper, the listening Acceptor on the base loop, and Conn,
// the per-connection state machine that serializes all I/O on its
// owning sub-loop.
package tcp
