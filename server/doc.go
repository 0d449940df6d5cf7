// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package server exposes the multi-reactor TCP server facade: an
// acceptor on the caller's base loop, a pool of sub-loops for
// connection I/O, and the registry of live connections.
package server
