// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor implements the one-loop-per-thread event core:
// Channel (descriptor + event masks + callbacks), the epoll-backed
// Poller, EventLoop with its cross-thread task queue and eventfd wakeup,
// and the LoopThread/LoopPool worker machinery with round-robin
// dispatch. Everything a Channel or loop owns is mutated only on the
// owning loop's locked OS thread.
package reactor
