//go:build linux

// File: core/buffer/fdio_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Descriptor I/O for Buffer. ReadFd must make progress against a peer of
// unknown message size under level-triggered readiness, so it issues one
// readv over the writable region plus a 64 KiB stack segment (left out
// when the writable region already holds 64 KiB or more). Whatever
// overflows into the stack segment is appended afterwards; bytes left in
// the socket re-fire the readiness event, so nothing is ever lost.

package buffer

import "golang.org/x/sys/unix"

const extraBufSize = 64 * 1024

// ReadFd reads once from fd into the buffer. It returns the byte count
// and the raw syscall error, if any. EAGAIN is reported like any other
// errno; classifying it is the caller's concern.
func (b *Buffer) ReadFd(fd int) (int, error) {
	var extra [extraBufSize]byte

	writable := b.WritableBytes()
	iovs := make([][]byte, 1, 2)
	iovs[0] = b.writableSlice()
	if writable < extraBufSize {
		iovs = append(iovs, extra[:])
	}

	n, err := unix.Readv(fd, iovs)
	if err != nil {
		return -1, err
	}
	if n <= writable {
		b.advance(n)
	} else {
		b.advance(writable)
		b.Append(extra[:n-writable])
	}
	return n, nil
}

// WriteFd writes the readable region to fd once, without consuming it.
// The caller retrieves whatever was accepted.
func (b *Buffer) WriteFd(fd int) (int, error) {
	n, err := unix.Write(fd, b.Peek())
	if err != nil {
		return -1, err
	}
	return n, nil
}
