//go:build linux

// Copyright 2025 momentics@gmail.com
// Licensed under the Apache License, Version 2.0.

// fdio_linux_test.go — scattered-read behavior against real descriptors.

package buffer

import (
	"bytes"
	"testing"

	"golang.org/x/sys/unix"
)

func socketPair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestReadFdSmall(t *testing.T) {
	r, w := socketPair(t)
	payload := []byte("hello reactor")
	if _, err := unix.Write(w, payload); err != nil {
		t.Fatalf("write: %v", err)
	}

	b := New()
	n, err := b.ReadFd(r)
	if err != nil {
		t.Fatalf("ReadFd: %v", err)
	}
	if n != len(payload) {
		t.Fatalf("n = %d, want %d", n, len(payload))
	}
	if !bytes.Equal(b.Peek(), payload) {
		t.Error("payload mismatch")
	}
}

func TestReadFdEAGAIN(t *testing.T) {
	r, _ := socketPair(t)
	b := New()
	n, err := b.ReadFd(r)
	if n != -1 || err != unix.EAGAIN {
		t.Fatalf("ReadFd on empty socket = (%d, %v), want (-1, EAGAIN)", n, err)
	}
}

// A payload larger than the writable region must land partly in the
// stack segment and be appended without loss.
func TestReadFdOverflowsIntoExtraSegment(t *testing.T) {
	r, w := socketPair(t)

	if err := unix.SetsockoptInt(w, unix.SOL_SOCKET, unix.SO_SNDBUF, 256*1024); err != nil {
		t.Fatalf("SO_SNDBUF: %v", err)
	}
	if err := unix.SetsockoptInt(r, unix.SOL_SOCKET, unix.SO_RCVBUF, 256*1024); err != nil {
		t.Fatalf("SO_RCVBUF: %v", err)
	}

	payload := make([]byte, 48*1024)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	sent := 0
	for sent < len(payload) {
		n, err := unix.Write(w, payload[sent:])
		if err == unix.EAGAIN {
			break
		}
		if err != nil {
			t.Fatalf("write: %v", err)
		}
		sent += n
	}

	b := New() // writable region is 1 KiB, far below what is pending
	got := make([]byte, 0, sent)
	for len(got) < sent {
		n, err := b.ReadFd(r)
		if err == unix.EAGAIN {
			break
		}
		if err != nil {
			t.Fatalf("ReadFd: %v", err)
		}
		if n == 0 {
			break
		}
		got = append(got, b.RetrieveAllAsBytes()...)
	}
	if !bytes.Equal(got, payload[:sent]) {
		t.Fatalf("reassembled %d bytes diverge from the %d sent", len(got), sent)
	}
}
