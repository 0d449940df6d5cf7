// Copyright 2025 momentics@gmail.com
// Licensed under the Apache License, Version 2.0.

// buffer_test.go — unit and property tests for the byte queue.

package buffer

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestNewBufferLayout(t *testing.T) {
	b := New()
	if b.ReadableBytes() != 0 {
		t.Errorf("readable = %d, want 0", b.ReadableBytes())
	}
	if b.WritableBytes() != InitialSize {
		t.Errorf("writable = %d, want %d", b.WritableBytes(), InitialSize)
	}
	if b.PrependableBytes() != CheapPrepend {
		t.Errorf("prependable = %d, want %d", b.PrependableBytes(), CheapPrepend)
	}
}

func TestAppendRetrieveRoundTrip(t *testing.T) {
	b := New()
	payload := []byte("the quick brown fox")
	b.Append(payload)

	if b.ReadableBytes() != len(payload) {
		t.Fatalf("readable = %d, want %d", b.ReadableBytes(), len(payload))
	}
	got := b.RetrieveAsString(len(payload))
	if got != string(payload) {
		t.Errorf("round trip = %q, want %q", got, payload)
	}
	if b.ReadableBytes() != 0 || b.PrependableBytes() != CheapPrepend {
		t.Errorf("indices not reset after full retrieve")
	}
}

func TestPartialRetrieve(t *testing.T) {
	b := New()
	b.AppendString("hello world")

	if got := b.RetrieveAsString(5); got != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
	if got := b.RetrieveAllAsString(); got != " world" {
		t.Errorf("got %q, want %q", got, " world")
	}
}

func TestRetrieveMoreThanReadable(t *testing.T) {
	b := New()
	b.AppendString("abc")
	b.Retrieve(100)
	if b.ReadableBytes() != 0 || b.PrependableBytes() != CheapPrepend {
		t.Errorf("over-retrieve must reset the buffer")
	}
}

func TestGrowth(t *testing.T) {
	b := New()
	big := bytes.Repeat([]byte{0xab}, InitialSize*3)
	b.Append(big)
	if b.ReadableBytes() != len(big) {
		t.Fatalf("readable = %d, want %d", b.ReadableBytes(), len(big))
	}
	if !bytes.Equal(b.Peek(), big) {
		t.Error("content mismatch after growth")
	}
}

// Compaction must move the readable region down instead of growing when
// the consumed front space suffices.
func TestCompactionReclaimsFrontSpace(t *testing.T) {
	b := New()
	b.Append(bytes.Repeat([]byte{1}, 800))
	b.Retrieve(600)
	capBefore := b.Capacity()

	rest := bytes.Repeat([]byte{2}, 700) // fits only after compaction
	b.Append(rest)
	if b.Capacity() != capBefore {
		t.Errorf("capacity grew from %d to %d, want compaction", capBefore, b.Capacity())
	}

	want := append(bytes.Repeat([]byte{1}, 200), rest...)
	if !bytes.Equal(b.Peek(), want) {
		t.Error("content corrupted by compaction")
	}
}

func TestPrepend(t *testing.T) {
	b := New()
	b.AppendString("payload")
	b.Prepend([]byte{0, 0, 0, 7})

	if b.PrependableBytes() != CheapPrepend-4 {
		t.Errorf("prependable = %d, want %d", b.PrependableBytes(), CheapPrepend-4)
	}
	want := append([]byte{0, 0, 0, 7}, "payload"...)
	if !bytes.Equal(b.Peek(), want) {
		t.Error("prepended header not contiguous with payload")
	}
}

// TestBufferPropertyBased performs randomized append/retrieve sequences
// and checks the region arithmetic and FIFO content after every step.
func TestBufferPropertyBased(t *testing.T) {
	for seed := int64(0); seed < 10; seed++ {
		rng := rand.New(rand.NewSource(seed))
		b := New()
		var mirror []byte

		for i := 0; i < 3000; i++ {
			switch rng.Intn(3) {
			case 0: // append
				n := rng.Intn(512)
				chunk := make([]byte, n)
				rng.Read(chunk)
				b.Append(chunk)
				mirror = append(mirror, chunk...)
			case 1: // retrieve
				n := rng.Intn(512)
				if n > len(mirror) {
					n = len(mirror)
				}
				got := b.RetrieveAsBytes(n)
				if !bytes.Equal(got, mirror[:n]) {
					t.Fatalf("seed %d op %d: retrieved bytes diverge from FIFO order", seed, i)
				}
				mirror = mirror[n:]
			case 2: // peek
				if !bytes.Equal(b.Peek(), mirror) {
					t.Fatalf("seed %d op %d: peek diverges from logical contents", seed, i)
				}
			}

			if b.ReadableBytes() != len(mirror) {
				t.Fatalf("seed %d op %d: readable = %d, want %d", seed, i, b.ReadableBytes(), len(mirror))
			}
			sum := b.ReadableBytes() + b.WritableBytes() + b.PrependableBytes()
			if sum != b.Capacity() {
				t.Fatalf("seed %d op %d: regions sum to %d, capacity %d", seed, i, sum, b.Capacity())
			}
			if b.PrependableBytes() < CheapPrepend && b.ReadableBytes() > 0 {
				// Prepend consumed space is only legal via Prepend, which
				// this sequence never calls.
				t.Fatalf("seed %d op %d: prepend reserve violated", seed, i)
			}
		}
	}
}
