// Package arena owns the fixed-size native buffers that cross the
// GStreamer smart-record boundary. Buffers are allocated in C memory
// (cgo pointer-passing rules forbid handing Go memory to the pipeline)
// and stay valid until the recording completion event consumes them.
//
// Callers never see raw buffer pointers. Allocate returns an opaque
// Handle backed by a go-pointer token; the raw pointer is only exposed
// through Handle.Native() at the trigger boundary, and echoed pointers
// are resolved back through LookupNative.
package arena

/*
#include <stdlib.h>
#include <string.h>
*/
import "C"

import (
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	pointer "github.com/mattn/go-pointer"
)

// slot is a single native allocation tracked by the arena.
type slot struct {
	buf      unsafe.Pointer
	size     int
	released bool
}

// Handle is an opaque reference to a native buffer owned by an Arena.
// The zero Handle is invalid.
type Handle struct {
	token unsafe.Pointer
}

// IsValid reports whether the handle references an allocation.
func (h Handle) IsValid() bool {
	return h.token != nil
}

// Arena allocates and releases fixed-layout native buffers with
// exactly-once release semantics. All methods are safe for concurrent
// use, although the intended usage is single-threaded (one run loop).
type Arena struct {
	mu       sync.Mutex
	byNative map[unsafe.Pointer]*slot

	allocs   uint64
	releases uint64
}

// New creates an empty arena.
func New() *Arena {
	return &Arena{
		byNative: make(map[unsafe.Pointer]*slot),
	}
}

// Allocate reserves size bytes of zero-initialized native memory and
// returns an opaque handle to it. The buffer remains valid until
// Release is called with the same handle.
func (a *Arena) Allocate(size int) (Handle, error) {
	if size <= 0 {
		return Handle{}, fmt.Errorf("arena: invalid allocation size %d", size)
	}

	buf := C.calloc(1, C.size_t(size))
	if buf == nil {
		return Handle{}, fmt.Errorf("arena: native allocation of %d bytes failed", size)
	}

	s := &slot{buf: buf, size: size}

	a.mu.Lock()
	a.byNative[buf] = s
	a.allocs++
	a.mu.Unlock()

	slog.Debug("arena: buffer allocated", "size_bytes", size)

	return Handle{token: pointer.Save(s)}, nil
}

// Release frees the buffer behind the handle. Releasing a handle twice,
// or a handle the arena does not own, returns an error; the buffer is
// freed exactly once either way. Callers on shutdown paths log and
// swallow the error; cleanup must not fail the session.
func (a *Arena) Release(h Handle) error {
	if !h.IsValid() {
		return fmt.Errorf("arena: release of invalid handle")
	}

	v := pointer.Restore(h.token)
	s, ok := v.(*slot)
	if !ok || s == nil {
		return fmt.Errorf("arena: release of unknown handle")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if s.released {
		return fmt.Errorf("arena: double release of %d-byte buffer", s.size)
	}
	s.released = true
	delete(a.byNative, s.buf)
	a.releases++

	C.free(s.buf)
	s.buf = nil
	pointer.Unref(h.token)

	slog.Debug("arena: buffer released", "size_bytes", s.size)

	return nil
}

// Bytes returns a writable view over the buffer behind the handle.
// The view must not be retained past Release.
func (a *Arena) Bytes(h Handle) ([]byte, error) {
	if !h.IsValid() {
		return nil, fmt.Errorf("arena: bytes of invalid handle")
	}

	v := pointer.Restore(h.token)
	s, ok := v.(*slot)
	if !ok || s == nil {
		return nil, fmt.Errorf("arena: bytes of unknown handle")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if s.released {
		return nil, fmt.Errorf("arena: bytes of released buffer")
	}
	return unsafe.Slice((*byte)(s.buf), s.size), nil
}

// Native returns the raw buffer pointer behind the handle for the
// trigger boundary. Returns nil if the handle is invalid or released.
func (a *Arena) Native(h Handle) unsafe.Pointer {
	if !h.IsValid() {
		return nil
	}

	v := pointer.Restore(h.token)
	s, ok := v.(*slot)
	if !ok || s == nil {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if s.released {
		return nil
	}
	return s.buf
}

// LookupNative resolves a raw pointer echoed back by the pipeline to a
// copy of the buffer contents. The copy decouples decoding from the
// buffer lifetime: the caller may release the handle immediately after.
func (a *Arena) LookupNative(p unsafe.Pointer) ([]byte, bool) {
	if p == nil {
		return nil, false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.byNative[p]
	if !ok || s.released {
		return nil, false
	}

	out := make([]byte, s.size)
	copy(out, unsafe.Slice((*byte)(s.buf), s.size))
	return out, true
}

// Counts returns the lifetime allocation and release counters. Used by
// tests to verify the allocate-count == release-count invariant on
// every terminal path.
func (a *Arena) Counts() (allocs, releases uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocs, a.releases
}

// Live returns the number of buffers currently allocated and not yet
// released.
func (a *Arena) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.byNative)
}
