// Package device defines the buffer allocators and compute-queue
// abstraction used by every primitive and algorithm (spec.md §4.6,
// §2 item 3), plus the two concrete backends: a default pure-Go
// software device and, under the opencl build tag, a real OpenCL
// accelerator.
package device

import (
	"sync"

	"github.com/dustin/go-humanize"
)

// Buffer is an opaque handle to a region of device memory. The software
// device backs it with a Go byte slice; the OpenCL device backs it with
// a cl_mem handle (see cldevice.go, opencl build).
type Buffer interface {
	// Size returns the buffer's length in bytes.
	Size() int
	// Read copies the buffer's contents into dst, blocking until the
	// transfer completes. len(dst) must equal Size().
	Read(dst []byte) error
	// Write copies src into the buffer, blocking until the transfer
	// completes. len(src) must equal Size().
	Write(src []byte) error
}

// GeneralAllocator backs long-lived buffers for the lifetime of an
// operand (spec.md §4.6 "General allocator"). It is safe for concurrent
// use; implementations may serialize allocation internally.
type GeneralAllocator interface {
	Alloc(size int) (Buffer, error)
	// AllocPaired returns two buffers carved from one underlying region,
	// improving locality when both are always used together (e.g. a
	// COO's cols and vals arrays).
	AllocPaired(sizeA, sizeB int) (Buffer, Buffer, error)
}

// ScratchAllocator is a bump allocator reset at the end of each task; it
// supplies working buffers (offsets, histograms, scan temporaries) that
// must not escape the task that allocated them (spec.md §4.6 invariant).
type ScratchAllocator interface {
	Alloc(size int) (Buffer, error)
	AllocPaired(sizeA, sizeB int) (Buffer, Buffer, error)
	// Reset releases every buffer allocated since the last Reset,
	// enforcing the "scratch buffers must not escape the task" rule at
	// the boundary between tasks.
	Reset()
}

// softBuffer is the software device's Buffer: a plain byte slice.
type softBuffer struct{ data []byte }

func (b *softBuffer) Size() int { return len(b.data) }

// Bytes exposes the underlying storage for primitives to read/write
// directly; only meaningful for software buffers.
func (b *softBuffer) Bytes() []byte { return b.data }

func (b *softBuffer) Read(dst []byte) error {
	copy(dst, b.data)
	return nil
}

func (b *softBuffer) Write(src []byte) error {
	copy(b.data, src)
	return nil
}

// softGeneralAllocator is the default long-lived allocator: every Alloc
// call makes a fresh Go slice. AllocPaired simulates co-location by
// carving both buffers from one backing array, mirroring the real
// allocator's intent without needing actual device memory.
type softGeneralAllocator struct {
	mu        sync.Mutex
	allocated int64
}

// NewGeneralAllocator returns the software device's general allocator.
func NewGeneralAllocator() GeneralAllocator {
	return &softGeneralAllocator{}
}

func (a *softGeneralAllocator) Alloc(size int) (Buffer, error) {
	a.mu.Lock()
	a.allocated += int64(size)
	a.mu.Unlock()
	return &softBuffer{data: make([]byte, size)}, nil
}

func (a *softGeneralAllocator) AllocPaired(sizeA, sizeB int) (Buffer, Buffer, error) {
	a.mu.Lock()
	a.allocated += int64(sizeA + sizeB)
	a.mu.Unlock()
	backing := make([]byte, sizeA+sizeB)
	return &softBuffer{data: backing[:sizeA]}, &softBuffer{data: backing[sizeA : sizeA+sizeB]}, nil
}

// Allocated returns a human-readable running total of bytes allocated,
// e.g. "12.4 MB", for operational logging (SPEC_FULL.md §4.6).
func (a *softGeneralAllocator) Allocated() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return humanize.Bytes(uint64(a.allocated))
}

// softScratchAllocator is the software device's per-task scratch
// allocator: a simple bump allocator over a backing slice that grows as
// needed; Reset moves the bump offset back to zero and keeps the slice.
type softScratchAllocator struct {
	mu      sync.Mutex
	backing []byte
	offset  int
}

// NewScratchAllocator returns the software device's scratch allocator.
func NewScratchAllocator() ScratchAllocator {
	return &softScratchAllocator{}
}

func (a *softScratchAllocator) Alloc(size int) (Buffer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.offset+size > len(a.backing) {
		grown := make([]byte, a.offset+size)
		copy(grown, a.backing[:a.offset])
		a.backing = grown
	} else if cap(a.backing) < a.offset+size {
		a.backing = append(a.backing, make([]byte, a.offset+size-len(a.backing))...)
	}
	buf := a.backing[a.offset : a.offset+size]
	a.offset += size
	return &softBuffer{data: buf}, nil
}

func (a *softScratchAllocator) AllocPaired(sizeA, sizeB int) (Buffer, Buffer, error) {
	bufA, err := a.Alloc(sizeA)
	if err != nil {
		return nil, nil, err
	}
	bufB, err := a.Alloc(sizeB)
	if err != nil {
		return nil, nil, err
	}
	return bufA, bufB, nil
}

// Reset truncates the bump offset back to zero; the backing array is
// kept (and reused) across tasks to avoid reallocating every step.
func (a *softScratchAllocator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.offset = 0
}
