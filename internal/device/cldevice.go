//go:build opencl

package device

/*
#cgo linux LDFLAGS: -lOpenCL
#cgo darwin LDFLAGS: -framework OpenCL
#cgo windows LDFLAGS: -lOpenCL

#ifdef __APPLE__
#include <OpenCL/opencl.h>
#else
#include <CL/cl.h>
#endif
#include <stdlib.h>
*/
import "C"

import (
	"sync"
	"unsafe"

	"splax/internal/kernelcache"
	"splax/internal/status"
)

// clBuffer wraps a cl_mem handle; Size is tracked separately since
// OpenCL has no portable "size of this cl_mem" query. queue is the
// command queue Read/Write enqueue their blocking transfers on.
type clBuffer struct {
	mem   C.cl_mem
	size  int
	queue C.cl_command_queue
}

func (b *clBuffer) Size() int { return b.size }

// Read blocks until the buffer's contents have been copied into dst.
func (b *clBuffer) Read(dst []byte) error {
	if len(dst) == 0 {
		return nil
	}
	if C.clEnqueueReadBuffer(b.queue, b.mem, C.CL_TRUE, 0, C.size_t(len(dst)), unsafe.Pointer(&dst[0]), 0, nil, nil) != C.CL_SUCCESS {
		return status.New(status.Error, "", "clEnqueueReadBuffer failed")
	}
	return nil
}

// Write blocks until src has been copied into the buffer.
func (b *clBuffer) Write(src []byte) error {
	if len(src) == 0 {
		return nil
	}
	if C.clEnqueueWriteBuffer(b.queue, b.mem, C.CL_TRUE, 0, C.size_t(len(src)), unsafe.Pointer(&src[0]), 0, nil, nil) != C.CL_SUCCESS {
		return status.New(status.Error, "", "clEnqueueWriteBuffer failed")
	}
	return nil
}

// CLAvailable reports whether this build links a real OpenCL runtime.
func CLAvailable() bool { return true }

// CLQueue is the real accelerator backend: a single in-order OpenCL
// command queue on the first available GPU device, matching spec.md
// §5's "Kernel enqueues on a single command queue are serialized by the
// queue" guarantee.
type CLQueue struct {
	mu       sync.Mutex
	platform C.cl_platform_id
	device   C.cl_device_id
	context  C.cl_context
	queue    C.cl_command_queue
	pending  int
}

// NewCLQueue opens the first OpenCL platform/GPU device pair and
// creates an in-order command queue on it.
func NewCLQueue() (Queue, error) {
	var platform C.cl_platform_id
	var numPlatforms C.cl_uint
	if C.clGetPlatformIDs(1, &platform, &numPlatforms) != C.CL_SUCCESS || numPlatforms == 0 {
		return nil, status.New(status.NoAcceleration, "", "no OpenCL platform found")
	}

	var device C.cl_device_id
	var numDevices C.cl_uint
	if C.clGetDeviceIDs(platform, C.CL_DEVICE_TYPE_GPU, 1, &device, &numDevices) != C.CL_SUCCESS || numDevices == 0 {
		return nil, status.New(status.NoAcceleration, "", "no OpenCL GPU device found")
	}

	var errCode C.cl_int
	context := C.clCreateContext(nil, 1, &device, nil, nil, &errCode)
	if errCode != C.CL_SUCCESS {
		return nil, status.New(status.NoAcceleration, "", "clCreateContext failed: %d", int(errCode))
	}

	queue := C.clCreateCommandQueue(context, device, 0, &errCode)
	if errCode != C.CL_SUCCESS {
		C.clReleaseContext(context)
		return nil, status.New(status.NoAcceleration, "", "clCreateCommandQueue failed: %d", int(errCode))
	}

	return &CLQueue{platform: platform, device: device, context: context, queue: queue}, nil
}

func (q *CLQueue) Backend() string { return "__cl" }

// Enqueue submits work onto the command queue. Real kernel submission
// happens inside work (via the Kernel handles CompileCL produces for
// the program cache's OpenCL compile path); Enqueue itself only tracks
// that something is in flight for Drain to wait on.
func (q *CLQueue) Enqueue(work func() error) error {
	q.mu.Lock()
	q.pending++
	q.mu.Unlock()
	return work()
}

// Drain calls clFinish, blocking until every previously enqueued
// command on this queue has completed — the end-of-step barrier of
// spec.md §5.
func (q *CLQueue) Drain() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if C.clFinish(q.queue) != C.CL_SUCCESS {
		return status.New(status.Error, "", "clFinish failed")
	}
	q.pending = 0
	return nil
}

// clGeneralAllocator backs GeneralAllocator with real cl_mem buffers.
type clGeneralAllocator struct {
	context C.cl_context
	queue   C.cl_command_queue
}

// NewCLGeneralAllocator returns a GeneralAllocator backed by the given
// queue's OpenCL context.
func NewCLGeneralAllocator(q *CLQueue) GeneralAllocator {
	return &clGeneralAllocator{context: q.context, queue: q.queue}
}

func (a *clGeneralAllocator) Alloc(size int) (Buffer, error) {
	var errCode C.cl_int
	mem := C.clCreateBuffer(a.context, C.CL_MEM_READ_WRITE, C.size_t(size), nil, &errCode)
	if errCode != C.CL_SUCCESS {
		return nil, status.New(status.OutOfMemory, "", "clCreateBuffer(%d) failed: %d", size, int(errCode))
	}
	return &clBuffer{mem: mem, size: size, queue: a.queue}, nil
}

// AllocPaired creates one backing cl_mem sized sizeA+sizeB and returns
// two sub-region views via cl_buffer_region, improving locality when
// both halves are always used together (spec.md §4.6).
func (a *clGeneralAllocator) AllocPaired(sizeA, sizeB int) (Buffer, Buffer, error) {
	var errCode C.cl_int
	total := C.clCreateBuffer(a.context, C.CL_MEM_READ_WRITE, C.size_t(sizeA+sizeB), nil, &errCode)
	if errCode != C.CL_SUCCESS {
		return nil, nil, status.New(status.OutOfMemory, "", "clCreateBuffer(%d) failed: %d", sizeA+sizeB, int(errCode))
	}

	regionA := C.cl_buffer_region{origin: 0, size: C.size_t(sizeA)}
	subA := C.clCreateSubBuffer(total, C.CL_MEM_READ_WRITE, C.CL_BUFFER_CREATE_TYPE_REGION,
		unsafe.Pointer(&regionA), &errCode)
	if errCode != C.CL_SUCCESS {
		return nil, nil, status.New(status.OutOfMemory, "", "clCreateSubBuffer(a) failed: %d", int(errCode))
	}

	regionB := C.cl_buffer_region{origin: C.size_t(sizeA), size: C.size_t(sizeB)}
	subB := C.clCreateSubBuffer(total, C.CL_MEM_READ_WRITE, C.CL_BUFFER_CREATE_TYPE_REGION,
		unsafe.Pointer(&regionB), &errCode)
	if errCode != C.CL_SUCCESS {
		return nil, nil, status.New(status.OutOfMemory, "", "clCreateSubBuffer(b) failed: %d", int(errCode))
	}

	return &clBuffer{mem: subA, size: sizeA, queue: a.queue}, &clBuffer{mem: subB, size: sizeB, queue: a.queue}, nil
}

// clScratchAllocator is a per-task bump allocator over real device
// memory: it just delegates to clGeneralAllocator and tracks everything
// it hands out so Reset can release it, honoring the "scratch buffers
// must not escape the task" invariant (spec.md §4.6).
type clScratchAllocator struct {
	general *clGeneralAllocator
	issued  []C.cl_mem
}

// NewCLScratchAllocator returns a ScratchAllocator backed by the given
// queue's OpenCL context.
func NewCLScratchAllocator(q *CLQueue) ScratchAllocator {
	return &clScratchAllocator{general: &clGeneralAllocator{context: q.context, queue: q.queue}}
}

func (a *clScratchAllocator) Alloc(size int) (Buffer, error) {
	buf, err := a.general.Alloc(size)
	if err != nil {
		return nil, err
	}
	a.issued = append(a.issued, buf.(*clBuffer).mem)
	return buf, nil
}

func (a *clScratchAllocator) AllocPaired(sizeA, sizeB int) (Buffer, Buffer, error) {
	bufA, bufB, err := a.general.AllocPaired(sizeA, sizeB)
	if err != nil {
		return nil, nil, err
	}
	a.issued = append(a.issued, bufA.(*clBuffer).mem, bufB.(*clBuffer).mem)
	return bufA, bufB, nil
}

// Reset releases every cl_mem issued since the last Reset.
func (a *clScratchAllocator) Reset() {
	for _, mem := range a.issued {
		C.clReleaseMemObject(mem)
	}
	a.issued = a.issued[:0]
}

// Compiler submits the assembled source to the real OpenCL compiler via
// CompileCL; native is unused here (unlike the software device, this
// backend always has a real compiled-kernel path to fall back to).
func (q *CLQueue) Compiler(native map[string]kernelcache.Kernel) kernelcache.CompileFunc {
	return func(templateName, source string, entries []string) (map[string]kernelcache.Kernel, error) {
		compiled, err := CompileCL(q, source, entries)
		if err != nil {
			return nil, err
		}
		out := make(map[string]kernelcache.Kernel, len(compiled))
		for name, fn := range compiled {
			out[name] = kernelcache.Kernel(fn)
		}
		return out, nil
	}
}
