package device

import "splax/internal/kernelcache"

// Queue is the command-queue abstraction a DispatchContext carries
// (spec.md §3, §4.3): it accepts kernel submissions, which "return
// after submission" per spec.md §5, and a Drain that blocks until the
// queue has been fully executed — the end-of-step barrier.
type Queue interface {
	// Backend returns the dispatch key suffix this queue answers to:
	// "__cpu" or "__cl".
	Backend() string
	// Enqueue submits work to the queue. The software device executes
	// synchronously (there is nothing to overlap); the OpenCL device
	// enqueues the underlying clEnqueueNDRangeKernel/clEnqueueReadBuffer
	// call and returns immediately.
	Enqueue(work func() error) error
	// Drain blocks until every previously enqueued submission has
	// completed, implementing the step barrier of spec.md §5.
	Drain() error
	// Compiler returns the kernelcache.CompileFunc this backend feeds
	// to Cache.Acquire (spec.md §4.1 "submits to the compute runtime").
	// native supplies, per entry name, the software implementation of
	// the same operator: the software device's Compiler looks entries
	// up there directly, while the OpenCL device submits the assembled
	// source to the real compiler and ignores native entirely.
	Compiler(native map[string]kernelcache.Kernel) kernelcache.CompileFunc
}

// General and Scratch name the two allocators a Queue's owner attaches
// to a DispatchContext (spec.md §4.6).
type Allocators struct {
	General GeneralAllocator
	Scratch ScratchAllocator
}
