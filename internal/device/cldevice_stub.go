//go:build !opencl

package device

import (
	"splax/internal/kernelcache"
	"splax/internal/status"
)

// NewCLQueue reports NoAcceleration when the binary was built without
// the opencl tag (no OpenCL headers/library linked in). See
// cldevice.go for the real accelerator backend.
func NewCLQueue() (Queue, error) {
	return nil, status.New(status.NoAcceleration, "", "built without the opencl tag: no accelerator backend available")
}

// CLAvailable reports whether this build can open a real OpenCL queue.
func CLAvailable() bool { return false }

// CLQueue is an uninhabited placeholder in builds without the opencl
// tag, present only so callers can type-assert device.Queue against
// *device.CLQueue without a build-tag switch of their own; NewCLQueue
// never returns one, so the type assertion never succeeds here.
type CLQueue struct{}

// NewCLGeneralAllocator and NewCLScratchAllocator are unreachable in
// this build (NewCLQueue always fails first) but must exist so
// dispatcher wiring compiles identically with and without the opencl
// tag. See cldevice.go for the real implementations.
func NewCLGeneralAllocator(q *CLQueue) GeneralAllocator {
	panic("device: NewCLGeneralAllocator called in a build without the opencl tag")
}

func NewCLScratchAllocator(q *CLQueue) ScratchAllocator {
	panic("device: NewCLScratchAllocator called in a build without the opencl tag")
}

// Compiler is unreachable in this build for the same reason as the
// allocators above.
func (q *CLQueue) Compiler(native map[string]kernelcache.Kernel) kernelcache.CompileFunc {
	panic("device: CLQueue.Compiler called in a build without the opencl tag")
}
