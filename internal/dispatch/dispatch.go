// Package dispatch defines the per-task execution context and the task
// description every algorithm consumes, shared by the algorithms and
// schedule packages without either depending on the other (spec.md §3
// "DispatchContext").
package dispatch

import (
	"github.com/google/uuid"

	"splax/internal/descriptor"
	"splax/internal/device"
	"splax/internal/kernelcache"
	"splax/internal/storage"
)

// Task is one unit of scheduled work: an operation name, its operand
// references, and the operator/type descriptors selecting its
// algorithm, matching the Task entity of spec.md §3.
type Task struct {
	ID         uuid.UUID
	Operation  string
	A          *storage.COO
	B          *storage.COO
	Mask       *storage.COO
	Complement bool
	Type       descriptor.Type
	Add        *descriptor.Op
	Mult       *descriptor.Op

	// Output receives the result COO once an algorithm's Execute
	// returns Ok; left nil on any non-Ok status.
	Output *storage.COO

	// Status is filled in by the dispatcher after Execute returns,
	// recording the first failing task's status per spec.md §7.
	Status error

	// DeviceResident marks an operand pair as already living on the
	// accelerator, which is what lets the dispatcher prefer the "__cl"
	// backend over "__cpu" for this task (spec.md §4.3 step 1).
	DeviceResident bool

	// Resolved is set by the dispatcher once it has picked an algorithm
	// for this task, so Submit's step loop doesn't repeat the registry
	// lookup when actually invoking Execute.
	Resolved Executable
}

// ElementType returns the task's declared element type, used by
// algorithms to tag their output operand.
func (t *Task) ElementType() descriptor.Type { return t.Type }

// Context is the DispatchContext of spec.md §3: the command queue,
// scratch allocator, and the task currently executing, handed to an
// algorithm's Execute method. It is stack-allocated per task by the
// dispatcher and must not be retained past the call.
type Context struct {
	Queue   device.Queue
	General device.GeneralAllocator
	Scratch device.ScratchAllocator
	Cache   *kernelcache.Cache
	Task    *Task
}

// Executable is the contract an algorithm registered in the registry
// must additionally satisfy beyond registry.Algo's Key(), so that
// registry itself never needs to import dispatch.
type Executable interface {
	Key() string
	Execute(ctx *Context) error
}
