// Package schedule implements the Schedule/Step/Task execution model and
// the Dispatcher that walks it: ordered steps of concurrent tasks,
// separated by an end-of-step barrier (spec.md §4.3, §5).
package schedule

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"splax/internal/algorithms"
	"splax/internal/device"
	"splax/internal/dispatch"
	"splax/internal/kernelcache"
	"splax/internal/registry"
	"splax/internal/status"
	"splax/internal/telemetry"
)

// Step is a set of tasks with no declared order between them; the
// dispatcher may run them concurrently (spec.md §4.3 "Model").
type Step struct {
	Tasks []*dispatch.Task
}

// Schedule is the ordered list of Steps a user submits (spec.md §3
// "Schedule" entity).
type Schedule struct {
	ID    uuid.UUID
	Label string
	Steps []Step
}

// New returns an empty, labeled schedule.
func New(label string) *Schedule {
	return &Schedule{ID: uuid.New(), Label: label}
}

// AddStep appends a step of tasks to the schedule.
func (s *Schedule) AddStep(tasks ...*dispatch.Task) {
	s.Steps = append(s.Steps, Step{Tasks: tasks})
}

// Dispatcher owns the process-wide registry and the per-backend command
// queues/allocators, and executes submitted schedules against them
// (spec.md §5 "Shared resources": registry and program cache are
// process-wide, initialized once, thereafter read-only").
type Dispatcher struct {
	Registry *registry.Registry
	Cache    *kernelcache.Cache

	cpuQueue   device.Queue
	cpuGeneral device.GeneralAllocator

	clQueue     device.Queue
	clAvailable bool
	clGeneral   device.GeneralAllocator

	// Workers bounds in-step task concurrency (SPEC_FULL.md §5); defaults
	// to runtime.GOMAXPROCS(0) in NewDispatcher.
	Workers int

	// Telemetry is an optional lifecycle event sink (SPEC_FULL.md
	// "Schedule telemetry"). A nil Telemetry is a silent no-op.
	Telemetry *telemetry.Broadcaster
}

// NewDispatcher wires a registry and program cache to the software
// device queue, and opportunistically to a real OpenCL queue when one
// is available (CLAvailable reports false in builds without the opencl
// tag, in which case every task runs on the software device).
func NewDispatcher(reg *registry.Registry, cache *kernelcache.Cache) *Dispatcher {
	d := &Dispatcher{
		Registry:   reg,
		Cache:      cache,
		cpuQueue:   device.NewSoftQueue(),
		cpuGeneral: device.NewGeneralAllocator(),
		Workers:    runtime.GOMAXPROCS(0),
	}

	if clQueue, err := device.NewCLQueue(); err == nil {
		d.clQueue = clQueue
		d.clAvailable = true
		if cl, ok := clQueue.(*device.CLQueue); ok {
			d.clGeneral = device.NewCLGeneralAllocator(cl)
		}
	}
	return d
}

// Submit executes every step of s in order, returning the first
// non-Ok status encountered (spec.md §7 "Propagation": a failed
// schedule reports the first failing task's key and status). Per the
// resolved Open Question in spec.md §9, submit is synchronous: it runs
// the schedule to completion (or first step failure) before returning,
// rather than merely committing it for later execution.
func (d *Dispatcher) Submit(s *Schedule) error {
	for _, step := range s.Steps {
		d.publish(telemetry.Event{Type: telemetry.StepStarted, ScheduleID: s.ID})
		if err := d.runStep(step); err != nil {
			d.publish(telemetry.Event{Type: telemetry.ScheduleFailed, ScheduleID: s.ID, Error: err.Error()})
			return err
		}
		d.publish(telemetry.Event{Type: telemetry.StepBarrier, ScheduleID: s.ID})
	}
	return nil
}

func (d *Dispatcher) publish(ev telemetry.Event) {
	if d.Telemetry == nil {
		return
	}
	ev.Timestamp = time.Now()
	d.Telemetry.Publish(ev)
}

// runStep executes every task in a step concurrently via an errgroup,
// collects the first error (fail-slow within the step: every task still
// runs even after one fails), then drains every queue touched in the
// step to enforce the end-of-step barrier before returning.
func (d *Dispatcher) runStep(step Step) error {
	g, _ := errgroup.WithContext(context.Background())
	if d.Workers > 0 {
		g.SetLimit(d.Workers)
	}
	var usedCL atomic.Bool

	for _, task := range step.Tasks {
		task := task
		g.Go(func() error {
			ctx, isCL, err := d.buildContext(task)
			if err != nil {
				task.Status = err
				return err
			}
			if isCL {
				usedCL.Store(true)
			}
			// ctx.Scratch is freshly allocated per task by buildContext;
			// Reset enforces that it cannot be retained past this call
			// (spec.md §4.6 invariant).
			defer ctx.Scratch.Reset()
			err = d.execute(ctx, task)
			task.Status = err
			errMsg := ""
			if err != nil {
				errMsg = err.Error()
			}
			d.publish(telemetry.Event{Type: telemetry.TaskCompleted, TaskID: task.ID, Key: task.Operation, Error: errMsg})
			return err
		})
	}

	stepErr := g.Wait()

	if err := d.cpuQueue.Drain(); err != nil && stepErr == nil {
		stepErr = err
	}
	if usedCL.Load() && d.clQueue != nil {
		if err := d.clQueue.Drain(); err != nil && stepErr == nil {
			stepErr = err
		}
	}
	return stepErr
}

// buildContext selects a backend for task, looks up its algorithm (with
// a fallback to the alternate backend), and assembles a DispatchContext.
func (d *Dispatcher) buildContext(task *dispatch.Task) (*dispatch.Context, bool, error) {
	primary, fallback := "__cpu", "__cl"
	if task.DeviceResident && d.clAvailable {
		primary, fallback = "__cl", "__cpu"
	}

	key := d.buildKey(task, primary)
	algo := d.Registry.Find(key)
	usedBackend := primary
	fallbackEligible := fallback != "__cl" || d.clAvailable
	if algo == nil && fallbackEligible {
		fallbackKey := d.buildKey(task, fallback)
		algo = d.Registry.Find(fallbackKey)
		usedBackend = fallback
	}
	if algo == nil {
		return nil, false, status.New(status.InvalidArgument, key, "unsupported-combination: no algorithm for key %q", key)
	}

	exec, ok := algo.(dispatch.Executable)
	if !ok {
		return nil, false, status.New(status.InvalidState, key, "registered algorithm %q is not executable", key)
	}

	isCL := usedBackend == "__cl"
	ctx := &dispatch.Context{Cache: d.Cache, Task: task}
	if isCL {
		ctx.Queue = d.clQueue
		ctx.General = d.clGeneral
		cl := d.clQueue.(*device.CLQueue)
		ctx.Scratch = device.NewCLScratchAllocator(cl)
	} else {
		ctx.Queue = d.cpuQueue
		ctx.General = d.cpuGeneral
		ctx.Scratch = device.NewScratchAllocator()
	}
	task.Resolved = exec
	return ctx, isCL, nil
}

// buildKey mirrors the grammar algorithms.BuildKey encodes: operator
// keys in declaration order when the task has operators (vxm/mxv carry
// both add and mult; m_reduce and typed v_eadd carry add alone), else
// the bare type code (pattern-only v_eadd, scenario 1 of spec.md §8).
func (d *Dispatcher) buildKey(task *dispatch.Task, backendSuffix string) string {
	var parts []string
	switch {
	case task.Add != nil && task.Mult != nil:
		parts = []string{task.Add.Key, task.Mult.Key}
	case task.Add != nil:
		parts = []string{task.Add.Key}
	default:
		parts = []string{task.Type.Code}
	}
	return algorithms.BuildKey(task.Operation, parts, backendSuffix)
}

func (d *Dispatcher) execute(ctx *dispatch.Context, task *dispatch.Task) error {
	if task.Resolved == nil {
		return status.New(status.InvalidState, "", "no algorithm resolved for task")
	}
	return task.Resolved.Execute(ctx)
}
