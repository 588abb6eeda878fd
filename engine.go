// Package splax is a sparse linear-algebra execution engine: an
// algorithm registry dispatches vxm/mxv/v_eadd/m_reduce operations,
// specialized per operator/type/backend, over a schedule of steps run
// through a bounded worker pool (spec.md §1-§5).
//
// Engine is the top-level handle a caller builds once at process start
// and reuses for every schedule it submits thereafter — the registry
// and program cache it wires are process-wide and read-only from that
// point on (spec.md §5 "Shared resources").
package splax

import (
	"fmt"
	"log"
	"os"
	"strings"

	"splax/internal/algorithms"
	"splax/internal/cachestore"
	"splax/internal/descriptor"
	"splax/internal/kernelcache"
	"splax/internal/registry"
	"splax/internal/schedule"
	"splax/internal/status"
	"splax/internal/telemetry"
)

// Options configures an Engine at construction time. The zero value is
// a usable, minimal configuration: in-memory program cache, no
// persistence, no telemetry, GOMAXPROCS(0) workers.
type Options struct {
	// CachePath, if non-empty, opens a SQLite-backed persistent program
	// cache at this path (SPEC_FULL.md "Program cache persistence").
	// An empty path runs with a pure in-memory kernelcache.Cache.
	CachePath string

	// Workers bounds in-step task concurrency; 0 selects
	// runtime.GOMAXPROCS(0) (schedule.NewDispatcher's default).
	Workers int

	// Telemetry, if non-nil, receives every schedule/task lifecycle
	// event the dispatcher emits (SPEC_FULL.md "Schedule telemetry").
	Telemetry *telemetry.Broadcaster

	// Logger receives engine lifecycle diagnostics (cache opened,
	// registry size). Defaults to a logger writing to stderr with the
	// "splax: " prefix.
	Logger *log.Logger
}

// Engine wires the registry, program cache, and dispatcher described by
// spec.md §2-§5 into a single handle.
type Engine struct {
	Registry   *registry.Registry
	Cache      *kernelcache.Cache
	Dispatcher *schedule.Dispatcher

	cacheStore *cachestore.Store
	logger     *log.Logger
}

// New builds an Engine: registers every built-in (operator, type,
// backend) algorithm specialization, opens persistent cache storage if
// requested, and wires a Dispatcher over both. It is an error only if
// CachePath is set and the SQLite store cannot be opened; OpenCL
// unavailability is never an error, the dispatcher degrades to the
// software device transparently.
func New(opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "splax: ", log.LstdFlags)
	}

	var persist kernelcache.Persistence
	var store *cachestore.Store
	if opts.CachePath != "" {
		s, err := cachestore.Open(opts.CachePath)
		if err != nil {
			return nil, status.Wrap(status.Error, opts.CachePath, err, "engine: open program cache store")
		}
		store = s
		persist = s
		logger.Printf("opened persistent program cache at %s", opts.CachePath)
	}

	cache := kernelcache.NewCache(persist)
	reg := registry.New()
	if err := registerBuiltinAlgorithms(reg); err != nil {
		if store != nil {
			store.Close()
		}
		return nil, status.Wrap(status.InvalidState, "", err, "engine: register built-in algorithms")
	}
	logger.Printf("registered %d algorithm specializations", len(reg.Keys()))

	d := schedule.NewDispatcher(reg, cache)
	if opts.Workers > 0 {
		d.Workers = opts.Workers
	}
	d.Telemetry = opts.Telemetry

	return &Engine{
		Registry:   reg,
		Cache:      cache,
		Dispatcher: d,
		cacheStore: store,
		logger:     logger,
	}, nil
}

// Close releases the persistent cache store, if one was opened. An
// Engine with no CachePath has nothing to close.
func (e *Engine) Close() error {
	if e.cacheStore == nil {
		return nil
	}
	return e.cacheStore.Close()
}

// Submit runs s to completion (or first step failure) against the
// engine's dispatcher (spec.md §9, resolved Open Question: submit is
// synchronous).
func (e *Engine) Submit(s *schedule.Schedule) error {
	return e.Dispatcher.Submit(s)
}

// registerBuiltinAlgorithms registers every vxm/mxv/m_reduce/typed-v_eadd
// specialization over the built-in numeric semirings, plus the
// pattern-only v_eadd variant for every built-in type (spec.md §8
// scenario 1), each under both the software and the OpenCL backend key,
// whether or not an accelerator is present. Both keys run the identical staged sparse pipeline
// (internal/algorithms has one Algo implementation, not one per backend);
// what differs per dispatch is the mult/add kernel each step acquires and
// invokes through ctx.Queue — the __cpu key runs it natively in-process,
// the __cl key uploads operands to device buffers and runs the real
// compiled kernel (see internal/algorithms/kernels.go). Registering the
// __cl key lets device-resident tasks dispatch straight to that path
// without a fallback lookup.
func registerBuiltinAlgorithms(reg *registry.Registry) error {
	byType := make(map[string][2]descriptor.Op) // type code -> [plus, mult]
	for _, op := range descriptor.BuiltinOps() {
		t := op.ArgTypes[0]
		pair := byType[t]
		switch {
		case strings.HasPrefix(op.Key, "PLUS_"):
			pair[0] = op
		case strings.HasPrefix(op.Key, "MULT_"):
			pair[1] = op
		}
		byType[t] = pair
	}

	backends := []string{"__cpu", "__cl"}

	for _, t := range []descriptor.Type{descriptor.Int, descriptor.UInt, descriptor.Float, descriptor.Double} {
		pair := byType[t.Code]
		plus, mult := pair[0], pair[1]

		for _, backend := range backends {
			vxm := algorithms.NewVxM(plus, mult, backend)
			if err := reg.Add(vxm.Key(), vxm); err != nil {
				return err
			}
			mxv := algorithms.NewMxV(plus, mult, backend)
			if err := reg.Add(mxv.Key(), mxv); err != nil {
				return err
			}
			veaddTyped := algorithms.NewVEadd(&plus, t, backend)
			if err := reg.Add(veaddTyped.Key(), veaddTyped); err != nil {
				return err
			}
			mreduce := algorithms.NewMReduce(plus, backend)
			if err := reg.Add(mreduce.Key(), mreduce); err != nil {
				return err
			}
		}
	}

	for _, t := range descriptor.BuiltinTypes() {
		for _, backend := range backends {
			veaddPattern := algorithms.NewVEadd(nil, t, backend)
			if err := reg.Add(veaddPattern.Key(), veaddPattern); err != nil {
				return err
			}
		}
	}

	return nil
}

// WarmCache assembles and compiles a kernel specialization for every
// registered built-in type via the software device's native-entry
// compiler, exercising the program builder and cache (and, with a
// persistent store attached, writing each assembled source through to
// SQLite) ahead of any schedule submission. It is optional: algorithms
// execute correctly with a cold cache, this only avoids the first-use
// assembly cost and seeds cachestore for inspection.
func (e *Engine) WarmCache(templateName, templateSource string, entries map[string]dispatchKernel) error {
	native := make(map[string]func(args ...interface{}) error, len(entries))
	for name, fn := range entries {
		native[name] = fn
	}

	compile := func(tmpl, source string, names []string) (map[string]kernelcache.Kernel, error) {
		out := make(map[string]kernelcache.Kernel, len(names))
		for _, name := range names {
			fn, ok := native[name]
			if !ok {
				return nil, status.New(status.NotImplemented, tmpl, "no native entry point for %q", name)
			}
			out[name] = fn
		}
		return out, nil
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}

	for _, t := range descriptor.BuiltinTypes() {
		b := kernelcache.NewBuilder().SetName(templateName).SetSource(templateSource).AddType("T", t)
		if _, err := e.Cache.Acquire(b, compile, names); err != nil {
			return fmt.Errorf("warm cache for type %s: %w", t.Code, err)
		}
	}
	return nil
}

// dispatchKernel matches kernelcache.Kernel's signature without
// requiring callers of WarmCache to import kernelcache themselves.
type dispatchKernel = func(args ...interface{}) error
