package kernelcache

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"splax/internal/status"
)

// Kernel is a callable entry point returned by a compiled program.
type Kernel func(args ...interface{}) error

// CompiledProgram is the cached artifact for one (template, defines,
// types, ops) specialization: its source hash (the cache key itself, per
// spec.md §3 "a cached compiled program's key uniquely determines its
// source text"), its compiled entry points, and a diagnostic LLVM IR
// dump (SPEC_FULL.md §4.1), attached whichever backend compiled it.
type CompiledProgram struct {
	Key      string
	Source   string
	Entries  map[string]Kernel
	IRDump   string
}

// MakeKernel returns the named entry point, or an error if it was never
// compiled into this program.
func (p *CompiledProgram) MakeKernel(entry string) (Kernel, error) {
	k, ok := p.Entries[entry]
	if !ok {
		return nil, status.New(status.InvalidArgument, p.Key, "no such entry point %q in program %q", entry, p.Key)
	}
	return k, nil
}

// CompileFunc turns assembled source text into entry points. Each
// device backend supplies its own: cldevice submits the text to the
// OpenCL compiler, softdevice looks up native Go implementations keyed
// by the same operator names that appear in source.
type CompileFunc func(templateName, source string, entries []string) (map[string]Kernel, error)

// Persistence is the optional cross-process cache store (SPEC_FULL.md
// §2 item 9), implemented by internal/cachestore against SQLite.
// Cache never requires one; a nil Persistence degrades to a pure
// in-memory cache.
type Persistence interface {
	Load(key string) (source string, ok bool, err error)
	Store(key, templateName, source string) error
}

// Cache is the process-wide, keyed store of compiled programs
// (spec.md §4.1, §3, §5: "process-wide, initialized once, thereafter
// read-only"). A negative result (failed compile) is cached too, so
// repeated acquires of an unfixable specialization fail fast
// (spec.md §7: "cached as a negative result against the program cache
// key").
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	group   singleflight.Group
	persist Persistence
}

type cacheEntry struct {
	program *CompiledProgram
	err     error
}

// NewCache returns an empty Cache. persist may be nil.
func NewCache(persist Persistence) *Cache {
	return &Cache{
		entries: make(map[string]*cacheEntry),
		persist: persist,
	}
}

// Acquire computes the builder's key, returns the cached program on a
// hit, and otherwise assembles, compiles via compile, and caches the
// result (success or failure) on a miss. Concurrent Acquire calls for
// the same key share one compile via singleflight, matching spec.md's
// requirement that acquire be idempotent on success without mandating
// how concurrent callers are serialized.
func (c *Cache) Acquire(b *Builder, compile CompileFunc, entries []string) (*CompiledProgram, error) {
	key := b.Key()

	c.mu.RLock()
	if e, ok := c.entries[key]; ok {
		c.mu.RUnlock()
		return e.program, e.err
	}
	c.mu.RUnlock()

	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		return c.compileAndStore(b, key, compile, entries)
	})
	if err != nil {
		return nil, err
	}
	return result.(*CompiledProgram), nil
}

func (c *Cache) compileAndStore(b *Builder, key string, compile CompileFunc, entries []string) (*CompiledProgram, error) {
	c.mu.RLock()
	if e, ok := c.entries[key]; ok {
		c.mu.RUnlock()
		return e.program, e.err
	}
	c.mu.RUnlock()

	source, err := b.Assemble()
	if err == nil {
		if src, ok, loadErr := c.loadPersisted(key); loadErr == nil && ok {
			source = src
		}
	}

	var program *CompiledProgram
	if err == nil {
		var compiled map[string]Kernel
		compiled, err = compile(b.templateName, source, entries)
		if err == nil {
			program = &CompiledProgram{
				Key:     key,
				Source:  source,
				Entries: compiled,
				IRDump:  buildCPUIR(b.templateName, b.ops),
			}
		} else {
			err = status.Wrap(status.CompilationError, key, err, "compile-failed for template %q", b.templateName)
		}
	}

	c.mu.Lock()
	c.entries[key] = &cacheEntry{program: program, err: err}
	c.mu.Unlock()

	if err == nil && c.persist != nil {
		_ = c.persist.Store(key, b.templateName, source)
	}

	return program, err
}

func (c *Cache) loadPersisted(key string) (string, bool, error) {
	if c.persist == nil {
		return "", false, nil
	}
	return c.persist.Load(key)
}

// Has reports whether key is already cached (hit or negative result),
// matching the registry's has/find symmetry property from spec.md §8.
func (c *Cache) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[key]
	return ok
}
