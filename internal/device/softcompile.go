package device

import (
	"splax/internal/kernelcache"
	"splax/internal/status"
)

// Compiler is the software device's kernelcache.CompileFunc: rather
// than compiling source text, it looks up a native Go implementation
// already registered under each requested entry name. This is what lets
// a specialization's assembled source still flow through the program
// cache (and persist via cachestore) even though the CPU backend never
// actually executes device code — spec.md's "a cached compiled
// program's key uniquely determines its source text" holds regardless
// of whether the entry points are interpreted or compiled.
func (q *SoftQueue) Compiler(native map[string]kernelcache.Kernel) kernelcache.CompileFunc {
	return func(templateName, source string, names []string) (map[string]kernelcache.Kernel, error) {
		out := make(map[string]kernelcache.Kernel, len(names))
		for _, name := range names {
			k, ok := native[name]
			if !ok {
				return nil, status.New(status.NotImplemented, templateName, "no software entry point registered for %q", name)
			}
			out[name] = k
		}
		return out, nil
	}
}
