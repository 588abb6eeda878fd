package kernelcache

import (
	"strings"
	"sync"
	"testing"

	"splax/internal/descriptor"
	"splax/internal/status"
)

func sampleBuilder() *Builder {
	return NewBuilder().
		SetName("vxm_masked").
		SetSource("KERNEL_BODY").
		AddDefine("BLOCK_SIZE", 256).
		AddType("TYPE", descriptor.Float).
		AddOp("OP_MULT", descriptor.Op{
			Key: "MULT_FLOAT", Kind: descriptor.KindBinary,
			RetType: "FLOAT", ArgTypes: []string{"FLOAT", "FLOAT"}, Body: "return a * b;",
		})
}

func TestAssembleOrderDefinesThenTypesThenOps(t *testing.T) {
	src, err := sampleBuilder().Assemble()
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	defineIdx := strings.Index(src, "#define BLOCK_SIZE")
	typeIdx := strings.Index(src, "typedef float TYPE;")
	opIdx := strings.Index(src, "static inline FLOAT OP_MULT")
	bodyIdx := strings.Index(src, "KERNEL_BODY")
	if !(defineIdx < typeIdx && typeIdx < opIdx && opIdx < bodyIdx) {
		t.Fatalf("expected defines < types < ops < body, got source:\n%s", src)
	}
}

func TestDuplicateAliasIsAnError(t *testing.T) {
	b := NewBuilder().SetName("t").SetSource("x").
		AddType("TYPE", descriptor.Float).
		AddType("TYPE", descriptor.Double)
	_, err := b.Assemble()
	if err == nil {
		t.Fatal("expected duplicate-alias error")
	}
	var se *status.Error
	if !asStatusError(err, &se) || se.Code != status.CompilationError {
		t.Fatalf("expected CompilationError, got %v", err)
	}
}

func TestUnknownTemplateError(t *testing.T) {
	b := NewBuilder().SetName("missing")
	_, err := b.Assemble()
	if err == nil {
		t.Fatal("expected unknown-template error")
	}
}

func TestKeyEqualForEquivalentBuilders(t *testing.T) {
	k1 := sampleBuilder().Key()
	k2 := sampleBuilder().Key()
	if k1 != k2 {
		t.Fatalf("expected equal keys, got %q vs %q", k1, k2)
	}
}

func TestKeyDiffersWhenDefineChanges(t *testing.T) {
	k1 := sampleBuilder().Key()
	k2 := sampleBuilder().AddDefine("BLOCK_SIZE", 512).Key()
	if k1 == k2 {
		t.Fatal("expected different keys after changing a define")
	}
}

func stubCompile(_, _ string, entries []string) (map[string]Kernel, error) {
	out := make(map[string]Kernel, len(entries))
	for _, e := range entries {
		out[e] = func(args ...interface{}) error { return nil }
	}
	return out, nil
}

func TestCacheAcquireReturnsSameArtifactForEqualKeys(t *testing.T) {
	cache := NewCache(nil)
	p1, err := cache.Acquire(sampleBuilder(), stubCompile, []string{"mult"})
	if err != nil {
		t.Fatalf("acquire 1: %v", err)
	}
	p2, err := cache.Acquire(sampleBuilder(), stubCompile, []string{"mult"})
	if err != nil {
		t.Fatalf("acquire 2: %v", err)
	}
	if p1 != p2 {
		t.Fatal("expected identical cached artifact for equal keys")
	}
}

func TestCacheAcquireDistinctForDifferentDefines(t *testing.T) {
	cache := NewCache(nil)
	p1, _ := cache.Acquire(sampleBuilder(), stubCompile, []string{"mult"})
	p2, _ := cache.Acquire(sampleBuilder().AddDefine("BLOCK_SIZE", 512), stubCompile, []string{"mult"})
	if p1 == p2 {
		t.Fatal("expected distinct artifacts after changing a define")
	}
}

func TestCacheNegativeResultIsSticky(t *testing.T) {
	cache := NewCache(nil)
	failingCompile := func(_, _ string, _ []string) (map[string]Kernel, error) {
		return nil, status.New(status.CompilationError, "", "boom")
	}
	_, err1 := cache.Acquire(sampleBuilder(), failingCompile, []string{"mult"})
	_, err2 := cache.Acquire(sampleBuilder(), failingCompile, []string{"mult"})
	if err1 == nil || err2 == nil {
		t.Fatal("expected both acquires to fail")
	}
}

func TestCacheAcquireAttachesCPUIRDump(t *testing.T) {
	cache := NewCache(nil)
	p, err := cache.Acquire(sampleBuilder(), stubCompile, []string{"mult"})
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !strings.Contains(p.IRDump, "define float @OP_MULT") {
		t.Fatalf("expected IR dump to declare OP_MULT, got:\n%s", p.IRDump)
	}
}

func TestCacheAcquireConcurrentDeduplicates(t *testing.T) {
	cache := NewCache(nil)
	var calls int
	var mu sync.Mutex
	countingCompile := func(name, source string, entries []string) (map[string]Kernel, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return stubCompile(name, source, entries)
	}

	var wg sync.WaitGroup
	results := make([]*CompiledProgram, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := cache.Acquire(sampleBuilder(), countingCompile, []string{"mult"})
			if err != nil {
				t.Errorf("acquire: %v", err)
			}
			results[i] = p
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			t.Fatalf("expected all concurrent acquires to share one artifact")
		}
	}
}

func asStatusError(err error, target **status.Error) bool {
	se, ok := err.(*status.Error)
	if ok {
		*target = se
	}
	return ok
}
