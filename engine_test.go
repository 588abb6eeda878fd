package splax

import (
	"path/filepath"
	"testing"

	"splax/internal/descriptor"
	"splax/internal/dispatch"
	"splax/internal/primitives"
	"splax/internal/schedule"
	"splax/internal/storage"
)

func TestNewRegistersEveryBuiltinSpecialization(t *testing.T) {
	e, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	for _, key := range []string{
		"vxm_PLUS_INT_MULT_INT__cpu",
		"mxv_PLUS_FLOAT_MULT_FLOAT__cpu",
		"v_eadd_PLUS_DOUBLE__cpu",
		"v_eadd_INT__cpu",
		"m_reduce_PLUS_UINT__cpu",
		"vxm_PLUS_INT_MULT_INT__cl",
	} {
		if !e.Registry.Has(key) {
			t.Errorf("registry missing expected key %q", key)
		}
	}
}

func TestEngineSubmitRunsVxMScenario(t *testing.T) {
	e, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	packInts := func(vals []int32) []byte {
		floats := make([]float64, len(vals))
		for i, v := range vals {
			floats[i] = float64(v)
		}
		packed, err := primitives.Pack(descriptor.Int, floats)
		if err != nil {
			t.Fatalf("Pack: %v", err)
		}
		return packed
	}

	a := &storage.COO{Rows: []uint32{0, 2}, Vals: packInts([]int32{1, 2}), Type: descriptor.Int, NRows: 1, NCols: 3}
	b := &storage.COO{
		Rows: []uint32{0, 0, 2}, Cols: []uint32{1, 2, 0}, Vals: packInts([]int32{3, 4, 5}),
		Type: descriptor.Int, NRows: 3, NCols: 3,
	}
	plus := descriptor.Op{Key: "PLUS_INT", Kind: descriptor.KindBinary, ArgTypes: []string{"INT", "INT"}, Eval: func(x, y float64) float64 { return x + y }}
	mult := descriptor.Op{Key: "MULT_INT", Kind: descriptor.KindBinary, ArgTypes: []string{"INT", "INT"}, Eval: func(x, y float64) float64 { return x * y }}
	task := &dispatch.Task{Operation: "vxm", A: a, B: b, Type: descriptor.Int, Add: &plus, Mult: &mult}

	s := schedule.New("engine-scenario")
	s.AddStep(task)

	if err := e.Submit(s); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	vals, err := primitives.Unpack(task.Output.Type, task.Output.Vals)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	want := []float64{10, 3, 4}
	for i := range want {
		if vals[i] != want[i] {
			t.Fatalf("vals = %v, want %v", vals, want)
		}
	}
}

func TestEngineWithPersistentCacheWarmsWithoutError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	e, err := New(Options{CachePath: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	const tmpl = "// kernel body placeholder\n"
	entries := map[string]dispatchKernel{
		"noop": func(args ...interface{}) error { return nil },
	}
	if err := e.WarmCache("diagnostic", tmpl, entries); err != nil {
		t.Fatalf("WarmCache: %v", err)
	}
}

func TestEngineWarmCacheIsIdempotentAcrossInstancesViaPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	entries := map[string]dispatchKernel{
		"noop": func(args ...interface{}) error { return nil },
	}

	e1, err := New(Options{CachePath: path})
	if err != nil {
		t.Fatalf("New (first): %v", err)
	}
	if err := e1.WarmCache("diagnostic", "// body\n", entries); err != nil {
		t.Fatalf("WarmCache (first): %v", err)
	}
	e1.Close()

	e2, err := New(Options{CachePath: path})
	if err != nil {
		t.Fatalf("New (second): %v", err)
	}
	defer e2.Close()
	if err := e2.WarmCache("diagnostic", "// body\n", entries); err != nil {
		t.Fatalf("WarmCache (second, against persisted store): %v", err)
	}
}
