package algorithms

import (
	"testing"

	"splax/internal/descriptor"
	"splax/internal/device"
	"splax/internal/dispatch"
	"splax/internal/kernelcache"
	"splax/internal/primitives"
	"splax/internal/storage"
)

func intPlus() descriptor.Op {
	return descriptor.Op{Key: "PLUS_INT", Kind: descriptor.KindBinary, Eval: func(a, b float64) float64 { return a + b }}
}

func intMult() descriptor.Op {
	return descriptor.Op{Key: "MULT_INT", Kind: descriptor.KindBinary, Eval: func(a, b float64) float64 { return a * b }}
}

func newTestContext(task *dispatch.Task) *dispatch.Context {
	return &dispatch.Context{
		Queue:   device.NewSoftQueue(),
		General: device.NewGeneralAllocator(),
		Scratch: device.NewScratchAllocator(),
		Cache:   kernelcache.NewCache(nil),
		Task:    task,
	}
}

func packInts(vals []int32) []byte {
	floats := make([]float64, len(vals))
	for i, v := range vals {
		floats[i] = float64(v)
	}
	packed, err := primitives.Pack(descriptor.Int, floats)
	if err != nil {
		panic(err)
	}
	return packed
}

// TestVxMPatternOnlyScenario is spec.md §8 literal scenario 4.
func TestVxMPatternOnlyScenario(t *testing.T) {
	a := &storage.COO{Rows: []uint32{0, 2}, Type: descriptor.Int, NRows: 1, NCols: 3}
	b := &storage.COO{
		Rows: []uint32{0, 0, 2}, Cols: []uint32{1, 2, 0},
		Type: descriptor.Int, NRows: 3, NCols: 3,
	}

	algo := NewVxM(intPlus(), intMult(), "__cpu")
	task := &dispatch.Task{Operation: "vxm", A: a, B: b, Type: descriptor.Int}
	ctx := newTestContext(task)

	if err := algo.Execute(ctx); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	want := []uint32{0, 1, 2}
	got := task.Output.Rows
	if len(got) != len(want) {
		t.Fatalf("rows = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rows = %v, want %v", got, want)
		}
	}
}

// TestVxMTypedScenario is spec.md §8 literal scenario 5.
func TestVxMTypedScenario(t *testing.T) {
	a := &storage.COO{
		Rows: []uint32{0, 2}, Vals: packInts([]int32{1, 2}),
		Type: descriptor.Int, NRows: 1, NCols: 3,
	}
	b := &storage.COO{
		Rows: []uint32{0, 0, 2}, Cols: []uint32{1, 2, 0}, Vals: packInts([]int32{3, 4, 5}),
		Type: descriptor.Int, NRows: 3, NCols: 3,
	}

	algo := NewVxM(intPlus(), intMult(), "__cpu")
	task := &dispatch.Task{Operation: "vxm", A: a, B: b, Type: descriptor.Int}
	ctx := newTestContext(task)

	if err := algo.Execute(ctx); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	wantRows := []uint32{0, 1, 2}
	wantVals := []float64{10, 3, 4}

	out := task.Output
	if len(out.Rows) != len(wantRows) {
		t.Fatalf("rows = %v, want %v", out.Rows, wantRows)
	}
	for i := range wantRows {
		if out.Rows[i] != wantRows[i] {
			t.Fatalf("rows = %v, want %v", out.Rows, wantRows)
		}
	}

	gotVals, err := primitives.Unpack(out.Type, out.Vals)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	for i := range wantVals {
		if gotVals[i] != wantVals[i] {
			t.Fatalf("vals = %v, want %v", gotVals, wantVals)
		}
	}
}

func TestVxMEmptyLeftOperandShortCircuits(t *testing.T) {
	a := &storage.COO{Type: descriptor.Int, NRows: 1, NCols: 3}
	b := &storage.COO{
		Rows: []uint32{0}, Cols: []uint32{0},
		Type: descriptor.Int, NRows: 3, NCols: 3,
	}

	algo := NewVxM(intPlus(), intMult(), "__cpu")
	task := &dispatch.Task{Operation: "vxm", A: a, B: b, Type: descriptor.Int}
	ctx := newTestContext(task)

	if err := algo.Execute(ctx); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if task.Output == nil || len(task.Output.Rows) != 0 {
		t.Fatalf("expected empty output for empty left operand, got %v", task.Output)
	}
}

func TestVEaddTyped(t *testing.T) {
	left := &storage.COO{Rows: []uint32{0, 1}, Vals: packInts([]int32{1, 2}), Type: descriptor.Int, NRows: 2, NCols: 1}
	right := &storage.COO{Rows: []uint32{1, 2}, Vals: packInts([]int32{10, 20}), Type: descriptor.Int, NRows: 3, NCols: 1}

	add := intPlus()
	algo := NewVEadd(&add, descriptor.Int, "__cpu")
	task := &dispatch.Task{Operation: "v_eadd", A: left, B: right, Type: descriptor.Int}
	ctx := newTestContext(task)

	if err := algo.Execute(ctx); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	out := task.Output
	wantRows := []uint32{0, 1, 2}
	if len(out.Rows) != len(wantRows) {
		t.Fatalf("rows = %v, want %v", out.Rows, wantRows)
	}
	gotVals, err := primitives.Unpack(out.Type, out.Vals)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	wantVals := []float64{1, 12, 20}
	for i := range wantVals {
		if gotVals[i] != wantVals[i] {
			t.Fatalf("vals = %v, want %v", gotVals, wantVals)
		}
	}
}

func TestVEaddPatternOnlyKeyGrammar(t *testing.T) {
	algo := NewVEadd(nil, descriptor.Int, "__cpu")
	if algo.Key() != "v_eadd_INT__cpu" {
		t.Fatalf("Key() = %q, want %q", algo.Key(), "v_eadd_INT__cpu")
	}
}

func TestMReduceSumsAllValues(t *testing.T) {
	m := &storage.COO{
		Rows: []uint32{0, 0, 1}, Cols: []uint32{0, 1, 0},
		Vals: packInts([]int32{2, 3, 4}), Type: descriptor.Int, NRows: 2, NCols: 2,
	}
	algo := NewMReduce(intPlus(), "__cpu")
	task := &dispatch.Task{Operation: "m_reduce", A: m, Type: descriptor.Int}
	ctx := newTestContext(task)

	if err := algo.Execute(ctx); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	vals, err := primitives.Unpack(task.Output.Type, task.Output.Vals)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if len(vals) != 1 || vals[0] != 9 {
		t.Fatalf("reduced = %v, want [9]", vals)
	}
}

func TestBuildKeyGrammar(t *testing.T) {
	got := BuildKey("vxm", []string{"PLUS_FLOAT", "MULT_FLOAT"}, "__cl")
	want := "vxm_PLUS_FLOAT_MULT_FLOAT__cl"
	if got != want {
		t.Fatalf("BuildKey = %q, want %q", got, want)
	}
}
