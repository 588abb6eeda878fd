package primitives

import (
	"reflect"
	"testing"

	"splax/internal/descriptor"
)

func TestExclusiveScan(t *testing.T) {
	got := ExclusiveScan([]uint32{0, 0, 3, 0, 2, 1, 0})
	want := []uint32{0, 0, 0, 3, 3, 5, 6, 6}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestRadixSortByKeyScenario(t *testing.T) {
	keys := []uint32{4, 2, 4, 1}
	vals := []float64{0, 1, 2, 3} // stand-ins for a,b,c,d
	gotKeys, gotVals := radixSortByKey(keys, vals)
	wantKeys := []uint32{1, 2, 4, 4}
	wantVals := []float64{3, 1, 0, 2} // d,b,a,c
	if !reflect.DeepEqual(gotKeys, wantKeys) {
		t.Fatalf("keys: got %v want %v", gotKeys, wantKeys)
	}
	if !reflect.DeepEqual(gotVals, wantVals) {
		t.Fatalf("vals: got %v want %v", gotVals, wantVals)
	}
}

func TestBitonicSortByKeyStable(t *testing.T) {
	keys := []uint32{3, 1, 3, 2, 1}
	vals := []float64{0, 1, 2, 3, 4}
	gotKeys, gotVals := bitonicSortByKey(keys, vals)
	wantKeys := []uint32{1, 1, 2, 3, 3}
	wantVals := []float64{1, 4, 3, 0, 2}
	if !reflect.DeepEqual(gotKeys, wantKeys) {
		t.Fatalf("keys: got %v want %v", gotKeys, wantKeys)
	}
	if !reflect.DeepEqual(gotVals, wantVals) {
		t.Fatalf("vals: got %v want %v", gotVals, wantVals)
	}
}

func TestSortByKeySmallNoOp(t *testing.T) {
	keys := []uint32{5}
	gotKeys, _ := SortByKey(keys, nil)
	if !reflect.DeepEqual(gotKeys, keys) {
		t.Fatalf("expected no-op, got %v", gotKeys)
	}
}

func TestSortByKeyIsPermutation(t *testing.T) {
	keys := []uint32{9, 1, 5, 1, 9, 0, 3}
	gotKeys, _ := SortByKey(keys, nil)
	counts := map[uint32]int{}
	for _, k := range keys {
		counts[k]++
	}
	for _, k := range gotKeys {
		counts[k]--
	}
	for k, c := range counts {
		if c != 0 {
			t.Fatalf("key %d count mismatch: %d", k, c)
		}
	}
	for i := 1; i < len(gotKeys); i++ {
		if gotKeys[i] < gotKeys[i-1] {
			t.Fatalf("output not sorted: %v", gotKeys)
		}
	}
}

func TestReduceByKey(t *testing.T) {
	keys := []uint32{1, 1, 2, 3, 3, 3}
	vals := []float64{1, 2, 10, 1, 1, 1}
	add := func(a, b float64) float64 { return a + b }
	outKeys, outVals := ReduceByKey(keys, vals, add)
	wantKeys := []uint32{1, 2, 3}
	wantVals := []float64{3, 10, 3}
	if !reflect.DeepEqual(outKeys, wantKeys) || !reflect.DeepEqual(outVals, wantVals) {
		t.Fatalf("got keys=%v vals=%v", outKeys, outVals)
	}
}

func TestReduceByKeyIdempotentAfterResort(t *testing.T) {
	keys := []uint32{2, 1, 1, 3}
	vals := []float64{1, 1, 1, 1}
	add := func(a, b float64) float64 { return a + b }

	sortedKeys, sortedVals := SortByKey(keys, vals)
	k1, v1 := ReduceByKey(sortedKeys, sortedVals, add)

	resortedKeys, resortedVals := SortByKey(sortedKeys, sortedVals)
	k2, v2 := ReduceByKey(resortedKeys, resortedVals, add)

	if !reflect.DeepEqual(k1, k2) || !reflect.DeepEqual(v1, v2) {
		t.Fatalf("reduce_by_key(sort(x)) != reduce_by_key(sort(sort(x))): %v/%v vs %v/%v", k1, v1, k2, v2)
	}
}

func TestReduceDuplicates(t *testing.T) {
	got := ReduceDuplicates([]uint32{0, 0, 1, 2, 2, 2})
	want := []uint32{0, 1, 2}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestApplyMaskComplementFalseEmptyWhenNoSelection(t *testing.T) {
	rows, vals := ApplyMask([]uint32{0, 1, 2}, []float64{1, 2, 3}, nil, false)
	if len(rows) != 0 || len(vals) != 0 {
		t.Fatalf("expected empty output, got rows=%v vals=%v", rows, vals)
	}
}

func TestApplyMaskIntersect(t *testing.T) {
	rows, vals := ApplyMask([]uint32{0, 1, 2}, []float64{1, 2, 3}, []uint32{1, 2}, false)
	if !reflect.DeepEqual(rows, []uint32{1, 2}) || !reflect.DeepEqual(vals, []float64{2, 3}) {
		t.Fatalf("got rows=%v vals=%v", rows, vals)
	}
}

func TestApplyMaskComplement(t *testing.T) {
	rows, _ := ApplyMask([]uint32{0, 1, 2}, nil, []uint32{1}, true)
	if !reflect.DeepEqual(rows, []uint32{0, 2}) {
		t.Fatalf("got rows=%v", rows)
	}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	// float32 round trip through the packed byte layout.
	typ := descriptor.Float
	buf, err := Pack(typ, []float64{1.5, -2.25, 0})
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	got, err := Unpack(typ, buf)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	want := []float64{1.5, -2.25, 0}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}
