package primitives

// ExclusiveScan computes output[i] = sum(input[0:i]) for i in
// [0, len(input)], so the result has length len(input)+1 and
// output[len(input)] is the total (spec.md §8: "output[i] ==
// Σ_{j<i} input[j]; output[0] == 0").
func ExclusiveScan(input []uint32) []uint32 {
	out := make([]uint32, len(input)+1)
	var sum uint32
	for i, v := range input {
		out[i] = sum
		sum += v
	}
	out[len(input)] = sum
	return out
}

// InclusiveScanMax propagates the running maximum across a, in place
// semantics returned as a new slice: out[i] = max(a[0..i]). Used by the
// A-locations step of the VxM pipeline (spec.md §4.4 step 4) to spread
// each left-operand index across the run of product indices it owns.
func InclusiveScanMax(a []uint32) []uint32 {
	out := make([]uint32, len(a))
	if len(a) == 0 {
		return out
	}
	run := a[0]
	out[0] = run
	for i := 1; i < len(a); i++ {
		if a[i] > run {
			run = a[i]
		}
		out[i] = run
	}
	return out
}
