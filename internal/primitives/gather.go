package primitives

// Gather computes out[i] = src[index[i]] for every i, implementing the
// gather primitive used by the column-gather stage of the VxM pipeline
// (spec.md §4.4 step 6).
func Gather(src []uint32, index []uint32) []uint32 {
	out := make([]uint32, len(index))
	for i, idx := range index {
		out[i] = src[idx]
	}
	return out
}
