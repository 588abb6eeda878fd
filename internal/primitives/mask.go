package primitives

// ApplyMask intersects (or, when complement is true, anti-intersects)
// rows against maskRows, filtering vals in lockstep (spec.md §4.4 step
// 10). maskRows must be sorted ascending; rows is assumed sorted
// ascending too, as produced by ReduceByKey/ReduceDuplicates.
func ApplyMask(rows []uint32, vals []float64, maskRows []uint32, complement bool) ([]uint32, []float64) {
	maskSet := make(map[uint32]struct{}, len(maskRows))
	for _, r := range maskRows {
		maskSet[r] = struct{}{}
	}

	outRows := make([]uint32, 0, len(rows))
	var outVals []float64
	if vals != nil {
		outVals = make([]float64, 0, len(rows))
	}
	for i, r := range rows {
		_, inMask := maskSet[r]
		keep := inMask
		if complement {
			keep = !inMask
		}
		if !keep {
			continue
		}
		outRows = append(outRows, r)
		if vals != nil {
			outVals = append(outVals, vals[i])
		}
	}
	return outRows, outVals
}
