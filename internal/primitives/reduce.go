package primitives

// ReduceByKey collapses consecutive runs of equal keys in a sorted key
// stream into a single (key, value) pair via add, implementing spec.md
// §4.4 step 9 / Glossary "Reduce-by-key". keys must already be
// non-decreasing (post sort-by-key).
func ReduceByKey(keys []uint32, vals []float64, add BinaryOp) ([]uint32, []float64) {
	if len(keys) == 0 {
		return nil, nil
	}
	outKeys := make([]uint32, 0, len(keys))
	outVals := make([]float64, 0, len(keys))

	curKey := keys[0]
	curVal := vals[0]
	for i := 1; i < len(keys); i++ {
		if keys[i] == curKey {
			curVal = add(curVal, vals[i])
			continue
		}
		outKeys = append(outKeys, curKey)
		outVals = append(outVals, curVal)
		curKey = keys[i]
		curVal = vals[i]
	}
	outKeys = append(outKeys, curKey)
	outVals = append(outVals, curVal)
	return outKeys, outVals
}

// ReduceDuplicates collapses consecutive runs of equal keys keeping only
// the first occurrence, used by the pattern-only path in place of
// ReduceByKey (spec.md §4.4, "Pattern-only path").
func ReduceDuplicates(keys []uint32) []uint32 {
	if len(keys) == 0 {
		return nil
	}
	out := make([]uint32, 0, len(keys))
	out = append(out, keys[0])
	for i := 1; i < len(keys); i++ {
		if keys[i] != keys[i-1] {
			out = append(out, keys[i])
		}
	}
	return out
}
