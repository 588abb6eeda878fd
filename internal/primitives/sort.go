package primitives

import "math/bits"

// bitonicThreshold is the largest n for which the small-input bitonic
// network is used; above it SortByKey switches to the LSD radix sort
// (spec.md §4.5 "Selection").
const bitonicThreshold = 1 << 15

// SortByKey stably sorts (keys, vals) ascending by key, selecting bitonic
// sort for small n and radix sort for large n per spec.md §4.5. vals may
// be nil for a pattern-only sort; in that case only keys are permuted.
func SortByKey(keys []uint32, vals []float64) ([]uint32, []float64) {
	if len(keys) <= 1 {
		return append([]uint32(nil), keys...), copyVals(vals)
	}
	if len(keys) <= bitonicThreshold {
		return bitonicSortByKey(keys, vals)
	}
	return radixSortByKey(keys, vals)
}

func copyVals(vals []float64) []float64 {
	if vals == nil {
		return nil
	}
	return append([]float64(nil), vals...)
}

// pair couples a key with its original position so that compare-exchange
// steps can break ties by original index, making both sorts stable.
type pair struct {
	key uint32
	pos uint32
}

// bitonicSortByKey implements spec.md §4.5's small-n path: pad to the
// next power of two with maximal sentinels, run the classic bitonic
// sorting network over (key, original-index) pairs, then drop the
// sentinel tail. Sorting on (key, pos) rather than key alone is what
// makes the network stable.
func bitonicSortByKey(keys []uint32, vals []float64) ([]uint32, []float64) {
	n := len(keys)
	size := nextPow2(n)
	pairs := make([]pair, size)
	for i := 0; i < n; i++ {
		pairs[i] = pair{key: keys[i], pos: uint32(i)}
	}
	for i := n; i < size; i++ {
		pairs[i] = pair{key: ^uint32(0), pos: uint32(i)}
	}

	for k := 2; k <= size; k <<= 1 {
		for j := k >> 1; j > 0; j >>= 1 {
			for i := 0; i < size; i++ {
				l := i ^ j
				if l <= i {
					continue
				}
				ascending := (i & k) == 0
				if pairLess(pairs[l], pairs[i]) == ascending {
					pairs[i], pairs[l] = pairs[l], pairs[i]
				}
			}
		}
	}

	outKeys := make([]uint32, n)
	var outVals []float64
	if vals != nil {
		outVals = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		outKeys[i] = pairs[i].key
		if vals != nil {
			outVals[i] = vals[pairs[i].pos]
		}
	}
	return outKeys, outVals
}

func pairLess(a, b pair) bool {
	if a.key != b.key {
		return a.key < b.key
	}
	return a.pos < b.pos
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// radixDigitBits is the per-pass digit width spec.md §4.5 specifies for
// the LSD radix path ("For each 4-bit digit from the LSB up...").
const radixDigitBits = 4
const radixDigits = 1 << radixDigitBits
const radixMask = radixDigits - 1

// radixSortByKey implements spec.md §4.5's large-n path: repeated stable
// counting sort passes over 4-bit digits from LSB to the digit
// containing the maximum key's top bit. Each pass corresponds to the
// local-histogram + scan + scatter sequence of radix_sort_local /
// radix_sort_scatter, collapsed here into an equivalent single-threaded
// stable counting sort (software device has no per-block parallelism).
func radixSortByKey(keys []uint32, vals []float64) ([]uint32, []float64) {
	n := len(keys)
	inKeys := append([]uint32(nil), keys...)
	inIdx := make([]uint32, n)
	for i := range inIdx {
		inIdx[i] = uint32(i)
	}

	maxKey := uint32(0)
	for _, k := range keys {
		if k > maxKey {
			maxKey = k
		}
	}
	passes := 1
	if maxKey > 0 {
		passes = (bits.Len32(maxKey) + radixDigitBits - 1) / radixDigitBits
	}

	outKeys := make([]uint32, n)
	outIdx := make([]uint32, n)

	for pass := 0; pass < passes; pass++ {
		shift := uint(pass * radixDigitBits)
		var counts [radixDigits + 1]int
		for _, k := range inKeys {
			digit := (k >> shift) & radixMask
			counts[digit+1]++
		}
		for d := 0; d < radixDigits; d++ {
			counts[d+1] += counts[d]
		}
		for i := 0; i < n; i++ {
			digit := (inKeys[i] >> shift) & radixMask
			dest := counts[digit]
			counts[digit]++
			outKeys[dest] = inKeys[i]
			outIdx[dest] = inIdx[i]
		}
		inKeys, outKeys = outKeys, inKeys
		inIdx, outIdx = outIdx, inIdx
	}

	var resultVals []float64
	if vals != nil {
		resultVals = make([]float64, n)
		for i, idx := range inIdx {
			resultVals[i] = vals[idx]
		}
	}
	return inKeys, resultVals
}
