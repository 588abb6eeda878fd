package primitives

// TransformValues computes V[k] = mult(aVals[aLocations[k]],
// bVals[bLocations[k]]) for every product index k, implementing spec.md
// §4.4 step 7 ("Value transform") with mult as a plain host closure. The
// VxM/MxV pipeline in internal/algorithms does not call it: it runs
// step 7 through the cached "apply" kernel instead.
func TransformValues(aVals, bVals []float64, aLocations, bLocations []uint32, mult BinaryOp) []float64 {
	out := make([]float64, len(aLocations))
	for k := range aLocations {
		out[k] = mult(aVals[aLocations[k]], bVals[bLocations[k]])
	}
	return out
}
