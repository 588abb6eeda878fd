package primitives

// ScatterIf writes src[i] to dst[index[i]] for every i where pred[i] is
// true, leaving dst unchanged elsewhere. dst must already be sized and
// zero-initialized by the caller (spec.md §4.4 step 4, Glossary
// "Scatter-if").
func ScatterIf(dst []uint32, src []uint32, index []uint32, pred []bool) {
	for i := range src {
		if pred[i] {
			dst[index[i]] = src[i]
		}
	}
}
