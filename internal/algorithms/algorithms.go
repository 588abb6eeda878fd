// Package algorithms implements the high-level sparse operations —
// vxm, mxv, m_reduce, v_eadd — each specializing for an operand storage
// format and driving the primitive kernel pipeline of spec.md §4.4.
//
// The mult and add steps of that pipeline never call descriptor.Op.Eval
// directly: they acquire a compiled "apply" kernel from ctx.Cache (see
// kernels.go) and invoke it through ctx.Queue.Enqueue, the same program
// builder and cache path spec.md §4.1 describes. On the software device
// the acquired kernel still ends up running op.Eval, just indirected
// through the cache; on the OpenCL device it runs the real compiled
// kernel over uploaded device buffers.
package algorithms

import (
	"splax/internal/descriptor"
	"splax/internal/dispatch"
	"splax/internal/primitives"
	"splax/internal/status"
	"splax/internal/storage"
)

// BuildKey assembles a dispatch key following the grammar of spec.md
// §4.2/§6: name, then each non-empty part (operator keys in declaration
// order, or a bare type code when there are no operators), then the
// backend suffix exactly as reported by a device.Queue ("__cpu"/"__cl").
func BuildKey(name string, parts []string, backendSuffix string) string {
	key := name
	for _, p := range parts {
		if p != "" {
			key += "_" + p
		}
	}
	return key + backendSuffix
}

// VxM implements vector-times-matrix over a semiring (add, mult),
// specialized for COO operands. It is registered once per (add, mult,
// backend) combination.
type VxM struct {
	key  string
	Add  descriptor.Op
	Mult descriptor.Op
}

// NewVxM returns a typed VxM algorithm registered under the grammar's
// "<op><op>__<backend>" key ordering (mult applied before accumulate,
// matching add/mult declaration order in a semiring).
func NewVxM(add, mult descriptor.Op, backendSuffix string) *VxM {
	return &VxM{
		key:  BuildKey("vxm", []string{add.Key, mult.Key}, backendSuffix),
		Add:  add,
		Mult: mult,
	}
}

func (a *VxM) Key() string { return a.key }

// Execute runs the canonical sparse pipeline of spec.md §4.4: segment
// lengths, exclusive scan, a/b-locations, column gather, value
// transform, sort-by-key, reduce-by-key, mask.
func (a *VxM) Execute(ctx *dispatch.Context) error {
	task := ctx.Task
	return runSparsePipeline(ctx, task.A, task.B, &a.Add, &a.Mult)
}

// MxV implements matrix-times-vector; it is the transpose-shaped twin of
// VxM and reuses the identical pipeline — the roles of "sparse vector of
// segments" and "matrix providing row lengths" are just swapped by the
// caller choosing which operand is A and which is B.
type MxV struct {
	key  string
	Add  descriptor.Op
	Mult descriptor.Op
}

func NewMxV(add, mult descriptor.Op, backendSuffix string) *MxV {
	return &MxV{
		key:  BuildKey("mxv", []string{add.Key, mult.Key}, backendSuffix),
		Add:  add,
		Mult: mult,
	}
}

func (a *MxV) Key() string { return a.key }

func (a *MxV) Execute(ctx *dispatch.Context) error {
	task := ctx.Task
	return runSparsePipeline(ctx, task.A, task.B, &a.Add, &a.Mult)
}

// VEadd implements element-wise addition of two sparse vectors/matrices
// in COO form. Unlike VxM/MxV it has no mult stage: both operands are
// merged by key and reduced with add.
type VEadd struct {
	key string
	Add *descriptor.Op // nil for the pattern-only variant
	Typ descriptor.Type
}

// NewVEadd registers the typed variant (key carries the add operator)
// or, when add is nil, the pattern-only variant (key carries the bare
// type code, matching spec.md §8 scenario 1's "v_eadd_INT__cpu").
func NewVEadd(add *descriptor.Op, typ descriptor.Type, backendSuffix string) *VEadd {
	var parts []string
	if add != nil {
		parts = []string{add.Key}
	} else {
		parts = []string{typ.Code}
	}
	return &VEadd{key: BuildKey("v_eadd", parts, backendSuffix), Add: add, Typ: typ}
}

func (a *VEadd) Key() string { return a.key }

func (a *VEadd) Execute(ctx *dispatch.Context) error {
	task := ctx.Task
	left, right := task.A, task.B
	if left == nil || right == nil {
		return status.New(status.InvalidArgument, a.key, "v_eadd requires two operands")
	}

	rows := append(append([]uint32{}, left.Rows...), right.Rows...)
	var vals []float64
	typed := a.Add != nil && left.HasValues() && right.HasValues()
	if typed {
		lv, err := primitives.Unpack(left.Type, left.Vals)
		if err != nil {
			return status.Wrap(status.InvalidArgument, a.key, err, "unpack left operand")
		}
		rv, err := primitives.Unpack(right.Type, right.Vals)
		if err != nil {
			return status.Wrap(status.InvalidArgument, a.key, err, "unpack right operand")
		}
		vals = append(append([]float64{}, lv...), rv...)
	}

	if len(rows) == 0 {
		return emitResult(ctx, &storage.COO{Type: task.ElementType(), NRows: left.NRows, NCols: left.NCols})
	}

	sortedRows, sortedVals := primitives.SortByKey(rows, vals)

	var outRows []uint32
	var outVals []float64
	if typed {
		addKernel, err := acquireBinaryKernel(ctx, *a.Add, a.Typ)
		if err != nil {
			return err
		}
		outRows, outVals = primitives.ReduceByKey(sortedRows, sortedVals, queuedBinaryOp(ctx, addKernel, a.Typ))
	} else {
		outRows = primitives.ReduceDuplicates(sortedRows)
	}

	if task.Mask != nil {
		outRows, outVals = primitives.ApplyMask(outRows, outVals, task.Mask.Rows, task.Complement)
	}

	return emitTypedResult(ctx, outRows, outVals, task.ElementType(), left.NRows, left.NCols)
}

// MReduce implements a whole-matrix reduction to a scalar accumulator,
// reusing reduce-by-key over a single synthetic key so every nonzero
// collapses into one output.
type MReduce struct {
	key string
	Add descriptor.Op
}

func NewMReduce(add descriptor.Op, backendSuffix string) *MReduce {
	return &MReduce{key: BuildKey("m_reduce", []string{add.Key}, backendSuffix), Add: add}
}

func (a *MReduce) Key() string { return a.key }

func (a *MReduce) Execute(ctx *dispatch.Context) error {
	task := ctx.Task
	m := task.A
	if m == nil {
		return status.New(status.InvalidArgument, a.key, "m_reduce requires an operand")
	}
	if m.NVals() == 0 {
		return emitResult(ctx, &storage.COO{Type: task.ElementType(), NRows: 1, NCols: 1})
	}
	vals, err := primitives.Unpack(m.Type, m.Vals)
	if err != nil {
		return status.Wrap(status.InvalidArgument, a.key, err, "unpack operand")
	}
	addKernel, err := acquireBinaryKernel(ctx, a.Add, task.ElementType())
	if err != nil {
		return err
	}
	keys := make([]uint32, len(vals))
	_, reduced := primitives.ReduceByKey(keys, vals, queuedBinaryOp(ctx, addKernel, task.ElementType()))
	return emitTypedResult(ctx, []uint32{0}, reduced, task.ElementType(), 1, 1)
}

// runSparsePipeline executes spec.md §4.4 steps 1-11 for VxM/MxV: a is
// the sparse vector side (nonzero row indices, optionally typed values),
// b is the matrix side (CSR row offsets + columns, optionally values).
func runSparsePipeline(ctx *dispatch.Context, a, b *storage.COO, add, mult *descriptor.Op) error {
	if a == nil || b == nil {
		return status.New(status.InvalidArgument, "", "vxm/mxv requires two operands")
	}
	if a.NVals() == 0 {
		return emitResult(ctx, &storage.COO{Type: outputType(a, b), NRows: 1, NCols: b.NCols})
	}

	bCSR := b.ToCSR()

	segmentLengths := make([]uint32, a.NVals())
	for i, row := range a.Rows {
		segmentLengths[i] = bCSR.RowLen(row)
	}

	outputPtr := primitives.ExclusiveScan(segmentLengths)
	z := outputPtr[len(outputPtr)-1]
	if z == 0 {
		return emitResult(ctx, &storage.COO{Type: outputType(a, b), NRows: 1, NCols: b.NCols})
	}

	if _, err := ctx.Scratch.Alloc(int(z) * 4); err != nil {
		return status.Wrap(status.OutOfMemory, "", err, "scratch alloc for a-locations")
	}

	aLocations := make([]uint32, z)
	pred := make([]bool, a.NVals())
	for i, seglen := range segmentLengths {
		if seglen > 0 {
			pred[i] = true
		}
	}
	index := make([]uint32, a.NVals())
	copy(index, outputPtr[:a.NVals()])
	src := make([]uint32, a.NVals())
	for i := range src {
		src[i] = uint32(i)
	}
	primitives.ScatterIf(aLocations, src, index, pred)
	aLocations = primitives.InclusiveScanMax(aLocations)

	bLocations := make([]uint32, z)
	typed := mult != nil && a.HasValues() && b.HasValues()
	var aVals, bVals []float64
	if typed {
		var err error
		aVals, err = primitives.Unpack(a.Type, a.Vals)
		if err != nil {
			return status.Wrap(status.InvalidArgument, "", err, "unpack left operand")
		}
		bVals, err = primitives.Unpack(b.Type, b.Vals)
		if err != nil {
			return status.Wrap(status.InvalidArgument, "", err, "unpack right operand")
		}
	}

	for k := uint32(0); k < z; k++ {
		i := aLocations[k]
		row := a.Rows[i]
		base := bCSR.Offsets[row]
		segStart := outputPtr[i]
		bLocations[k] = base + (k - segStart)
	}

	j := primitives.Gather(b.Cols, bLocations)

	var v []float64
	if typed {
		mulKernel, err := acquireBinaryKernel(ctx, *mult, outputType(a, b))
		if err != nil {
			return err
		}
		gatheredA := make([]float64, z)
		gatheredB := make([]float64, z)
		for k := range gatheredA {
			gatheredA[k] = aVals[aLocations[k]]
			gatheredB[k] = bVals[bLocations[k]]
		}
		v, err = applyBinaryKernel(ctx, mulKernel, outputType(a, b), gatheredA, gatheredB)
		if err != nil {
			return status.Wrap(status.Error, "", err, "apply mult kernel")
		}
	}

	sortedJ, sortedV := primitives.SortByKey(j, v)

	var rowsOut []uint32
	var valsOut []float64
	if typed {
		addKernel, err := acquireBinaryKernel(ctx, *add, outputType(a, b))
		if err != nil {
			return err
		}
		rowsOut, valsOut = primitives.ReduceByKey(sortedJ, sortedV, queuedBinaryOp(ctx, addKernel, outputType(a, b)))
	} else {
		rowsOut = primitives.ReduceDuplicates(sortedJ)
	}

	var mask *storage.COO
	var complement bool
	if ctx.Task.Mask != nil {
		mask = ctx.Task.Mask
		complement = ctx.Task.Complement
	}
	if mask != nil {
		rowsOut, valsOut = primitives.ApplyMask(rowsOut, valsOut, mask.Rows, complement)
	}

	return emitTypedResult(ctx, rowsOut, valsOut, outputType(a, b), 1, b.NCols)
}

func outputType(a, b *storage.COO) descriptor.Type {
	if a.HasValues() {
		return a.Type
	}
	return b.Type
}

func emitResult(ctx *dispatch.Context, result *storage.COO) error {
	ctx.Task.Output = result
	return nil
}

func emitTypedResult(ctx *dispatch.Context, rows []uint32, vals []float64, typ descriptor.Type, nrows, ncols uint32) error {
	var packed []byte
	if vals != nil {
		var err error
		packed, err = primitives.Pack(typ, vals)
		if err != nil {
			return status.Wrap(status.InvalidArgument, "", err, "pack output values")
		}
	}
	return emitResult(ctx, &storage.COO{
		Rows:  rows,
		Cols:  append([]uint32{}, rows...),
		Vals:  packed,
		Type:  typ,
		NRows: nrows,
		NCols: ncols,
	})
}
