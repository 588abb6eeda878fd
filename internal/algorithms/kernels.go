package algorithms

import (
	"splax/internal/descriptor"
	"splax/internal/dispatch"
	"splax/internal/kernelcache"
	"splax/internal/primitives"
	"splax/internal/status"
)

// binaryKernelTemplate is the one kernel source every vxm/mxv/v_eadd/
// m_reduce specialization assembles against: a single "apply" entry
// point taking two input arrays and an output array of the same
// TYPE-qualified element type, computing out[i] = BINARY_OP(a[i], b[i])
// (spec.md §4.4 steps 7 and 9, both of which reduce to this one shape —
// mult applied to gathered a/b locations, add applied pairwise during
// reduce-by-key). Declaring every buffer __global resolves spec.md §9's
// documented qualifier bug by construction: there is no unqualified
// pointer declaration for a future template to regress into.
const binaryKernelTemplate = `
__kernel void apply(__global const TYPE *a, __global const TYPE *b, __global TYPE *out) {
    int i = get_global_id(0);
    out[i] = BINARY_OP(a[i], b[i]);
}
`

// acquireBinaryKernel assembles and acquires the "apply" entry point
// specializing binaryKernelTemplate for op at typ, going through the
// real program builder and cache (spec.md §4.1) rather than calling
// op.Eval directly. ctx.Queue.Compiler supplies the native fallback
// on the software device and the real OpenCL compiler on the
// accelerator; either way the same cache key and builder state drive
// the acquire.
func acquireBinaryKernel(ctx *dispatch.Context, op descriptor.Op, typ descriptor.Type) (kernelcache.Kernel, error) {
	b := kernelcache.NewBuilder().
		SetName("binary_apply").
		SetSource(binaryKernelTemplate).
		AddType("TYPE", typ).
		AddOp("BINARY_OP", op)

	native := map[string]kernelcache.Kernel{}
	if op.Eval != nil {
		native["apply"] = nativeBinaryKernel(op)
	}
	program, err := ctx.Cache.Acquire(b, ctx.Queue.Compiler(native), []string{"apply"})
	if err != nil {
		return nil, err
	}
	return program.MakeKernel("apply")
}

// nativeBinaryKernel is the software device's entry point for "apply":
// it runs op.Eval elementwise over the plain []float64 arguments the
// soft backend calls it with, rather than over device buffers.
func nativeBinaryKernel(op descriptor.Op) kernelcache.Kernel {
	return func(args ...interface{}) error {
		if len(args) != 3 {
			return status.New(status.InvalidArgument, op.Key, "binary kernel expects 3 arguments, got %d", len(args))
		}
		a, aOk := args[0].([]float64)
		b, bOk := args[1].([]float64)
		out, outOk := args[2].([]float64)
		if !aOk || !bOk || !outOk {
			return status.New(status.InvalidArgument, op.Key, "binary kernel arguments must be []float64")
		}
		for i := range out {
			out[i] = op.Eval(a[i], b[i])
		}
		return nil
	}
}

// applyBinaryKernel invokes a kernel acquired via acquireBinaryKernel
// over aVals/bVals through ctx.Queue.Enqueue. On the software device it
// calls the kernel directly over host slices; on the OpenCL device it
// packs aVals/bVals into the element type's wire layout, uploads them
// to scratch device buffers, enqueues the real compiled kernel against
// them, and downloads the result — the device-resident half of spec.md
// §4.4 this pipeline previously skipped entirely.
func applyBinaryKernel(ctx *dispatch.Context, kernel kernelcache.Kernel, typ descriptor.Type, aVals, bVals []float64) ([]float64, error) {
	out := make([]float64, len(aVals))

	if ctx.Queue.Backend() != "__cl" {
		if err := ctx.Queue.Enqueue(func() error { return kernel(aVals, bVals, out) }); err != nil {
			return nil, err
		}
		return out, nil
	}

	aBytes, err := primitives.Pack(typ, aVals)
	if err != nil {
		return nil, status.Wrap(status.InvalidArgument, "", err, "pack left operand for device upload")
	}
	bBytes, err := primitives.Pack(typ, bVals)
	if err != nil {
		return nil, status.Wrap(status.InvalidArgument, "", err, "pack right operand for device upload")
	}

	bufA, bufB, err := ctx.Scratch.AllocPaired(len(aBytes), len(bBytes))
	if err != nil {
		return nil, status.Wrap(status.OutOfMemory, "", err, "scratch alloc for kernel operands")
	}
	if err := bufA.Write(aBytes); err != nil {
		return nil, status.Wrap(status.Error, "", err, "upload left operand")
	}
	if err := bufB.Write(bBytes); err != nil {
		return nil, status.Wrap(status.Error, "", err, "upload right operand")
	}

	outBuf, err := ctx.Scratch.Alloc(len(aBytes))
	if err != nil {
		return nil, status.Wrap(status.OutOfMemory, "", err, "scratch alloc for kernel output")
	}

	if err := ctx.Queue.Enqueue(func() error { return kernel(bufA, bufB, outBuf, len(aVals)) }); err != nil {
		return nil, status.Wrap(status.Error, "", err, "enqueue apply kernel")
	}

	outBytes := make([]byte, len(aBytes))
	if err := outBuf.Read(outBytes); err != nil {
		return nil, status.Wrap(status.Error, "", err, "download kernel output")
	}
	return primitives.Unpack(typ, outBytes)
}

// queuedBinaryOp adapts a kernel acquired via acquireBinaryKernel into
// a primitives.BinaryOp, so the existing reduce-by-key pipeline (which
// folds pairwise) drives the compiled add kernel one pair at a time
// instead of calling descriptor.Op.Eval directly.
func queuedBinaryOp(ctx *dispatch.Context, kernel kernelcache.Kernel, typ descriptor.Type) primitives.BinaryOp {
	return func(a, b float64) float64 {
		out, err := applyBinaryKernel(ctx, kernel, typ, []float64{a}, []float64{b})
		if err != nil || len(out) == 0 {
			return 0
		}
		return out[0]
	}
}
