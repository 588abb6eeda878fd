// Package primitives implements the reusable gather/scatter/scan/sort/
// reduce-by-key pipeline (spec.md §4.4, §4.5) shared by every sparse
// algorithm. The functions here are host-executable; they back the
// default software device directly and describe, primitive-for-primitive,
// what the OpenCL kernels built by the program cache compute on an
// accelerator.
package primitives

import (
	"encoding/binary"
	"math"

	"splax/internal/descriptor"
	"splax/internal/status"
)

// Number is the set of element types the software device can operate on
// natively. Accelerator kernels are specialized per descriptor.Type via
// the program builder instead of Go generics, but the semantics must
// match exactly.
type Number interface {
	~int32 | ~uint32 | ~float32 | ~float64
}

// Unpack decodes a packed value buffer into a []float64 for generic
// arithmetic, dispatching on the type's registry code.
func Unpack(typ descriptor.Type, buf []byte) ([]float64, error) {
	n := len(buf) / typ.Size
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		chunk := buf[i*typ.Size : (i+1)*typ.Size]
		switch typ.Code {
		case "INT":
			out[i] = float64(int32(binary.LittleEndian.Uint32(chunk)))
		case "UINT":
			out[i] = float64(binary.LittleEndian.Uint32(chunk))
		case "FLOAT":
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(chunk)))
		case "DOUBLE":
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(chunk))
		default:
			return nil, status.New(status.NotImplemented, "", "unsupported element type %q for software device", typ.Code)
		}
	}
	return out, nil
}

// Pack encodes a []float64 back into the packed byte layout for typ.
func Pack(typ descriptor.Type, vals []float64) ([]byte, error) {
	out := make([]byte, len(vals)*typ.Size)
	for i, v := range vals {
		chunk := out[i*typ.Size : (i+1)*typ.Size]
		switch typ.Code {
		case "INT":
			binary.LittleEndian.PutUint32(chunk, uint32(int32(v)))
		case "UINT":
			binary.LittleEndian.PutUint32(chunk, uint32(v))
		case "FLOAT":
			binary.LittleEndian.PutUint32(chunk, math.Float32bits(float32(v)))
		case "DOUBLE":
			binary.LittleEndian.PutUint64(chunk, math.Float64bits(v))
		default:
			return nil, status.New(status.NotImplemented, "", "unsupported element type %q for software device", typ.Code)
		}
	}
	return out, nil
}

// BinaryOp aliases descriptor.BinaryOp, the software-device equivalent
// of a compiled "add"/"mult" kernel: a plain Go closure over two float64
// operands. The accelerator path instead compiles descriptor.Op.Body as
// device code; both must agree on semantics for a given Op.Key.
type BinaryOp = descriptor.BinaryOp
