package kernelcache

import (
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"

	"splax/internal/descriptor"
)

// irType maps a descriptor.Type's registry code to its LLVM IR type, for
// the diagnostic-only CPU IR dump described in SPEC_FULL.md §4.1.
func irType(code string) types.Type {
	switch code {
	case "INT", "UINT", "BOOL":
		return types.I32
	case "FLOAT":
		return types.Float
	case "DOUBLE":
		return types.Double
	default:
		return types.I32
	}
}

// buildCPUIR synthesizes a small LLVM IR module documenting the
// specialized kernel: one function per bound operator, built-in PLUS/
// MULT ops get a real add/mul instruction, everything else gets an
// unreachable body that still records the operator's declared
// signature. The module is never handed to an execution engine; its
// String() form is attached to the CompiledProgram purely for cache-row
// export and debugging (SPEC_FULL.md §4.1).
func buildCPUIR(templateName string, ops map[string]descriptor.Op) string {
	m := ir.NewModule()
	m.SourceFilename = templateName

	for name, op := range ops {
		if op.Kind != descriptor.KindBinary || len(op.ArgTypes) != 2 {
			continue
		}
		retTy := irType(op.RetType)
		argTyA := irType(op.ArgTypes[0])
		argTyB := irType(op.ArgTypes[1])

		pa := ir.NewParam("a", argTyA)
		pb := ir.NewParam("b", argTyB)
		f := m.NewFunc(name, retTy, pa, pb)
		block := f.NewBlock("entry")

		isFloat := retTy == types.Float || retTy == types.Double
		switch {
		case strings.HasPrefix(op.Key, "PLUS_") && isFloat:
			block.NewRet(block.NewFAdd(pa, pb))
		case strings.HasPrefix(op.Key, "PLUS_"):
			block.NewRet(block.NewAdd(pa, pb))
		case strings.HasPrefix(op.Key, "MULT_") && isFloat:
			block.NewRet(block.NewFMul(pa, pb))
		case strings.HasPrefix(op.Key, "MULT_"):
			block.NewRet(block.NewMul(pa, pb))
		default:
			block.NewUnreachable()
		}
	}

	return m.String()
}
