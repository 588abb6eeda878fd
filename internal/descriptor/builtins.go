package descriptor

// Built-in element types, registered by the engine at init before any
// schedule may be submitted (spec's init-before-dispatch ordering).
var (
	Int    = Type{Code: "INT", Size: 4, Decl: "int"}
	UInt   = Type{Code: "UINT", Size: 4, Decl: "unsigned int"}
	Float  = Type{Code: "FLOAT", Size: 4, Decl: "float"}
	Double = Type{Code: "DOUBLE", Size: 8, Decl: "double"}
	Bool   = Type{Code: "BOOL", Size: 1, Decl: "unsigned char"}
)

// BuiltinTypes lists every type the engine registers automatically.
func BuiltinTypes() []Type {
	return []Type{Int, UInt, Float, Double, Bool}
}

func plusOp(t Type) Op {
	return Op{
		Key:      "PLUS_" + t.Code,
		Kind:     KindBinary,
		RetType:  t.Code,
		ArgTypes: []string{t.Code, t.Code},
		Body:     "return a + b;",
		Eval:     func(a, b float64) float64 { return a + b },
	}
}

func multOp(t Type) Op {
	return Op{
		Key:      "MULT_" + t.Code,
		Kind:     KindBinary,
		RetType:  t.Code,
		ArgTypes: []string{t.Code, t.Code},
		Body:     "return a * b;",
		Eval:     func(a, b float64) float64 { return a * b },
	}
}

// BuiltinOps lists the arithmetic semiring operators the engine registers
// automatically for every built-in numeric type.
func BuiltinOps() []Op {
	var ops []Op
	for _, t := range []Type{Int, UInt, Float, Double} {
		ops = append(ops, plusOp(t), multOp(t))
	}
	return ops
}
