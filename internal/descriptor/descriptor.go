// Package descriptor defines the opaque Type and Op descriptors that
// parameterize algorithm keys and kernel specializations. Descriptors are
// registered once at engine init and are immutable and shared by reference
// for the rest of the process's life.
package descriptor

import "golang.org/x/crypto/blake2b"

// Type describes an element type usable in a schedule: its registry key
// code, its on-device byte size, and the textual declaration snippet a
// kernel template expands an alias token into.
type Type struct {
	Code    string // e.g. "INT", "UINT", "FLOAT", "DOUBLE"
	Size    int    // byte size of one element
	Decl    string // C-like declaration fragment, e.g. "float"
}

// Key returns the type's registry/key-grammar code.
func (t Type) Key() string { return t.Code }

// Hash returns a stable blake2b-256 content hash of the type's code. It
// is not used for identity or equality checks, which remain string-key
// based per the dispatch contract; the persistent program cache hashes
// its whole cache-key string itself rather than calling this.
func (t Type) Hash() [32]byte { return blake2b.Sum256([]byte(t.Code)) }

// OpKind distinguishes the arity/shape of an operator descriptor.
type OpKind int

const (
	KindUnary OpKind = iota
	KindBinary
	KindSelect
)

// BinaryOp is a host-executable stand-in for a two-argument operator
// body, used by the software device in place of compiling Body as
// device code. Built-in operators keep Eval and Body in lockstep by
// construction (see builtins.go); user-defined operators supplied only
// with Body cannot run on the software device: acquiring their kernel
// there fails with a NotImplemented cause.
type BinaryOp func(a, b float64) float64

// Op is a user- or built-in-registered operator descriptor: a key string
// (e.g. "PLUS_FLOAT"), the Kind determining its signature, and the textual
// body a program builder wraps into a static inline function.
type Op struct {
	Key  string
	Kind OpKind
	// RetType and ArgTypes are the Type keys of the operator's declared
	// signature, substituted into the wrapping "static inline RET
	// OP_NAME(args)" prologue by the program builder.
	RetType  string
	ArgTypes []string
	Body     string
	// Eval is the host-native equivalent of Body, used by the software
	// device. nil for operators only meant to run on an accelerator.
	Eval BinaryOp
}

// Hash returns a stable blake2b-256 content hash of the operator's key.
// Like Type.Hash, it is not called by the persistent program cache.
func (o Op) Hash() [32]byte { return blake2b.Sum256([]byte(o.Key)) }

// FunctionName returns the inline function name the program builder emits
// for this operator, e.g. "OP_PLUS_FLOAT".
func (o Op) FunctionName() string { return "OP_" + o.Key }
