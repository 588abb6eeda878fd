// Package kernelcache implements the program builder and cache (spec.md
// §4.1): at-runtime kernel source assembly from a template plus
// type/operator substitutions, keyed compilation, and a process-wide
// cache of compiled artifacts.
package kernelcache

import (
	"fmt"
	"sort"
	"strings"

	"splax/internal/descriptor"
	"splax/internal/status"
)

// Builder assembles a specialized kernel source from a template plus a
// set of defines, type aliases, and operator bindings, following the
// ordered substitution rule of spec.md §4.1: defines, then type aliases,
// then operators.
type Builder struct {
	templateName string
	templateText string
	defines      map[string]int
	types        map[string]descriptor.Type
	ops          map[string]descriptor.Op
	err          error
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		defines: make(map[string]int),
		types:   make(map[string]descriptor.Type),
		ops:     make(map[string]descriptor.Op),
	}
}

// SetName selects the template by name; the program cache is keyed in
// part on this name.
func (b *Builder) SetName(name string) *Builder {
	b.templateName = name
	return b
}

// SetSource supplies the template text.
func (b *Builder) SetSource(text string) *Builder {
	b.templateText = text
	return b
}

// AddDefine adds a preprocessor define substituted ahead of type and
// operator expansion.
func (b *Builder) AddDefine(name string, value int) *Builder {
	b.defines[name] = value
	return b
}

// AddType binds an alias token to a Type; alias expands to a typedef
// plus a TYPE_SIZE macro. Rebinding an alias already in use is a
// duplicate-alias error, surfaced by Assemble/Acquire.
func (b *Builder) AddType(alias string, t descriptor.Type) *Builder {
	if _, exists := b.types[alias]; exists && b.err == nil {
		b.err = status.New(status.CompilationError, b.templateName, "duplicate-alias: %s", alias)
	}
	b.types[alias] = t
	return b
}

// AddOp binds a function-name token to an Op; the body is wrapped as a
// "static inline RET OP_NAME(args) { body }" declaration.
func (b *Builder) AddOp(name string, op descriptor.Op) *Builder {
	b.ops[name] = op
	return b
}

// Key computes the exact-match cache key for the current builder state:
// the concatenation of template name, sorted defines, sorted type keys,
// and sorted op keys, per spec.md §4.1.
func (b *Builder) Key() string {
	var sb strings.Builder
	sb.WriteString(b.templateName)

	defineNames := make([]string, 0, len(b.defines))
	for name := range b.defines {
		defineNames = append(defineNames, name)
	}
	sort.Strings(defineNames)
	for _, name := range defineNames {
		fmt.Fprintf(&sb, "|D:%s=%d", name, b.defines[name])
	}

	typeAliases := make([]string, 0, len(b.types))
	for alias := range b.types {
		typeAliases = append(typeAliases, alias)
	}
	sort.Strings(typeAliases)
	for _, alias := range typeAliases {
		fmt.Fprintf(&sb, "|T:%s=%s", alias, b.types[alias].Key())
	}

	opNames := make([]string, 0, len(b.ops))
	for name := range b.ops {
		opNames = append(opNames, name)
	}
	sort.Strings(opNames)
	for _, name := range opNames {
		fmt.Fprintf(&sb, "|O:%s=%s", name, b.ops[name].Key)
	}

	return sb.String()
}

// Assemble performs the purely textual substitution pass: defines
// first, then type aliases (typedef + TYPE_SIZE macro), then operators
// (static inline wrapper), exactly as spec.md §4.1 describes. No
// parsing of the template is performed.
func (b *Builder) Assemble() (string, error) {
	if b.err != nil {
		return "", b.err
	}
	if b.templateText == "" {
		return "", status.New(status.CompilationError, b.templateName, "unknown-template: %q has no source", b.templateName)
	}

	var header strings.Builder

	defineNames := make([]string, 0, len(b.defines))
	for name := range b.defines {
		defineNames = append(defineNames, name)
	}
	sort.Strings(defineNames)
	for _, name := range defineNames {
		fmt.Fprintf(&header, "#define %s %d\n", name, b.defines[name])
	}

	typeAliases := make([]string, 0, len(b.types))
	for alias := range b.types {
		typeAliases = append(typeAliases, alias)
	}
	sort.Strings(typeAliases)
	for _, alias := range typeAliases {
		t := b.types[alias]
		fmt.Fprintf(&header, "typedef %s %s;\n#define %s_SIZE %d\n", t.Decl, alias, alias, t.Size)
	}

	opNames := make([]string, 0, len(b.ops))
	for name := range b.ops {
		opNames = append(opNames, name)
	}
	sort.Strings(opNames)
	for _, name := range opNames {
		op := b.ops[name]
		args := make([]string, len(op.ArgTypes))
		for i, argType := range op.ArgTypes {
			args[i] = fmt.Sprintf("%s %s", argType, string(rune('a'+i)))
		}
		fmt.Fprintf(&header, "static inline %s %s(%s) { %s }\n",
			op.RetType, name, strings.Join(args, ", "), op.Body)
	}

	return header.String() + b.templateText, nil
}
