package codegen

import (
	"fmt"
	"strings"

	"github.com/you-not-fish/regionc/internal/ssa"
)

// llvmType maps an SSA type to its LLVM IR type string. A nil type is a
// void result.
func llvmType(t ssa.Type) string {
	if t == nil {
		return "void"
	}
	return t.String()
}

// llvmGlobal returns the @-prefixed LLVM name of a module-level symbol.
func llvmGlobal(name string) string {
	return "@" + ssa.QuoteIdent(name)
}

// llvmParamList returns the parameter list of a function definition or,
// when named is false, of a declaration.
func llvmParamList(f *ssa.Func, named bool) string {
	parts := make([]string, len(f.Params))
	for i, p := range f.Params {
		if named {
			parts[i] = fmt.Sprintf("%s %s", llvmType(p.Type), paramName(p.Name, i))
		} else {
			parts[i] = llvmType(p.Type)
		}
	}
	return strings.Join(parts, ", ")
}

// paramName returns the LLVM local name of parameter i.
func paramName(name string, i int) string {
	if name == "" {
		return fmt.Sprintf("%%arg%d", i)
	}
	return "%" + ssa.QuoteIdent(name)
}

// alignOf returns the natural alignment of a scalar type, used by atomic
// loads, which LLVM requires to carry an explicit alignment.
func alignOf(t ssa.Type) int {
	if it, ok := t.(*ssa.IntType); ok {
		n := (it.Bits + 7) / 8
		if n < 1 {
			n = 1
		}
		return n
	}
	return 8
}

// trailingArray returns the field index of the zero-length array that ends
// st, or -1 if st has none.
func trailingArray(st *ssa.StructType) int {
	if len(st.Fields) == 0 {
		return -1
	}
	last := len(st.Fields) - 1
	if at, ok := st.Fields[last].(*ssa.ArrayType); ok && at.Len == 0 {
		return last
	}
	return -1
}
