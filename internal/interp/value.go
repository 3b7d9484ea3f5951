package interp

import (
	"fmt"
	"strings"

	"github.com/you-not-fish/regionc/internal/ssa"
)

// ValueKind is the dynamic kind of a Value.
type ValueKind int

const (
	VVoid ValueKind = iota
	VInt
	VPtr
	VAgg
)

// Value is a run-time SSA value. Integers of every width, booleans
// included, live in I; booleans are 0 or 1.
type Value struct {
	K ValueKind
	I int64   // VInt
	P Pointer // VPtr
	A []Value // VAgg fields
}

// Pointer addresses a storage cell of some object, or names a function.
// The zero Pointer is null.
type Pointer struct {
	c  *cell
	fn string
}

// Int returns an integer value.
func Int(n int64) Value { return Value{K: VInt, I: n} }

// Bool returns a boolean value.
func Bool(b bool) Value {
	if b {
		return Value{K: VInt, I: 1}
	}
	return Value{K: VInt}
}

// Null returns the null pointer.
func Null() Value { return Value{K: VPtr} }

// FuncPtr returns a pointer to the named function.
func FuncPtr(name string) Value { return Value{K: VPtr, P: Pointer{fn: name}} }

// Agg returns an aggregate with the given fields.
func Agg(fields ...Value) Value { return Value{K: VAgg, A: fields} }

// Truth reports whether a boolean value is true.
func (v Value) Truth() bool { return v.I != 0 }

// IsNull reports whether v is the null pointer.
func (v Value) IsNull() bool { return v.K == VPtr && v.P.c == nil && v.P.fn == "" }

// Func returns the function name of a function pointer, or "".
func (v Value) Func() string { return v.P.fn }

// Field returns field i of an aggregate.
func (v Value) Field(i int) Value {
	if v.K != VAgg || i < 0 || i >= len(v.A) {
		panic(fmt.Sprintf("interp.Value.Field: field %d of %s", i, v))
	}
	return v.A[i]
}

// SamePointer reports whether two pointer values address the same place.
func (v Value) SamePointer(w Value) bool { return pointerEq(v.P, w.P) }

func (v Value) String() string {
	switch v.K {
	case VInt:
		return fmt.Sprintf("%d", v.I)
	case VPtr:
		switch {
		case v.P.fn != "":
			return "@" + v.P.fn
		case v.P.c == nil:
			return "null"
		}
		return fmt.Sprintf("&#%d", v.P.c.obj.id)
	case VAgg:
		parts := make([]string, len(v.A))
		for i, f := range v.A {
			parts[i] = f.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return "void"
}

// cloneValue copies the field slices of aggregates so that InsertValue
// never aliases its operand.
func cloneValue(v Value) Value {
	if v.K != VAgg {
		return v
	}
	out := Value{K: VAgg, A: make([]Value, len(v.A))}
	for i, f := range v.A {
		out.A[i] = cloneValue(f)
	}
	return out
}

// zeroValue returns the zero value of t; undef aggregates start out as it.
func zeroValue(t ssa.Type) Value {
	switch t := t.(type) {
	case *ssa.IntType:
		return Value{K: VInt}
	case *ssa.PtrType:
		return Value{K: VPtr}
	case *ssa.StructType:
		fs := make([]Value, len(t.Fields))
		for i, f := range t.Fields {
			fs[i] = zeroValue(f)
		}
		return Value{K: VAgg, A: fs}
	case *ssa.ArrayType:
		fs := make([]Value, t.Len)
		for i := range fs {
			fs[i] = zeroValue(t.Elem)
		}
		return Value{K: VAgg, A: fs}
	}
	return Value{}
}

// wrap truncates n to a bits-wide two's complement integer. Booleans
// keep only their low bit.
func wrap(bits int, n int64) int64 {
	switch {
	case bits >= 64:
		return n
	case bits == 1:
		return n & 1
	}
	shift := uint(64 - bits)
	return n << shift >> shift
}
