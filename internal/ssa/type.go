package ssa

import (
	"fmt"
	"strings"

	"github.com/you-not-fish/regionc/internal/rtabi"
)

// Type is the low-level type of an SSA value or of a memory location.
// It mirrors the LLVM type system closely enough that codegen can print it
// directly.
type Type interface {
	String() string
	aType()
}

// IntType is an integer of the given bit width. Booleans are I1.
type IntType struct {
	Bits int
}

// PtrType is the opaque pointer type.
type PtrType struct{}

// VoidType is the result type of functions that return nothing.
type VoidType struct{}

// StructType is an aggregate. A named struct prints as %Name and is
// declared once at module level; an anonymous one prints its body.
type StructType struct {
	Name   string
	Fields []Type
}

// ArrayType is a fixed-length array. Len 0 describes trailing storage
// whose real length is only known at run time.
type ArrayType struct {
	Len  int64
	Elem Type
}

func (*IntType) aType() {}
func (*PtrType) aType() {}
func (*VoidType) aType() {}
func (*StructType) aType() {}
func (*ArrayType) aType() {}

// Predeclared scalar types.
var (
	I1   = &IntType{Bits: 1}
	I8   = &IntType{Bits: 8}
	I32  = &IntType{Bits: 32}
	I64  = &IntType{Bits: 64}
	Ptr  = &PtrType{}
	Void = &VoidType{}
)

// IntOf returns the predeclared integer type of the given width,
// or a fresh one for unusual widths.
func IntOf(bits int) *IntType {
	switch bits {
	case 1:
		return I1
	case 8:
		return I8
	case 32:
		return I32
	case 64:
		return I64
	}
	return &IntType{Bits: bits}
}

func (t *IntType) String() string { return fmt.Sprintf("i%d", t.Bits) }
func (*PtrType) String() string { return rtabi.LLVMTypePtr }
func (*VoidType) String() string { return "void" }

func (t *ArrayType) String() string {
	return fmt.Sprintf("[%d x %s]", t.Len, t.Elem)
}

// String returns %Name for named structs and the literal body otherwise.
func (t *StructType) String() string {
	if t.Name != "" {
		return "%" + QuoteIdent(t.Name)
	}
	return t.Body()
}

// Body returns the literal body of the struct, e.g. "{ i64, ptr }".
func (t *StructType) Body() string {
	if len(t.Fields) == 0 {
		return "{}"
	}
	parts := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		parts[i] = f.String()
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

// SetBody fills in the fields of a named struct created opaque. It panics
// if the body is already set.
func (t *StructType) SetBody(fields ...Type) {
	if t.Fields != nil {
		panic(fmt.Sprintf("ssa.SetBody: %s already has a body", t))
	}
	if fields == nil {
		fields = []Type{}
	}
	t.Fields = fields
}

// NewStruct returns an anonymous struct type.
func NewStruct(fields ...Type) *StructType {
	return &StructType{Fields: fields}
}

// Identical reports whether two types describe the same layout. Named
// structs are identical only to themselves.
func Identical(a, b Type) bool {
	if a == b {
		return true
	}
	switch a := a.(type) {
	case *IntType:
		b, ok := b.(*IntType)
		return ok && a.Bits == b.Bits
	case *PtrType:
		_, ok := b.(*PtrType)
		return ok
	case *VoidType:
		_, ok := b.(*VoidType)
		return ok
	case *ArrayType:
		b, ok := b.(*ArrayType)
		return ok && a.Len == b.Len && Identical(a.Elem, b.Elem)
	case *StructType:
		b, ok := b.(*StructType)
		if !ok || a.Name != "" || b.Name != "" || len(a.Fields) != len(b.Fields) {
			return false
		}
		for i := range a.Fields {
			if !Identical(a.Fields[i], b.Fields[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// QuoteIdent quotes an LLVM identifier when it contains characters
// outside [A-Za-z0-9._$-].
func QuoteIdent(name string) string {
	for i := 0; i < len(name); i++ {
		c := name[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
			c == '.' || c == '_' || c == '$' || c == '-') {
			return `"` + name + `"`
		}
	}
	return name
}
