package types

// Mutability describes whether instances may change after construction.
type Mutability uint8

const (
	Mutable Mutability = iota
	Immutable
)

// String returns "mut" or "imm".
func (m Mutability) String() string {
	if m == Immutable {
		return "imm"
	}
	return "mut"
}

// Weakability describes whether weak references to instances may exist.
type Weakability uint8

const (
	NonWeakable Weakability = iota
	Weakable
)

// StructMember is one field of a struct definition.
type StructMember struct {
	Name string
	Type *Reference
}

// StructDefinition describes the payload of a struct kind.
type StructDefinition struct {
	Kind        *StructKind
	Mutability  Mutability
	Weakability Weakability
	Members     []*StructMember
	Edges       []*Edge // interfaces this struct implements
}

// NumMembers returns the number of members.
func (d *StructDefinition) NumMembers() int {
	return len(d.Members)
}

// Member returns the member at index i.
func (d *StructDefinition) Member(i int) *StructMember {
	return d.Members[i]
}

// Prototype is the signature of a function the generated code can call.
type Prototype struct {
	Name   string
	Params []*Reference
	Return *Reference
}

// InterfaceMethod is one abstract method of an interface. VirtualParam is
// the index of the parameter that carries the interface reference.
type InterfaceMethod struct {
	Prototype    *Prototype
	VirtualParam int
}

// InterfaceDefinition describes the methods of an interface kind.
type InterfaceDefinition struct {
	Kind       *InterfaceKind
	Mutability Mutability
	Methods    []*InterfaceMethod
}

// Edge declares that Struct implements Interface. Methods holds the
// concrete implementations, in the order of the interface's methods.
type Edge struct {
	Struct    *StructKind
	Interface *InterfaceKind
	Methods   []*Prototype
}

// StaticSizedArrayDefinition describes a fixed-size array kind.
type StaticSizedArrayDefinition struct {
	Kind        *StaticSizedArrayKind
	Size        int64
	Mutability  Mutability
	ElementType *Reference
}

// RuntimeSizedArrayDefinition describes a variable-size array kind.
type RuntimeSizedArrayDefinition struct {
	Kind        *RuntimeSizedArrayKind
	Mutability  Mutability
	ElementType *Reference
}
