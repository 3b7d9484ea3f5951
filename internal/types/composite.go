package types

// StructKind is the identity of a declared struct.
type StructKind struct {
	kind
	name string
}

// Name implements Kind.
func (s *StructKind) Name() string {
	return s.name
}

// String implements Kind.
func (s *StructKind) String() string {
	return "struct " + s.name
}

// InterfaceKind is the identity of a declared interface.
type InterfaceKind struct {
	kind
	name string
}

// Name implements Kind.
func (i *InterfaceKind) Name() string {
	return i.name
}

// String implements Kind.
func (i *InterfaceKind) String() string {
	return "interface " + i.name
}

// StaticSizedArrayKind is the identity of a fixed-size array type.
// Its length is part of the definition, known at compile time and never stored.
type StaticSizedArrayKind struct {
	kind
	name string
}

// Name implements Kind.
func (a *StaticSizedArrayKind) Name() string {
	return a.name
}

// String implements Kind.
func (a *StaticSizedArrayKind) String() string {
	return "ssa " + a.name
}

// RuntimeSizedArrayKind is the identity of a variable-size array type.
// Its length is stored in the instance after the control block.
type RuntimeSizedArrayKind struct {
	kind
	name string
}

// Name implements Kind.
func (a *RuntimeSizedArrayKind) Name() string {
	return a.name
}

// String implements Kind.
func (a *RuntimeSizedArrayKind) String() string {
	return "rsa " + a.name
}
