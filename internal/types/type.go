// Package types implements the type graph consumed by the region code generators:
// kinds, interned reference descriptors, definitions and struct/interface edges.
// This package provides type representations without code generation dependencies.
package types

// Kind is the interface implemented by all type identities.
type Kind interface {
	// Name returns the declared name of the kind.
	// Primitive kinds return their spelling ("i64", "bool").
	Name() string

	// String returns a human-readable representation of the kind.
	String() string

	// aKind is a marker method to restrict implementations to this package.
	aKind()
}

// kind is a base struct for all kind implementations.
type kind struct{}

func (kind) aKind() {}
