package types

import "fmt"

// Ownership describes what a reference is allowed to do with its referent.
type Ownership uint8

const (
	// Owning is the single reference responsible for destroying the object.
	Owning Ownership = iota
	// Constraint is a borrowed reference that must not outlive the owner.
	Constraint
	// Weak is a reference that does not keep the object alive and must be
	// locked before use.
	Weak
	// Share is a counted reference to an immutable shared object.
	Share
)

// String returns a human-readable representation of the ownership.
func (o Ownership) String() string {
	switch o {
	case Owning:
		return "own"
	case Constraint:
		return "&"
	case Weak:
		return "&&"
	case Share:
		return "share"
	default:
		return "?"
	}
}

// Location describes where the referent is stored.
type Location uint8

const (
	// Inline values live directly in their container (or in a register).
	Inline Location = iota
	// Yonder values are boxed on the heap and reached through a pointer.
	Yonder
)

// String returns a human-readable representation of the location.
func (l Location) String() string {
	if l == Inline {
		return "inl"
	}
	return "yon"
}

// Reference is a compile-time descriptor pairing a kind with an ownership
// mode and a storage location. References are interned by Cache, so two
// descriptors denote the same thing exactly when they are the same pointer.
type Reference struct {
	Ownership Ownership
	Location  Location
	Kind      Kind
}

// String implements fmt.Stringer.
func (r *Reference) String() string {
	return fmt.Sprintf("%s %s %s", r.Ownership, r.Location, r.Kind.Name())
}
