package types

// IsPrimitive reports whether k is a primitive kind (integer, bool, void, never).
func IsPrimitive(k Kind) bool {
	switch k.(type) {
	case *Int, *Bool, *Void, *Never:
		return true
	}
	return false
}

// IsInline reports whether values of r live in their container rather than
// behind a pointer.
func IsInline(r *Reference) bool {
	return r.Location == Inline
}

// IsStrong reports whether holding r keeps its referent alive, so that
// aliasing it must be counted.
func IsStrong(r *Reference) bool {
	if r.Location == Inline {
		return false
	}
	return r.Ownership == Owning || r.Ownership == Share
}

// IsInterface reports whether r refers to an interface kind.
func IsInterface(r *Reference) bool {
	_, ok := r.Kind.(*InterfaceKind)
	return ok
}

// IsArray reports whether k is a static- or runtime-sized array kind.
func IsArray(k Kind) bool {
	switch k.(type) {
	case *StaticSizedArrayKind, *RuntimeSizedArrayKind:
		return true
	}
	return false
}

// Weakability returns whether instances of k may be weakly referenced.
// Only struct definitions can opt into weakability.
func (p *Program) Weakability(k Kind) Weakability {
	if s, ok := k.(*StructKind); ok {
		if d := p.structByKind[s]; d != nil {
			return d.Weakability
		}
	}
	return NonWeakable
}
