package types

import "fmt"

// Int is a signed integer kind of a fixed bit width.
type Int struct {
	kind
	bits int
}

// Bits returns the bit width of the integer.
func (i *Int) Bits() int {
	return i.bits
}

// Name implements Kind.
func (i *Int) Name() string {
	return fmt.Sprintf("i%d", i.bits)
}

// String implements Kind.
func (i *Int) String() string {
	return i.Name()
}

// Bool is the boolean kind.
type Bool struct {
	kind
}

// Name implements Kind.
func (*Bool) Name() string { return "bool" }

// String implements Kind.
func (*Bool) String() string { return "bool" }

// Void is the kind of operations that produce no value.
type Void struct {
	kind
}

// Name implements Kind.
func (*Void) Name() string { return "void" }

// String implements Kind.
func (*Void) String() string { return "void" }

// Never is the kind of expressions that never produce a value
// (a branch that always traps, for example).
type Never struct {
	kind
}

// Name implements Kind.
func (*Never) Name() string { return "never" }

// String implements Kind.
func (*Never) String() string { return "never" }
