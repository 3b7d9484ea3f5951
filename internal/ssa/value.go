package ssa

import "fmt"

// ID is a unique identifier for Values and Blocks within a Func.
type ID int32

// Value represents a single SSA computation.
// Each Value has exactly one definition and may be used by other Values.
type Value struct {
	// ID is a unique identifier within the containing Func.
	ID ID

	// Op is the operation this value computes.
	Op Op

	// Type is the result type of this value.
	// Nil for void operations (Store, Fence, Panic) and void calls.
	Type Type

	// Args are the input values to this operation.
	Args []*Value

	// Block is the basic block that contains this value.
	Block *Block

	// AuxInt holds an auxiliary integer (e.g., constant value, field index).
	AuxInt int64

	// Aux holds arbitrary auxiliary data (e.g., callee name, element Type,
	// memory Ordering, panic message).
	Aux interface{}

	// Uses tracks the number of references to this value.
	// Used by DCE to identify dead values.
	Uses int32
}

// String returns a short string representation of the value (e.g., "v5").
func (v *Value) String() string {
	return fmt.Sprintf("v%d", v.ID)
}

// LongString returns a detailed string representation including op, type, and args.
func (v *Value) LongString() string {
	s := fmt.Sprintf("v%d = %s", v.ID, v.Op)
	if v.Type != nil {
		s += fmt.Sprintf(" <%s>", v.Type)
	}
	if v.AuxInt != 0 || v.Op == OpConst64 || v.Op == OpConstBool {
		s += fmt.Sprintf(" [%d]", v.AuxInt)
	}
	if v.Aux != nil {
		s += fmt.Sprintf(" {%s}", formatAux(v.Aux))
	}
	for _, arg := range v.Args {
		s += " " + arg.String()
	}
	return s
}

// AddArg appends a value to the argument list and increments the arg's use count.
func (v *Value) AddArg(arg *Value) {
	v.Args = append(v.Args, arg)
	arg.Uses++
}

// SetArgs replaces the argument list, adjusting use counts.
func (v *Value) SetArgs(args []*Value) {
	// Decrement old uses
	for _, old := range v.Args {
		old.Uses--
	}
	v.Args = args
	// Increment new uses
	for _, arg := range args {
		arg.Uses++
	}
}

// ReplaceArg replaces the argument at index i, adjusting use counts.
func (v *Value) ReplaceArg(i int, new *Value) {
	old := v.Args[i]
	old.Uses--
	v.Args[i] = new
	new.Uses++
}

// IsPure returns true if this value's op has no side effects.
func (v *Value) IsPure() bool {
	return v.Op.IsPure()
}

// IsConst reports whether v is a constant inlined at its use sites.
func (v *Value) IsConst() bool {
	return v.Op.IsConst()
}

// ElemType returns the element type recorded in Aux by Alloca and NewAlloc.
func (v *Value) ElemType() Type {
	t, _ := v.Aux.(Type)
	return t
}

// Ordering returns the memory ordering of an atomic op or fence.
func (v *Value) Ordering() Ordering {
	o, _ := v.Aux.(Ordering)
	return o
}

// Name returns the symbol name in Aux (callee, global, panic message).
func (v *Value) Name() string {
	s, _ := v.Aux.(string)
	return s
}
