package region

import (
	"github.com/you-not-fish/regionc/internal/ssa"
	"github.com/you-not-fish/regionc/internal/types"
)

// outOfBoundsMsg is the trap message of a failed index check.
const outOfBoundsMsg = "Index out of bounds!"

// Elements describes the element storage of one array instance.
type Elements struct {
	Ptr     *ssa.Value       // address of the storage
	Type    *ssa.ArrayType   // storage type; Len 0 for runtime-sized arrays
	Element *types.Reference // declared element reference
	Size    Ref              // number of elements, an integer
}

// CheckIndexInBounds traps unless 0 <= index < size and returns the
// validated index. It precedes every element address computation. index
// and size must be integers of the same width.
func CheckIndexInBounds(b *ssa.Builder, size, index Ref) *ssa.Value {
	if it, st := intType(index), intType(size); it.Bits != st.Bits {
		internalf("CheckIndexInBounds", "index is i%d but size is i%d", it.Bits, st.Bits)
	}
	nonNegative := b.Cmp(ssa.OpGeq64, index.Value, b.Const(intType(index), 0))
	underLength := b.Cmp(ssa.OpLt64, index.Value, size.Value)
	b.Assert(b.And(nonNegative, underLength), outOfBoundsMsg)
	return index.Value
}

func intType(r Ref) *ssa.IntType {
	t, ok := r.Value.Type.(*ssa.IntType)
	if !ok {
		internalf("CheckIndexInBounds", "%s is not an integer", r.Type)
	}
	return t
}

// LoadElement reads element index of e, checked against e.Size, and
// returns it typed by the element reference after validating it in the
// element's region. No ownership is taken.
func LoadElement(gs *GlobalState, b *ssa.Builder, e Elements, index Ref) Ref {
	idx := CheckIndexInBounds(b, e.Size, index)
	v := b.Load(e.Type.Elem, b.IndexPtr(e.Type, e.Ptr, idx))
	r := Ref{Type: e.Element, Value: v}
	gs.RegionFor(e.Element.Kind).CheckValidReference(b, r)
	return r
}

// storeInnerArrayMember writes val into element idx of e. Callers have
// validated the index and the value.
func storeInnerArrayMember(b *ssa.Builder, e Elements, idx, val *ssa.Value) {
	b.Store(b.IndexPtr(e.Type, e.Ptr, idx), val)
}

// SwapElement replaces element index of e with value and returns the
// previous occupant, whose ownership passes to the caller. The load
// precedes the store. Inline element storage cannot be swapped; that is
// an internal error.
func SwapElement(gs *GlobalState, b *ssa.Builder, e Elements, index, value Ref) Ref {
	if types.IsInline(e.Element) {
		internalf("SwapElement", "cannot swap inline element of type %s", e.Element)
	}
	idx := CheckIndexInBounds(b, e.Size, index)
	gs.RegionFor(e.Element.Kind).CheckValidReference(b, value)
	old := LoadElement(gs, b, e, index)
	storeInnerArrayMember(b, e, idx, value.Value)
	return old
}

// InitializeElement moves value into element index of e, which must not
// hold a value yet.
func InitializeElement(gs *GlobalState, b *ssa.Builder, e Elements, index, value Ref) {
	idx := CheckIndexInBounds(b, e.Size, index)
	gs.RegionFor(e.Element.Kind).CheckValidReference(b, value)
	storeInnerArrayMember(b, e, idx, value.Value)
}

// IterationBody emits the body of an index loop. EmitBody runs once, at
// generation time, with the builder inside the loop.
type IterationBody interface {
	EmitBody(b *ssa.Builder, index Ref)
}

// BodyFunc adapts a function to IterationBody.
type BodyFunc func(b *ssa.Builder, index Ref)

// EmitBody calls f.
func (f BodyFunc) EmitBody(b *ssa.Builder, index Ref) { f(b, index) }

// IntRangeLoop emits a loop running body for 0, 1, ..., size-1.
func IntRangeLoop(b *ssa.Builder, size Ref, body IterationBody) {
	t := intType(size)
	counter := b.Alloca(t)
	b.Store(counter, b.Const(t, 0))
	b.While(func() *ssa.Value {
		return b.Cmp(ssa.OpLt64, b.Load(t, counter), size.Value)
	}, func() {
		i := b.Load(t, counter)
		body.EmitBody(b, Ref{Type: size.Type, Value: i})
		b.Store(counter, b.Add(i, b.Const(t, 1)))
	})
}

// IntRangeLoopReverse emits a loop running body for size-1, ..., 1, 0.
// The counter is decremented before the body runs.
func IntRangeLoopReverse(b *ssa.Builder, size Ref, body IterationBody) {
	t := intType(size)
	counter := b.Alloca(t)
	b.Store(counter, size.Value)
	b.While(func() *ssa.Value {
		return b.Cmp(ssa.OpGt64, b.Load(t, counter), b.Const(t, 0))
	}, func() {
		i := b.Sub(b.Load(t, counter), b.Const(t, 1))
		b.Store(counter, i)
		body.EmitBody(b, Ref{Type: size.Type, Value: i})
	})
}
