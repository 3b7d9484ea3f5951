package ssa

import "fmt"

// Builder appends values to a function at a current block. It is the
// primitive toolkit the region code generators emit through: address
// computation, typed comparison, calls, branches, loops and traps.
//
// After a return or a trap the builder has no current block; emitting into
// it then panics, since such code would be unreachable.
type Builder struct {
	fn *Func
	b  *Block // current block (nil = unreachable)
}

// NewBuilder returns a builder positioned at the end of f's entry block.
func NewBuilder(f *Func) *Builder {
	if f.Entry == nil {
		panic(fmt.Sprintf("ssa.NewBuilder: func %s has no body", f.Name))
	}
	return &Builder{fn: f, b: f.Entry}
}

// Func returns the function being built.
func (b *Builder) Func() *Func { return b.fn }

// Block returns the current block, or nil if the position is unreachable.
func (b *Builder) Block() *Block { return b.b }

// SetBlock moves the insertion point to the end of blk.
func (b *Builder) SetBlock(blk *Block) { b.b = blk }

// Reachable reports whether there is a current block.
func (b *Builder) Reachable() bool { return b.b != nil }

// Param returns the i-th argument value of the function.
func (b *Builder) Param(i int) *Value { return b.fn.Args[i] }

func (b *Builder) value(op Op, typ Type, args ...*Value) *Value {
	if b.b == nil {
		panic(fmt.Sprintf("ssa.Builder: emitting %s into unreachable code in %s", op, b.fn.Name))
	}
	return b.fn.NewValue(b.b, op, typ, args...)
}

// Const returns an integer constant of type t.
func (b *Builder) Const(t *IntType, n int64) *Value {
	v := b.value(OpConst64, t)
	v.AuxInt = n
	return v
}

// Int returns an i64 constant.
func (b *Builder) Int(n int64) *Value { return b.Const(I64, n) }

// Bool returns an i1 constant.
func (b *Builder) Bool(x bool) *Value {
	v := b.value(OpConstBool, I1)
	if x {
		v.AuxInt = 1
	}
	return v
}

// Nil returns the null pointer.
func (b *Builder) Nil() *Value { return b.value(OpConstNil, Ptr) }

// Undef returns an undefined value of aggregate type t.
func (b *Builder) Undef(t Type) *Value { return b.value(OpUndef, t) }

// Add returns x + y.
func (b *Builder) Add(x, y *Value) *Value { return b.value(OpAdd64, x.Type, x, y) }

// Sub returns x - y.
func (b *Builder) Sub(x, y *Value) *Value { return b.value(OpSub64, x.Type, x, y) }

// Mul returns x * y.
func (b *Builder) Mul(x, y *Value) *Value { return b.value(OpMul64, x.Type, x, y) }

// Cmp emits an integer or pointer comparison and returns an i1.
func (b *Builder) Cmp(op Op, x, y *Value) *Value {
	switch op {
	case OpEq64, OpNeq64, OpLt64, OpLeq64, OpGt64, OpGeq64, OpEqPtr, OpNeqPtr:
	default:
		panic(fmt.Sprintf("ssa.Builder.Cmp: %s is not a comparison", op))
	}
	return b.value(op, I1, x, y)
}

// IsNull returns p == null.
func (b *Builder) IsNull(p *Value) *Value { return b.Cmp(OpEqPtr, p, b.Nil()) }

// Not returns !x.
func (b *Builder) Not(x *Value) *Value { return b.value(OpNot, I1, x) }

// And returns x & y. Both operands are evaluated.
func (b *Builder) And(x, y *Value) *Value { return b.value(OpAndBool, I1, x, y) }

// Or returns x | y. Both operands are evaluated.
func (b *Builder) Or(x, y *Value) *Value { return b.value(OpOrBool, I1, x, y) }

// Alloca reserves a stack slot of type t in the entry block, where mem2reg
// expects it, and returns its address.
func (b *Builder) Alloca(t Type) *Value {
	v := b.fn.NewValue(b.fn.Entry, OpAlloca, Ptr)
	v.Aux = t
	return v
}

// Load loads a value of type t from ptr.
func (b *Builder) Load(t Type, ptr *Value) *Value { return b.value(OpLoad, t, ptr) }

// Store stores val to ptr.
func (b *Builder) Store(ptr, val *Value) { b.value(OpStore, nil, ptr, val) }

// FieldPtr returns the address of field i of the st-typed object at ptr.
func (b *Builder) FieldPtr(st *StructType, ptr *Value, i int) *Value {
	if i < 0 || i >= len(st.Fields) {
		panic(fmt.Sprintf("ssa.Builder.FieldPtr: field %d out of range for %s", i, st))
	}
	v := b.value(OpStructFieldPtr, Ptr, ptr)
	v.Aux = st
	v.AuxInt = int64(i)
	return v
}

// IndexPtr returns the address of element idx of the at-typed array at
// ptr. No bounds check is emitted.
func (b *Builder) IndexPtr(at *ArrayType, ptr, idx *Value) *Value {
	v := b.value(OpArrayIndexPtr, Ptr, ptr, idx)
	v.Aux = at
	return v
}

// Insert returns agg with field i replaced by val.
func (b *Builder) Insert(agg, val *Value, i int) *Value {
	v := b.value(OpInsertValue, agg.Type, agg, val)
	v.AuxInt = int64(i)
	return v
}

// Extract returns field i of the aggregate agg.
func (b *Builder) Extract(agg *Value, i int) *Value {
	st, ok := agg.Type.(*StructType)
	if !ok || i < 0 || i >= len(st.Fields) {
		panic(fmt.Sprintf("ssa.Builder.Extract: field %d of %v", i, agg.Type))
	}
	v := b.value(OpExtractValue, st.Fields[i], agg)
	v.AuxInt = int64(i)
	return v
}

// Aggregate builds a value of struct type st from its fields.
func (b *Builder) Aggregate(st *StructType, fields ...*Value) *Value {
	v := b.Undef(st)
	for i, f := range fields {
		v = b.Insert(v, f, i)
	}
	return v
}

// Call emits a direct call. result is nil for void functions.
func (b *Builder) Call(name string, result Type, args ...*Value) *Value {
	v := b.value(OpStaticCall, result, args...)
	v.Aux = name
	return v
}

// CallPtr emits an indirect call through the function pointer fn.
func (b *Builder) CallPtr(fn *Value, result Type, args ...*Value) *Value {
	return b.value(OpCall, result, append([]*Value{fn}, args...)...)
}

// FuncAddr returns the address of the named function.
func (b *Builder) FuncAddr(name string) *Value {
	v := b.value(OpFuncAddr, Ptr)
	v.Aux = name
	return v
}

// GlobalAddr returns the address of the named global.
func (b *Builder) GlobalAddr(name string) *Value {
	v := b.value(OpGlobalAddr, Ptr)
	v.Aux = name
	return v
}

// NewAlloc allocates a t-typed object on the heap. If t ends in a
// zero-length array, count gives its run-time length; otherwise count
// must be nil.
func (b *Builder) NewAlloc(t Type, count *Value) *Value {
	var v *Value
	if count != nil {
		v = b.value(OpNewAlloc, Ptr, count)
	} else {
		v = b.value(OpNewAlloc, Ptr)
	}
	v.Aux = t
	return v
}

// Free releases a heap object.
func (b *Builder) Free(ptr *Value) { b.value(OpFree, nil, ptr) }

// AtomicAdd atomically adds delta to the integer at ptr and returns the
// previous value.
func (b *Builder) AtomicAdd(ptr, delta *Value, ord Ordering) *Value {
	v := b.value(OpAtomicAdd, delta.Type, ptr, delta)
	v.Aux = ord
	return v
}

// AtomicLoad atomically loads a t-typed value from ptr.
func (b *Builder) AtomicLoad(t Type, ptr *Value, ord Ordering) *Value {
	v := b.value(OpAtomicLoad, t, ptr)
	v.Aux = ord
	return v
}

// Fence emits a memory fence.
func (b *Builder) Fence(ord Ordering) {
	v := b.value(OpFence, nil)
	v.Aux = ord
}

// Panic traps with msg. The current block becomes an exit block and the
// builder is left without a current block.
func (b *Builder) Panic(msg string) {
	v := b.value(OpPanic, nil)
	v.Aux = msg
	b.b.Kind = BlockExit
	b.b = nil
}

// Return terminates the current block. val is nil for void returns.
func (b *Builder) Return(val *Value) {
	if b.b == nil {
		panic(fmt.Sprintf("ssa.Builder.Return: unreachable code in %s", b.fn.Name))
	}
	b.b.Kind = BlockReturn
	if val != nil {
		b.b.SetControl(val)
	}
	b.b = nil
}

// Jump ends the current block with an unconditional branch to target.
func (b *Builder) Jump(target *Block) {
	if b.b == nil {
		return
	}
	b.b.AddSucc(target)
	b.b = nil
}

// branch ends the current block with a conditional branch.
func (b *Builder) branch(cond *Value, then, els *Block) {
	b.b.Kind = BlockIf
	b.b.SetControl(cond)
	b.b.AddSucc(then)
	b.b.AddSucc(els)
	b.b = nil
}

// If emits a two-way branch on cond. Each arm runs at generation time with
// the builder positioned in a fresh block and returns the arm's result
// (nil when result is nil). An arm may end in a trap; its result is then
// ignored. els may be nil when result is nil.
//
// The returned value is the merged result, or nil for a void If. If
// neither arm falls through, the builder is left without a current block.
func (b *Builder) If(cond *Value, result Type, then, els func() *Value) *Value {
	if result != nil && els == nil {
		panic("ssa.Builder.If: a value-producing If needs an else arm")
	}
	thenB := b.fn.NewBlock(BlockPlain)
	done := b.fn.NewBlock(BlockPlain)
	elseB := done
	if els != nil {
		elseB = b.fn.NewBlock(BlockPlain)
	}
	b.branch(cond, thenB, elseB)

	var vals []*Value
	arm := func(blk *Block, fn func() *Value) {
		b.b = blk
		v := fn()
		if b.b != nil {
			vals = append(vals, v)
			b.Jump(done)
		}
	}
	arm(thenB, then)
	if els != nil {
		arm(elseB, els)
	}

	if len(done.Preds) == 0 {
		b.fn.RemoveBlock(done)
		b.b = nil
		return nil
	}
	b.b = done
	if result == nil {
		return nil
	}
	if len(vals) == 1 {
		return vals[0]
	}
	return b.value(OpPhi, result, vals...)
}

// While emits a loop: cond is evaluated in the loop header, body runs while
// it is true. Both callbacks run once, at generation time.
func (b *Builder) While(cond func() *Value, body func()) {
	header := b.fn.NewBlock(BlockPlain)
	bodyB := b.fn.NewBlock(BlockPlain)
	exit := b.fn.NewBlock(BlockPlain)

	b.Jump(header)
	b.b = header
	c := cond()
	b.branch(c, bodyB, exit)

	b.b = bodyB
	body()
	b.Jump(header)

	b.b = exit
}

// Assert traps with msg unless cond holds.
func (b *Builder) Assert(cond *Value, msg string) {
	ok := b.fn.NewBlock(BlockPlain)
	fail := b.fn.NewBlock(BlockPlain)
	b.branch(cond, ok, fail)
	b.b = fail
	b.Panic(msg)
	b.b = ok
}
