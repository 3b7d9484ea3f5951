package interp

import (
	"fmt"

	"github.com/you-not-fish/regionc/internal/rtabi"
	"github.com/you-not-fish/regionc/internal/ssa"
)

// callBuiltin runs a runtime function. The bool result is false if name
// is not one.
func (t *thread) callBuiltin(name string, args []Value) (Value, bool, error) {
	sig, ok := rtabi.Lookup(name)
	if !ok {
		return Value{}, false, nil
	}
	if len(args) != len(sig.ParamTypes) {
		return Value{}, true, faultf(ErrBadAccess, "%s expects %d args, got %d", name, len(sig.ParamTypes), len(args))
	}
	m := t.m
	switch name {
	case rtabi.FnAlloc:
		// Untyped allocations are modeled as words.
		words := (args[0].I + rtabi.SizeInt - 1) / rtabi.SizeInt
		p, err := m.alloc(&ssa.ArrayType{Len: words, Elem: ssa.I64}, -1)
		return Value{K: VPtr, P: p}, true, err
	case rtabi.FnFree:
		return Value{}, true, m.free(args[0].P)
	case rtabi.FnPanicString:
		return Value{}, true, faultf(ErrPanic, "panic with a %d-byte message", args[1].I)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	switch name {
	case rtabi.FnWeakNew:
		return Int(m.weak.alloc()), true, nil
	case rtabi.FnWeakAcquire:
		return Value{}, true, m.weak.acquire(args[0].I)
	case rtabi.FnWeakRelease:
		return Value{}, true, m.weak.release(args[0].I)
	case rtabi.FnWeakIsAlive:
		alive, err := m.weak.isAlive(args[0].I)
		return Bool(alive), true, err
	case rtabi.FnWeakMarkDead:
		return Value{}, true, m.weak.markDead(args[0].I)
	case rtabi.FnWeakTryRetain:
		return m.tryRetain(args[0].I, args[1].P)
	}
	return Value{}, true, fmt.Errorf("interp: runtime function %s not implemented", name)
}

// controlBlockPrefix is the part of a control block every object shares:
// type tag and strong count.
var controlBlockPrefix = ssa.NewStruct(ssa.I64, ssa.I64)

// tryRetain increments the strong count of the object at obj if record h
// is alive and the count is nonzero, atomically with respect to mark_dead.
// A dead record's object may already be freed and is not touched. The
// caller holds m.mu.
func (m *Machine) tryRetain(h int64, obj Pointer) (Value, bool, error) {
	alive, err := m.weak.isAlive(h)
	if err != nil || !alive {
		return Bool(false), true, err
	}
	c, err := m.deref(obj, "rt_weak_try_retain")
	if err != nil {
		return Value{}, true, err
	}
	cb := find(c, func(c *cell) bool {
		ct, ok := c.typ.(*ssa.StructType)
		return ok && hasPrefix(ct, controlBlockPrefix)
	})
	if cb == nil {
		return Value{}, true, faultf(ErrBadAccess, "rt_weak_try_retain on %s storage of object #%d", c.typ, c.obj.id)
	}
	rc := cb.elems[rtabi.CBStrongRCField]
	if rc.val.I <= 0 {
		return Bool(false), true, nil
	}
	rc.val = Int(rc.val.I + 1)
	return Bool(true), true, nil
}
