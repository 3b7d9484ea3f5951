// Package interp executes SSA modules. It stands in for the native runtime:
// a slot-addressed heap that detects use after free, double free and
// out-of-range element accesses, plus the rt_* runtime functions.
//
// A Machine may be called from many goroutines at once. Every memory
// access and runtime call is serialized on one lock, so atomic operations
// are atomic and plain ones never race at the Go level.
package interp

import (
	"errors"
	"fmt"
	"sync"

	"github.com/you-not-fish/regionc/internal/ssa"
)

// DefaultMaxDepth bounds the interpreted call depth.
const DefaultMaxDepth = 10000

// Extern implements a function the module only declares.
type Extern func(m *Machine, args []Value) (Value, error)

// Stats counts heap and weak-table activity.
type Stats struct {
	Allocs      int64
	Frees       int64
	WeakRecords int64 // liveness records not yet recycled
}

// Live returns the number of heap objects not yet freed.
func (s Stats) Live() int64 { return s.Allocs - s.Frees }

// Machine runs the functions of one module.
type Machine struct {
	mod      *ssa.Module
	MaxDepth int

	mu      sync.Mutex
	globals map[string]*object
	externs map[string]Extern
	weak    weakTable
	stats   Stats
	nextID  int64
}

// New returns a machine for mod. The module must verify.
func New(mod *ssa.Module) (*Machine, error) {
	if err := mod.Verify(); err != nil {
		return nil, fmt.Errorf("interp: %w", err)
	}
	m := &Machine{
		mod:      mod,
		MaxDepth: DefaultMaxDepth,
		globals:  make(map[string]*object),
		externs:  make(map[string]Extern),
	}
	for _, g := range mod.Globals {
		obj := m.newObject(g.Type, -1)
		obj.readonly = true
		for i, c := range g.Init {
			if i >= len(obj.root.elems) {
				return nil, fmt.Errorf("interp: global %s: %d initializers for %s", g.Name, len(g.Init), g.Type)
			}
			switch c := c.(type) {
			case ssa.ConstInt:
				obj.root.elems[i].val = Int(wrap(c.Type.Bits, c.Value))
			case ssa.ConstFunc:
				obj.root.elems[i].val = FuncPtr(c.Name)
			}
		}
		m.globals[g.Name] = obj
	}
	return m, nil
}

// Register installs fn as the implementation of the declared function name.
func (m *Machine) Register(name string, fn Extern) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.externs[name] = fn
}

// Stats returns a snapshot of the heap counters.
func (m *Machine) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.WeakRecords = m.weak.inUse()
	return s
}

// Load reads a t-typed value at the pointer p, for inspecting the heap
// from tests and externs.
func (m *Machine) Load(t ssa.Type, p Value) (Value, error) {
	return m.load(t, p.P)
}

// Call runs the named function with args. A trap or memory-safety
// violation is returned as a *Fault.
func (m *Machine) Call(name string, args ...Value) (Value, error) {
	t := &thread{m: m}
	return t.call(name, args)
}

// thread is the state of one Call: the interpreted call depth.
type thread struct {
	m     *Machine
	depth int
}

// frame holds the values computed so far by one activation.
type frame struct {
	fn   *ssa.Func
	vals map[*ssa.Value]Value
}

func (t *thread) call(name string, args []Value) (Value, error) {
	if v, ok, err := t.callBuiltin(name, args); ok {
		return v, locate(err, name)
	}
	m := t.m
	m.mu.Lock()
	ext := m.externs[name]
	m.mu.Unlock()
	if ext != nil {
		v, err := ext(m, args)
		if err != nil {
			var f *Fault
			if errors.As(err, &f) {
				return Value{}, locate(err, name)
			}
			return Value{}, &Fault{Func: name, Msg: err.Error(), Err: err}
		}
		return v, nil
	}

	fn := m.mod.Func(name)
	if fn == nil || fn.IsDecl() {
		return Value{}, &Fault{Func: name, Msg: "call of undefined function", Err: ErrUndefined}
	}
	if len(args) != len(fn.Params) {
		return Value{}, &Fault{Func: name, Msg: fmt.Sprintf("called with %d args, want %d", len(args), len(fn.Params)), Err: ErrBadAccess}
	}
	if t.depth >= m.MaxDepth {
		return Value{}, &Fault{Func: name, Msg: "call depth exceeded", Err: ErrBadAccess}
	}
	t.depth++
	defer func() { t.depth-- }()
	v, err := t.run(fn, args)
	return v, locate(err, name)
}

// locate fills in the function of a Fault raised without one.
func locate(err error, name string) error {
	var f *Fault
	if errors.As(err, &f) && f.Func == "" {
		f.Func = name
	}
	return err
}

func (t *thread) run(fn *ssa.Func, args []Value) (Value, error) {
	fr := &frame{fn: fn, vals: make(map[*ssa.Value]Value, fn.NumValues())}
	for i, a := range fn.Args {
		fr.vals[a] = args[i]
	}

	var prev *ssa.Block
	b := fn.Entry
	for {
		if prev != nil {
			if err := t.enterBlock(fr, b, prev); err != nil {
				return Value{}, err
			}
		}
		for _, v := range b.Values {
			if v.Op == ssa.OpPhi || v.Op == ssa.OpArg || v.IsConst() {
				continue
			}
			r, err := t.exec(fr, v)
			if err != nil {
				return Value{}, err
			}
			fr.vals[v] = r
		}

		switch b.Kind {
		case ssa.BlockPlain:
			prev, b = b, b.Succs[0]
		case ssa.BlockIf:
			c, err := t.get(fr, b.Controls[0])
			if err != nil {
				return Value{}, err
			}
			if c.Truth() {
				prev, b = b, b.Succs[0]
			} else {
				prev, b = b, b.Succs[1]
			}
		case ssa.BlockReturn:
			if len(b.Controls) == 0 {
				return Value{}, nil
			}
			return t.get(fr, b.Controls[0])
		default:
			return Value{}, faultf(ErrUnreachable, "fell off exit block %s", b)
		}
	}
}

// enterBlock evaluates the phis of b for the edge from prev. All phis read
// their inputs before any of them is written.
func (t *thread) enterBlock(fr *frame, b, prev *ssa.Block) error {
	idx := -1
	for i, p := range b.Preds {
		if p == prev {
			idx = i
			break
		}
	}
	if idx < 0 {
		return faultf(ErrUnreachable, "%s entered from non-predecessor %s", b, prev)
	}
	var phis []*ssa.Value
	var vals []Value
	for _, v := range b.Values {
		if v.Op != ssa.OpPhi {
			continue
		}
		x, err := t.get(fr, v.Args[idx])
		if err != nil {
			return err
		}
		phis = append(phis, v)
		vals = append(vals, x)
	}
	for i, v := range phis {
		fr.vals[v] = vals[i]
	}
	return nil
}

// get returns the value of v. Constants are computed on use, as codegen
// inlines them.
func (t *thread) get(fr *frame, v *ssa.Value) (Value, error) {
	switch v.Op {
	case ssa.OpConst64:
		return Int(wrap(v.Type.(*ssa.IntType).Bits, v.AuxInt)), nil
	case ssa.OpConstBool:
		return Bool(v.AuxInt != 0), nil
	case ssa.OpConstNil:
		return Null(), nil
	case ssa.OpUndef:
		return zeroValue(v.Type), nil
	case ssa.OpFuncAddr:
		return FuncPtr(v.Name()), nil
	case ssa.OpGlobalAddr:
		obj := t.m.globals[v.Name()]
		if obj == nil {
			return Value{}, faultf(ErrBadAccess, "undefined global @%s", v.Name())
		}
		return Value{K: VPtr, P: Pointer{c: obj.root}}, nil
	}
	x, ok := fr.vals[v]
	if !ok {
		return Value{}, faultf(ErrBadAccess, "%s used before it was computed", v)
	}
	return x, nil
}

// args returns the values of v's arguments.
func (t *thread) args(fr *frame, vs []*ssa.Value) ([]Value, error) {
	out := make([]Value, len(vs))
	for i, a := range vs {
		x, err := t.get(fr, a)
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	return out, nil
}

// exec runs one non-constant value.
func (t *thread) exec(fr *frame, v *ssa.Value) (Value, error) {
	m := t.m
	a, err := t.args(fr, v.Args)
	if err != nil {
		return Value{}, err
	}
	switch v.Op {
	case ssa.OpAdd64, ssa.OpSub64, ssa.OpMul64:
		bits := v.Type.(*ssa.IntType).Bits
		var n int64
		switch v.Op {
		case ssa.OpAdd64:
			n = a[0].I + a[1].I
		case ssa.OpSub64:
			n = a[0].I - a[1].I
		default:
			n = a[0].I * a[1].I
		}
		return Int(wrap(bits, n)), nil

	case ssa.OpEq64:
		return Bool(a[0].I == a[1].I), nil
	case ssa.OpNeq64:
		return Bool(a[0].I != a[1].I), nil
	case ssa.OpLt64:
		return Bool(a[0].I < a[1].I), nil
	case ssa.OpLeq64:
		return Bool(a[0].I <= a[1].I), nil
	case ssa.OpGt64:
		return Bool(a[0].I > a[1].I), nil
	case ssa.OpGeq64:
		return Bool(a[0].I >= a[1].I), nil
	case ssa.OpEqPtr:
		return Bool(pointerEq(a[0].P, a[1].P)), nil
	case ssa.OpNeqPtr:
		return Bool(!pointerEq(a[0].P, a[1].P)), nil

	case ssa.OpNot:
		return Bool(!a[0].Truth()), nil
	case ssa.OpAndBool:
		return Bool(a[0].Truth() && a[1].Truth()), nil
	case ssa.OpOrBool:
		return Bool(a[0].Truth() || a[1].Truth()), nil

	case ssa.OpAlloca:
		m.mu.Lock()
		obj := m.newObject(v.ElemType(), -1)
		m.mu.Unlock()
		return Value{K: VPtr, P: Pointer{c: obj.root}}, nil
	case ssa.OpLoad:
		return m.load(v.Type, a[0].P)
	case ssa.OpStore:
		return Value{}, m.store(v.Args[1].Type, a[0].P, a[1])

	case ssa.OpStructFieldPtr:
		p, err := m.fieldPtr(v.Aux.(*ssa.StructType), a[0].P, int(v.AuxInt))
		return Value{K: VPtr, P: p}, err
	case ssa.OpArrayIndexPtr:
		p, err := m.indexPtr(v.Aux.(*ssa.ArrayType), a[0].P, a[1].I)
		return Value{K: VPtr, P: p}, err

	case ssa.OpAtomicAdd:
		return m.atomicAdd(v.Type, a[0].P, a[1].I)
	case ssa.OpAtomicLoad:
		return m.load(v.Type, a[0].P)
	case ssa.OpFence:
		return Value{}, nil

	case ssa.OpInsertValue:
		agg := cloneValue(a[0])
		i := int(v.AuxInt)
		if agg.K != VAgg || i >= len(agg.A) {
			return Value{}, faultf(ErrBadAccess, "insertvalue %d into %s", i, agg)
		}
		agg.A[i] = a[1]
		return agg, nil
	case ssa.OpExtractValue:
		i := int(v.AuxInt)
		if a[0].K != VAgg || i >= len(a[0].A) {
			return Value{}, faultf(ErrBadAccess, "extractvalue %d from %s", i, a[0])
		}
		return a[0].A[i], nil

	case ssa.OpStaticCall:
		return t.call(v.Name(), a)
	case ssa.OpCall:
		fp := a[0]
		if fp.P.fn == "" {
			return Value{}, faultf(ErrBadAccess, "indirect call through %s", fp)
		}
		return t.call(fp.P.fn, a[1:])

	case ssa.OpNewAlloc:
		count := int64(-1)
		if len(a) > 0 {
			count = a[0].I
			if count < 0 {
				return Value{}, faultf(ErrBadAccess, "allocation of %s with negative length %d", v.ElemType(), count)
			}
		}
		p, err := m.alloc(v.ElemType(), count)
		return Value{K: VPtr, P: p}, err
	case ssa.OpFree:
		return Value{}, m.free(a[0].P)

	case ssa.OpCopy:
		return a[0], nil
	case ssa.OpPanic:
		return Value{}, faultf(ErrPanic, "%s", v.Name())
	}
	return Value{}, faultf(ErrBadAccess, "unhandled op %s", v.Op)
}
