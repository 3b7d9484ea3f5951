package interp

import "github.com/you-not-fish/regionc/internal/ssa"

// cell is one storage location. Scalars hold a Value; structs and arrays
// hold one child cell per field or element. Addresses are cells, so the
// address of an aggregate and of its first field differ as Go pointers but
// compare equal as machine pointers (see pointerEq).
type cell struct {
	typ   ssa.Type
	obj   *object
	val   Value
	elems []*cell
}

// object is one allocation: a heap object, a stack slot or a global.
type object struct {
	id       int64
	root     *cell
	heap     bool
	readonly bool
	freed    bool
}

// buildCell materializes zeroed storage of type t. count, when >= 0, is
// the run-time length of the zero-length array that ends t.
func buildCell(t ssa.Type, obj *object, count int64) *cell {
	c := &cell{typ: t, obj: obj}
	switch t := t.(type) {
	case *ssa.IntType, *ssa.PtrType:
		c.val = zeroValue(t)
	case *ssa.StructType:
		c.elems = make([]*cell, len(t.Fields))
		for i, f := range t.Fields {
			n := int64(-1)
			if i == len(t.Fields)-1 {
				n = count
			}
			c.elems[i] = buildCell(f, obj, n)
		}
	case *ssa.ArrayType:
		n := t.Len
		if n == 0 && count >= 0 {
			n = count
		}
		c.elems = make([]*cell, n)
		for i := range c.elems {
			c.elems[i] = buildCell(t.Elem, obj, -1)
		}
	}
	return c
}

// isScalar reports whether cells of type t hold a Value directly.
func isScalar(t ssa.Type) bool {
	switch t.(type) {
	case *ssa.IntType, *ssa.PtrType:
		return true
	}
	return false
}

// sameLayout reports whether a and b describe the same storage, ignoring
// struct names.
func sameLayout(a, b ssa.Type) bool {
	if a == b || ssa.Identical(a, b) {
		return true
	}
	switch a := a.(type) {
	case *ssa.StructType:
		b, ok := b.(*ssa.StructType)
		if !ok || len(a.Fields) != len(b.Fields) {
			return false
		}
		for i := range a.Fields {
			if !sameLayout(a.Fields[i], b.Fields[i]) {
				return false
			}
		}
		return true
	case *ssa.ArrayType:
		b, ok := b.(*ssa.ArrayType)
		return ok && a.Len == b.Len && sameLayout(a.Elem, b.Elem)
	}
	return false
}

// hasPrefix reports whether the fields of prefix start the fields of st.
func hasPrefix(st, prefix *ssa.StructType) bool {
	if len(prefix.Fields) > len(st.Fields) {
		return false
	}
	for i, f := range prefix.Fields {
		if !sameLayout(st.Fields[i], f) {
			return false
		}
	}
	return true
}

// canon returns the innermost first cell at c's address.
func canon(c *cell) *cell {
	for c != nil && len(c.elems) > 0 {
		c = c.elems[0]
	}
	return c
}

func pointerEq(a, b Pointer) bool {
	if a.fn != "" || b.fn != "" {
		return a.fn == b.fn && a.c == nil && b.c == nil
	}
	return canon(a.c) == canon(b.c)
}

// find walks from c through first fields until match accepts a cell. This
// models the rule that an aggregate and its first field share an address:
// the control block is reached through the object pointer this way.
func find(c *cell, match func(*cell) bool) *cell {
	for c != nil {
		if match(c) {
			return c
		}
		if len(c.elems) == 0 {
			return nil
		}
		c = c.elems[0]
	}
	return nil
}

// deref checks that p addresses live storage. The caller holds m.mu.
func (m *Machine) deref(p Pointer, op string) (*cell, error) {
	switch {
	case p.fn != "":
		return nil, faultf(ErrBadAccess, "%s through function pointer @%s", op, p.fn)
	case p.c == nil:
		return nil, faultf(ErrNilDeref, "%s of nil pointer", op)
	case p.c.obj.freed:
		return nil, faultf(ErrUseAfterFree, "%s of freed object #%d", op, p.c.obj.id)
	}
	return p.c, nil
}

// typed finds the cell of type t at p.
func (m *Machine) typed(p Pointer, t ssa.Type, op string) (*cell, error) {
	c, err := m.deref(p, op)
	if err != nil {
		return nil, err
	}
	found := find(c, func(c *cell) bool { return sameLayout(c.typ, t) })
	if found == nil {
		return nil, faultf(ErrBadAccess, "%s of %s from %s storage of object #%d", op, t, c.typ, c.obj.id)
	}
	return found, nil
}

func (c *cell) read() Value {
	if isScalar(c.typ) {
		return c.val
	}
	fs := make([]Value, len(c.elems))
	for i, e := range c.elems {
		fs[i] = e.read()
	}
	return Value{K: VAgg, A: fs}
}

func (c *cell) write(v Value) error {
	if isScalar(c.typ) {
		if v.K == VAgg {
			return faultf(ErrBadAccess, "store of aggregate into %s", c.typ)
		}
		if it, ok := c.typ.(*ssa.IntType); ok {
			v.I = wrap(it.Bits, v.I)
		}
		c.val = v
		return nil
	}
	if v.K != VAgg || len(v.A) != len(c.elems) {
		return faultf(ErrBadAccess, "store of %s into %s", v, c.typ)
	}
	for i, e := range c.elems {
		if err := e.write(v.A[i]); err != nil {
			return err
		}
	}
	return nil
}

// load reads a t-typed value at p.
func (m *Machine) load(t ssa.Type, p Pointer) (Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.typed(p, t, "load")
	if err != nil {
		return Value{}, err
	}
	return c.read(), nil
}

// store writes a t-typed value at p.
func (m *Machine) store(t ssa.Type, p Pointer, v Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.typed(p, t, "store")
	if err != nil {
		return err
	}
	if c.obj.readonly {
		return faultf(ErrBadAccess, "store into constant object #%d", c.obj.id)
	}
	return c.write(v)
}

// atomicAdd adds delta to the integer at p and returns the old value.
func (m *Machine) atomicAdd(t ssa.Type, p Pointer, delta int64) (Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.typed(p, t, "atomicrmw")
	if err != nil {
		return Value{}, err
	}
	old := c.val
	if err := c.write(Int(old.I + delta)); err != nil {
		return Value{}, err
	}
	return old, nil
}

// fieldPtr returns the address of field i of the st-typed struct at p.
func (m *Machine) fieldPtr(st *ssa.StructType, p Pointer, i int) (Pointer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.deref(p, "getelementptr")
	if err != nil {
		return Pointer{}, err
	}
	found := find(c, func(c *cell) bool {
		ct, ok := c.typ.(*ssa.StructType)
		return ok && hasPrefix(ct, st)
	})
	if found == nil {
		return Pointer{}, faultf(ErrBadAccess, "field %d of %s in %s storage of object #%d", i, st, c.typ, c.obj.id)
	}
	return Pointer{c: found.elems[i]}, nil
}

// indexPtr returns the address of element idx of the array at p. The
// index is checked against the array's real length, so an unchecked
// access past the end is caught here.
func (m *Machine) indexPtr(at *ssa.ArrayType, p Pointer, idx int64) (Pointer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.deref(p, "getelementptr")
	if err != nil {
		return Pointer{}, err
	}
	found := find(c, func(c *cell) bool {
		ct, ok := c.typ.(*ssa.ArrayType)
		return ok && sameLayout(ct.Elem, at.Elem)
	})
	if found == nil {
		return Pointer{}, faultf(ErrBadAccess, "index into %s from %s storage of object #%d", at, c.typ, c.obj.id)
	}
	if idx < 0 || idx >= int64(len(found.elems)) {
		return Pointer{}, faultf(ErrOutOfRange, "index %d out of range [0, %d) in object #%d", idx, len(found.elems), c.obj.id)
	}
	return Pointer{c: found.elems[idx]}, nil
}

// alloc creates a heap object of type t. count is the length of a
// trailing zero-length array, or -1.
func (m *Machine) alloc(t ssa.Type, count int64) (Pointer, error) {
	if count < -1 {
		return Pointer{}, faultf(ErrBadAccess, "allocation of %s with negative length %d", t, count)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	obj := m.newObject(t, count)
	obj.heap = true
	m.stats.Allocs++
	return Pointer{c: obj.root}, nil
}

// newObject creates an object. The caller holds m.mu.
func (m *Machine) newObject(t ssa.Type, count int64) *object {
	m.nextID++
	obj := &object{id: m.nextID}
	obj.root = buildCell(t, obj, count)
	return obj
}

// free releases the heap object that p points to the start of.
// Freeing null is a no-op, as with C free.
func (m *Machine) free(p Pointer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.c == nil && p.fn == "" {
		return nil
	}
	if p.c != nil && p.c.obj.freed {
		return faultf(ErrDoubleFree, "double free of object #%d", p.c.obj.id)
	}
	c, err := m.deref(p, "free")
	if err != nil {
		return err
	}
	obj := c.obj
	switch {
	case !obj.heap:
		return faultf(ErrBadAccess, "free of non-heap object #%d", obj.id)
	case canon(c) != canon(obj.root):
		return faultf(ErrBadAccess, "free of interior pointer into object #%d", obj.id)
	}
	obj.freed = true
	m.stats.Frees++
	return nil
}
